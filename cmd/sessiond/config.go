package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

type appConfig struct {
	Backend     string `env:"APP_BACKEND" envDefault:"memory"`
	NodeID      string `env:"APP_NODE_ID"`
	ContextPath string `env:"APP_CONTEXT_PATH" envDefault:"/"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"APP_LOG_LEVEL"`
	MetricsAddr string `env:"APP_METRICS_ADDR"`

	// MemoryCleanupInterval is how often the memory backend evicts expired
	// sessions. Zero leaves expiry to lookups only.
	MemoryCleanupInterval time.Duration `env:"SESSION_MEMORY_CLEANUP_INTERVAL" envDefault:"1m"`
}

func loadAppConfig() (appConfig, error) {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return app, err
	}
	if app.NodeID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			app.NodeID = host
		} else {
			app.NodeID = uuid.NewString()
		}
	}
	return app, nil
}

// sessionExtractor adds the id of the request's session to log records
func sessionExtractor(ctx context.Context) (slog.Attr, bool) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.SessionID(sess.ID()), true
}
