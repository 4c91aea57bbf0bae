package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/httpserver"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/metrics"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve HTTP requests with clustered sessions",
	Long: `Starts the HTTP node. The session store is chosen with APP_BACKEND
(memory, redis or postgres); HTTP_*, SESSION_*, REDIS_* and PG_* variables
configure the rest. Metrics are served on /metrics, or on APP_METRICS_ADDR
when set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	app, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := newLogger(app)

	var sessCfg session.Config
	if err := config.Load(&sessCfg); err != nil {
		return err
	}
	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}

	b, err := openBackend(ctx, app, log)
	if err != nil {
		return err
	}
	defer b.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewSessionCollector(app.NodeID)
	if err := collector.Register(reg); err != nil {
		return err
	}

	m, err := session.NewFromConfig(b.cache, sessCfg,
		session.WithLogger(log),
		session.WithHost(&session.Host{NodeID: app.NodeID, ContextPath: app.ContextPath}),
		session.WithListeners(collector, lifecycleLogger(log)),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	g, ctx := errgroup.WithContext(ctx)

	apiReg := reg
	if app.MetricsAddr != "" {
		apiReg = nil
		metricsSrv := httpserver.New(httpserver.WithAddr(app.MetricsAddr), httpserver.WithLogger(log))
		g.Go(func() error { return metricsSrv.Run(ctx, metrics.Handler(reg)) })
	}

	api := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	g.Go(func() error { return api.Run(ctx, newRouter(m, log, apiReg, b.checks...)) })

	if b.run != nil {
		g.Go(func() error { return b.run(ctx) })
	}

	log.InfoContext(ctx, "sessiond started",
		logger.Backend(app.Backend),
		logger.NodeID(app.NodeID),
	)
	return g.Wait()
}

func lifecycleLogger(log *slog.Logger) session.Listener {
	return session.ListenerFuncs{
		Created: func(s *session.Session) {
			log.Debug("session created", logger.SessionID(s.ID()))
		},
		Destroyed: func(s *session.Session) {
			log.Debug("session destroyed", logger.SessionID(s.ID()))
		},
	}
}
