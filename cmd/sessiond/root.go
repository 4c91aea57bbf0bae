package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Clustered HTTP session node",
	Long: `sessiond serves HTTP requests backed by sessions replicated through
a shared store (memory, redis or postgres) and inspects or migrates that store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		files, _ := cmd.Flags().GetStringSlice("env-file")
		if len(files) > 0 {
			return config.LoadEnv(files...)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", nil, ".env files to load, later files override earlier ones")
	rootCmd.AddCommand(serveCmd, inspectCmd, migrateCmd)
}

func newLogger(app appConfig) *slog.Logger {
	return logger.New(
		logger.WithOutput(os.Stderr),
		logger.WithEnvironment(app.Env, "sessiond"),
		logger.WithLevelName(app.LogLevel),
		logger.WithAttr(logger.NodeID(app.NodeID)),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
		logger.WithContextExtractors(sessionExtractor),
	)
}
