// Package httpserver runs an http.Server with context-driven graceful
// shutdown, configurable timeouts, lifecycle hooks and health probes.
//
// Run binds the listener first, so address errors surface before any start
// hook runs, then serves until the context is cancelled or Shutdown is
// called. Callers own signal handling:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	r := chi.NewRouter()
//	r.Get("/health", httpserver.HealthCheckHandler(log, redis.Healthcheck(client)))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//	    return err
//	}
//
// Errors are wrapped with ErrStart and ErrShutdown.
package httpserver
