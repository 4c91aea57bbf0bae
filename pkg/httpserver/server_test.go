package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/httpserver"
)

// start runs srv in the background and waits for the start hook
func start(t *testing.T, ctx context.Context, srv *httpserver.Server, started <-chan struct{}, h http.Handler) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()
	select {
	case <-started:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return done
}

func wait(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err, "run")
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestRunServesUntilContextDone(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := start(t, ctx, srv, started, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	wait(t, done)
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	var stops atomic.Int32
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
		httpserver.WithStopHook(func(*slog.Logger) { stops.Add(1) }),
	)

	done := start(t, context.Background(), srv, started, http.NewServeMux())
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
	assert.Equal(t, int32(1), stops.Load())
}

func TestStartError(t *testing.T) {
	t.Parallel()

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.WithAddr(":invalid"))
		err := srv.Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("address in use", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		var hooked atomic.Bool
		srv := httpserver.New(
			httpserver.WithAddr(ln.Addr().String()),
			httpserver.WithStartHook(func(*slog.Logger) { hooked.Store(true) }),
		)
		err = srv.Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.False(t, hooked.Load(), "start hooks run only after listening")
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()
		started := make(chan struct{})
		srv := httpserver.New(
			httpserver.WithAddr("127.0.0.1:0"),
			httpserver.WithShutdownTimeout(50*time.Millisecond),
			httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		done := start(t, ctx, srv, started, http.NewServeMux())

		err := srv.Run(context.Background(), http.NewServeMux())
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

		cancel()
		wait(t, done)
	})
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	hs := &http.Server{}
	gotLogger := make(chan *slog.Logger, 1)
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithServer(hs),
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithReadTimeout(time.Second),
		httpserver.WithReadHeaderTimeout(500*time.Millisecond),
		httpserver.WithWriteTimeout(2*time.Second),
		httpserver.WithIdleTimeout(3*time.Second),
		httpserver.WithMaxHeaderBytes(8<<10),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithLogger(l),
		httpserver.WithStartHook(func(lg *slog.Logger) {
			gotLogger <- lg
			close(started)
		}),
	)

	done := start(t, context.Background(), srv, started, nil)
	assert.Equal(t, time.Second, hs.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, hs.ReadHeaderTimeout)
	assert.Equal(t, 8<<10, hs.MaxHeaderBytes)
	assert.Equal(t, 2*time.Second, hs.WriteTimeout)
	assert.Equal(t, 3*time.Second, hs.IdleTimeout)
	assert.NotNil(t, hs.Handler)
	assert.Same(t, l, <-gotLogger)

	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	srv := httpserver.NewFromConfig(
		httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: 50 * time.Millisecond},
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
	)
	done := start(t, context.Background(), srv, started, nil)
	assert.NotEmpty(t, srv.Addr())
	require.NoError(t, srv.Shutdown(context.Background()))
	wait(t, done)
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fn   func()
	}{
		{"addr", func() { httpserver.WithAddr("") }},
		{"read", func() { httpserver.WithReadTimeout(-time.Second) }},
		{"read header", func() { httpserver.WithReadHeaderTimeout(0) }},
		{"max header bytes", func() { httpserver.WithMaxHeaderBytes(0) }},
		{"write", func() { httpserver.WithWriteTimeout(-time.Second) }},
		{"idle", func() { httpserver.WithIdleTimeout(-time.Second) }},
		{"shutdown", func() { httpserver.WithShutdownTimeout(-time.Second) }},
		{"server", func() { httpserver.WithServer(nil) }},
		{"start hook", func() { httpserver.WithStartHook(nil) }},
		{"stop hook", func() { httpserver.WithStopHook(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, tt.fn)
		})
	}

	assert.NotPanics(t, func() { httpserver.WithLogger(nil) })
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	probe := func(h http.Handler) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := probe(httpserver.HealthCheckHandler(nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		ok := func(context.Context) error { return nil }
		rec := probe(httpserver.HealthCheckHandler(nil, ok, ok))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		failing := func(context.Context) error { calls.Add(1); return errors.New("store down") }
		never := func(context.Context) error { calls.Add(10); return nil }
		rec := probe(httpserver.HealthCheckHandler(nil, failing, never))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
		assert.Equal(t, int32(1), calls.Load())
	})
}
