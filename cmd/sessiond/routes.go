package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/clustersession/pkg/httpserver"
	"github.com/dmitrymomot/clustersession/pkg/logger"
	"github.com/dmitrymomot/clustersession/pkg/metrics"
	"github.com/dmitrymomot/clustersession/pkg/session"
)

const maxAttributeSize = 4 << 10

type sessionView struct {
	ID             string             `json:"id"`
	Node           string             `json:"node"`
	New            bool               `json:"new"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	MaxIdle        string             `json:"max_idle"`
	Attributes     map[string]any     `json:"attributes"`
	Principal      *session.Principal `json:"principal,omitempty"`
}

// newRouter wires the session middleware, demo endpoints, probes and,
// when reg is not nil, the metrics endpoint.
func newRouter(m *session.Manager, log *slog.Logger, reg *prometheus.Registry, checks ...func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, logContext, middleware.Recoverer)

	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, checks...))
	if reg != nil {
		r.Handle("/metrics", metrics.Handler(reg))
	}

	h := &handlers{manager: m, log: log}
	r.Group(func(r chi.Router) {
		r.Use(m.Middleware)

		r.With(m.EnsureSession).Get("/", h.show)
		r.With(m.EnsureSession).Put("/attr/{name}", h.setAttribute)
		r.Get("/attr/{name}", h.getAttribute)
		r.Delete("/attr/{name}", h.removeAttribute)
		r.With(m.EnsureSession).Post("/login", h.login)
		r.With(m.RequireAuth).Get("/me", h.me)
		r.Post("/logout", h.logout)
	})

	return r
}

type handlers struct {
	manager *session.Manager
	log     *slog.Logger
}

func (h *handlers) show(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.view(sess))
}

func (h *handlers) setAttribute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAttributeSize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess := session.MustFromContext(r.Context())
	sess.SetAttribute(chi.URLParam(r, "name"), string(body))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getAttribute(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.NotFound(w, r)
		return
	}
	v, ok := sess.Attribute(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": v})
}

func (h *handlers) removeAttribute(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		sess.RemoveAttribute(chi.URLParam(r, "name"))
	}
	w.WriteHeader(http.StatusNoContent)
}

// login trusts the submitted user name; credential checks belong to the
// application in front of this demo.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	if user == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}
	sess := session.MustFromContext(r.Context())
	p := session.NewPrincipal("form", user, r.Form["role"]...)
	if err := h.manager.Authenticate(sess, p, r.TLS != nil); err != nil {
		h.log.ErrorContext(r.Context(), "authenticate", logger.UserID(user), logger.Error(err))
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	h.log.InfoContext(r.Context(), "session authenticated", logger.UserID(user))
	writeJSON(w, http.StatusOK, h.view(sess))
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, _ := session.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Destroy(r.Context(), w, r); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		h.log.ErrorContext(r.Context(), "destroy session", logger.Error(err))
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) view(sess *session.Session) sessionView {
	names := sess.AttributeNames()

	attrs := make(map[string]any, len(names))
	var principal *session.Principal
	for _, name := range names {
		v, _ := sess.Attribute(name)
		if p, ok := v.(*session.Principal); ok {
			principal = p
			continue
		}
		attrs[name] = v
	}

	return sessionView{
		ID:             sess.ID(),
		Node:           h.manager.Host().NodeID,
		New:            sess.IsNew(),
		CreatedAt:      sess.CreatedAt(),
		LastAccessedAt: sess.LastAccessedAt(),
		MaxIdle:        sess.MaxInactiveInterval().String(),
		Attributes:     attrs,
		Principal:      principal,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logContext tags records logged while serving r with its method and path.
func logContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.ContextWith(r.Context(),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
