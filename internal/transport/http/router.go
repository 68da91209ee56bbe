package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"castellan/internal/platform/health"
	"castellan/internal/platform/metrics"
	"castellan/internal/platform/middleware"
)

// NewRouter wires all endpoints with the middleware stack. Every /v1 route
// except the negotiation itself requires a valid bearer token.
func NewRouter(h *Handler, verifier TokenVerifier, healthHandler *health.Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, m))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.ContentTypeJSON).Post("/auth", h.handleAuth)

		r.Group(func(r chi.Router) {
			r.Use(RequireToken(verifier))
			r.Get("/whoami", h.handleWhoami)
			r.With(middleware.ContentTypeJSON).Post("/search", h.handleSearch)
			r.With(middleware.ContentTypeJSON).Post("/create", h.handleCreate)
			r.With(middleware.ContentTypeJSON).Post("/delete", h.handleDelete)
			r.With(middleware.ContentTypeJSON).Post("/modify", h.handleModify)
			r.With(middleware.ContentTypeJSON).Post("/recycle/search", h.handleSearchRecycled)
			r.With(middleware.ContentTypeJSON).Post("/recycle/revive", h.handleRevive)
			r.Get("/consistency", h.handleVerifyConsistency)
		})
	})

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
