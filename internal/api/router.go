package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/api/handler"
	apimw "github.com/teamflow/notification-worker/internal/api/middleware"
)

// NewRouter wires the ops-only HTTP surface of the worker: liveness and a
// Prometheus scrape endpoint. Job intake happens over the broker, never HTTP.
func NewRouter(reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLogger(logger))

	hh := handler.NewHealthHandler()

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}
