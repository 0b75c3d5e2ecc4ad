// Package httptransport assembles the portal's chi router: the global
// middleware stack, the health and metrics endpoints, and each feature's
// routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ddrc/internal/platform/metrics"
	"ddrc/internal/platform/middleware"
	"ddrc/pkg/platform/middleware/metadata"
)

const requestTimeout = 30 * time.Second

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter wires the global middleware and mounts handlers in order.
func NewRouter(cfg Config, handlers ...Registrar) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/", handleHome)
	r.Get("/healthcheck", handleHealthcheck)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/vital-records", http.StatusFound)
}

func handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Healthy"))
}
