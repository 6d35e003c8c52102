package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safepilgrim/internal/platform/metrics"
	"safepilgrim/internal/platform/middleware"
	"safepilgrim/pkg/platform/middleware/metadata"
	"safepilgrim/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by domain handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// Options tunes the shared middleware chain.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Metrics        *metrics.Metrics
	// MetricsHandler serves /metrics; nil serves the default Prometheus registry.
	MetricsHandler http.Handler
}

// NewRouter wires the middleware chain every route shares and mounts the
// domain handlers. Handlers stay free of transport plumbing.
func NewRouter(logger *slog.Logger, opts Options, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.CORS)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(opts.Metrics))
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBytes(opts.MaxBodyBytes))

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
