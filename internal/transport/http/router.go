// Package httptransport assembles the public HTTP surface: middleware chain,
// module handlers, health and metrics endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"nagoya/internal/platform/metrics"
	"nagoya/internal/platform/middleware"
	"nagoya/internal/reference"
	"nagoya/pkg/platform/httputil"
)

const healthMessage = "NagoyaAPI is running"

// StatusReporter exposes reference-data health for /health.
type StatusReporter interface {
	Status() reference.Status
}

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the collaborators the router needs.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// RequestTimeout cancels request contexts that run longer. Zero disables it.
	RequestTimeout time.Duration
	Reference      StatusReporter
	Modules        []Registrar
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Message       string            `json:"message"`
	ReferenceData *reference.Status `json:"reference_data,omitempty"`
}

// NewRouter wires middleware and every endpoint.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Observe(logger, d.Metrics))
	r.Use(middleware.Recovery(logger))
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}

	r.Get("/health", healthHandler(d.Reference))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	for _, m := range d.Modules {
		m.Register(r)
	}
	return r
}

func healthHandler(ref StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Message: healthMessage}
		if ref != nil {
			st := ref.Status()
			resp.ReferenceData = &st
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
