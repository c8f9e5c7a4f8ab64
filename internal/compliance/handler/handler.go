package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nagoya/pkg/platform/httputil"
	"nagoya/pkg/requestcontext"
)

// Service defines the compliance checks exposed over HTTP.
type Service interface {
	CheckByCountryCode(ctx context.Context, code string) (bool, error)
	CheckByCoordinates(ctx context.Context, lat, lon float64) (bool, error)
}

// Handler wires the check endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the check endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/nagoya_check_cc", h.HandleCheckCountryCode)
	r.Post("/nagoya_check_geo", h.HandleCheckCoordinates)
}

// HandleCheckCountryCode handles POST /nagoya_check_cc requests.
func (h *Handler) HandleCheckCountryCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CountryCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CheckByCountryCode(ctx, *req.ProbeCountry)
	if err != nil {
		h.logger.WarnContext(ctx, "country code check failed",
			"request_id", requestID,
			"probe_country", *req.ProbeCountry,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "country code checked",
		"request_id", requestID,
		"probe_country", *req.ProbeCountry,
		"check_result", result,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, CheckResponse{CheckResult: result})
}

// HandleCheckCoordinates handles POST /nagoya_check_geo requests.
func (h *Handler) HandleCheckCoordinates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[GeoCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	lat, lon := *req.Coordinates.Latitude, *req.Coordinates.Longitude

	result, err := h.service.CheckByCoordinates(ctx, lat, lon)
	if err != nil {
		h.logger.WarnContext(ctx, "coordinates check failed",
			"request_id", requestID,
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "coordinates checked",
		"request_id", requestID,
		"lat", lat,
		"lon", lon,
		"check_result", result,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, CheckResponse{CheckResult: result})
}
