// Package compliance answers whether a probe's country of origin implements
// the Nagoya Protocol, from either a country code or a coordinate pair.
package compliance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nagoya/internal/compliance/metrics"
	"nagoya/internal/compliance/ports"
	"nagoya/pkg/domain"
	dErrors "nagoya/pkg/domain-errors"
)

const (
	modeCountryCode = "country_code"
	modeCoordinates = "coordinates"

	resultImplementing    = "implementing"
	resultNotImplementing = "not_implementing"
	resultError           = "error"
)

// Service checks probe origins against the implementing-country set.
type Service struct {
	source         ports.ReferenceSource
	geocoder       ports.Geocoder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	geocodeTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGeocodeTimeout bounds each reverse-geocode call. Zero leaves the
// caller's deadline in charge.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.geocodeTimeout = d
		}
	}
}

// New wires the checker to its reference data and geocoder.
func New(source ports.ReferenceSource, geocoder ports.Geocoder, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("reference source is required")
	}
	if geocoder == nil {
		return nil, errors.New("geocoder is required")
	}
	s := &Service{
		source:   source,
		geocoder: geocoder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckByCountryCode reports whether code (alpha-2 or alpha-3, any case)
// names an implementing country. Absence is false, not an error.
//
// Errors: CodeMalformedCountryCode for codes that are not ISO-3166 countries,
// CodeUnavailable when no usable reference snapshot exists.
func (s *Service) CheckByCountryCode(ctx context.Context, code string) (bool, error) {
	return s.check(ctx, modeCountryCode, code)
}

// CheckByCoordinates resolves (lat, lon) through the geocoder and then
// checks the resolved code exactly like CheckByCountryCode. Coordinates are
// not range checked here; the geocoder decides what is valid.
//
// Errors: CodeUnresolvableCoordinates for any geocoder failure, otherwise as
// CheckByCountryCode.
func (s *Service) CheckByCoordinates(ctx context.Context, lat, lon float64) (bool, error) {
	raw, err := s.resolve(ctx, lat, lon)
	if err != nil {
		s.metrics.IncrementOutcome(modeCoordinates, resultError)
		s.logger.WarnContext(ctx, "reverse geocode failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return false, dErrors.Wrap(err, dErrors.CodeUnresolvableCoordinates, "coordinates could not be resolved to a country")
	}
	return s.check(ctx, modeCoordinates, raw)
}

func (s *Service) resolve(ctx context.Context, lat, lon float64) (string, error) {
	if s.geocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.geocodeTimeout)
		defer cancel()
	}
	start := time.Now()
	code, err := s.geocoder.ResolveCountryCode(ctx, lat, lon)
	result := "ok"
	if err != nil {
		result = resultError
	}
	s.metrics.ObserveGeocodeLatency(result, time.Since(start))
	return code, err
}

func (s *Service) check(ctx context.Context, mode, raw string) (bool, error) {
	code, err := domain.ParseCountryCode(raw)
	if err != nil {
		s.metrics.IncrementOutcome(mode, resultError)
		return false, err
	}

	set, err := s.source.Get(ctx)
	if err != nil {
		s.metrics.IncrementOutcome(mode, resultError)
		s.logger.ErrorContext(ctx, "implementing-country data unavailable", "error", err)
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "implementing-country data is unavailable")
	}

	ok := set.Contains(code)
	if ok {
		s.metrics.IncrementOutcome(mode, resultImplementing)
	} else {
		s.metrics.IncrementOutcome(mode, resultNotImplementing)
	}
	return ok, nil
}
