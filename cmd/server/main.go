package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nagoya/internal/compliance"
	complianceHandler "nagoya/internal/compliance/handler"
	complianceMetrics "nagoya/internal/compliance/metrics"
	"nagoya/internal/compliance/ports"
	"nagoya/internal/geocode/nominatim"
	"nagoya/internal/platform/config"
	"nagoya/internal/platform/httpclient"
	"nagoya/internal/platform/httpserver"
	"nagoya/internal/platform/logger"
	"nagoya/internal/platform/metrics"
	"nagoya/internal/reference"
	referenceMetrics "nagoya/internal/reference/metrics"
	"nagoya/internal/registry/absch"
	httptransport "nagoya/internal/transport/http"
	"nagoya/pkg/domain"
	"nagoya/pkg/platform/circuit"
)

const (
	referenceName   = "implementing_countries"
	shutdownTimeout = 10 * time.Second
	breakerCooldown = 5 * time.Minute
)

// main wires dependencies, loads the initial implementing-country set and
// serves until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer
	httpMetrics := metrics.New(reg, prometheus.DefaultGatherer)

	registry, err := absch.New(cfg.Registry.URL,
		absch.WithHTTPClient(httpclient.New(cfg.Registry.Timeout)),
		absch.WithLogger(log),
		absch.WithBreaker(circuit.New("absch", circuit.WithCooldown(breakerCooldown))),
	)
	if err != nil {
		return err
	}

	cache, err := reference.Bootstrap(ctx, registry.FetchImplementingCountries, cfg.Cache.TTL,
		reference.WithName(referenceName),
		reference.WithLogger(log),
		reference.WithMetrics(referenceMetrics.New(reg)),
		reference.WithFetchTimeout(cfg.Registry.Timeout),
		reference.WithMaxStaleness(cfg.Cache.MaxStaleness),
	)
	if err != nil {
		return err
	}
	snapshot := cache.Snapshot()
	log.Info("implementing countries loaded",
		"count", snapshot.Data.Len(),
		"ttl", cfg.Cache.TTL.String(),
	)

	geocoder, err := nominatim.New(cfg.Geocoder.Host,
		nominatim.WithHTTPClient(httpclient.New(cfg.Geocoder.Timeout)),
		nominatim.WithUserAgent(cfg.Geocoder.UserAgent),
		nominatim.WithRateLimit(cfg.Geocoder.RateLimit),
		nominatim.WithLogger(log),
	)
	if err != nil {
		return err
	}

	checker, err := compliance.New(cache, geocoder,
		compliance.WithLogger(log),
		compliance.WithMetrics(complianceMetrics.New(reg)),
		compliance.WithGeocodeTimeout(cfg.Geocoder.Timeout),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		RequestTimeout: 2*cfg.Registry.Timeout + time.Second,
		Reference:      cache,
		Modules:        []httptransport.Registrar{complianceHandler.New(checker, log)},
	})
	srv := httpserver.New(cfg.Server.Addr(), router, cfg.Registry.Timeout)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting nagoya api", "addr", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var _ ports.ReferenceSource = (*reference.Cache[domain.CountrySet])(nil)
