// Package absch fetches the implementing-country set from the Access and
// Benefit-Sharing Clearing-House (ABSCH) of the Convention on Biological
// Diversity.
package absch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nagoya/internal/platform/httpclient"
	"nagoya/internal/upstream"
	"nagoya/pkg/domain"
	"nagoya/pkg/platform/circuit"
	"nagoya/pkg/platform/sentinel"
)

const (
	upstreamName = "absch"
	maxBodyBytes = 16 << 20
)

var tracer = otel.Tracer("nagoya/internal/registry/absch")

// Client queries the ABSCH country listing.
type Client struct {
	url     string
	http    *http.Client
	logger  *slog.Logger
	breaker *circuit.Breaker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreaker suspends fetches while the breaker is open. Timeouts, outages
// and rate limiting count toward opening it.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// New creates a client for the listing at url.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.New("registry url is required")
	}
	c := &Client{
		url:    url,
		http:   httpclient.New(30 * time.Second),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchImplementingCountries returns every country with a Nagoya Protocol
// party date. An empty listing is treated as bad data rather than "no
// implementing countries".
func (c *Client) FetchImplementingCountries(ctx context.Context) (domain.CountrySet, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return domain.CountrySet{}, fmt.Errorf("%s: %w", upstreamName, sentinel.ErrCircuitOpen)
	}

	ctx, span := tracer.Start(ctx, "absch.fetch_countries",
		trace.WithAttributes(attribute.String("http.url", c.url)))
	defer span.End()

	set, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		c.recordFailure(ctx, err)
		return domain.CountrySet{}, err
	}
	span.SetAttributes(attribute.Int("absch.countries", set.Len()))
	c.recordSuccess(ctx)
	return set, nil
}

func (c *Client) fetch(ctx context.Context) (domain.CountrySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.CountrySet{}, upstream.New(upstream.Internal, upstreamName, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CountrySet{}, upstream.FromTransport(upstreamName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return domain.CountrySet{}, upstream.FromStatus(upstreamName, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.CountrySet{}, upstream.FromTransport(upstreamName, err)
	}

	parsed, err := parseCountries(body)
	if err != nil {
		return domain.CountrySet{}, upstream.New(upstream.BadData, upstreamName, "decode country listing", err)
	}
	if len(parsed.Skipped) > 0 {
		c.logger.DebugContext(ctx, "skipped registry entries without an ISO-3166 code",
			"count", len(parsed.Skipped),
			"codes", parsed.Skipped,
		)
	}
	if parsed.Countries.Len() == 0 {
		return domain.CountrySet{}, upstream.New(upstream.BadData, upstreamName, "listing contains no parties", nil)
	}
	return parsed.Countries, nil
}

// recordFailure ignores non-retryable errors: a listing that fails to
// decode still came from a live registry.
func (c *Client) recordFailure(ctx context.Context, err error) {
	if c.breaker == nil || !upstream.IsRetryable(err) {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "registry circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "registry circuit closed", "breaker", c.breaker.Name())
	}
}
