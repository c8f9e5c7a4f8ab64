// Package nominatim resolves coordinates to a country code through a
// Nominatim reverse-geocoding instance.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"nagoya/internal/platform/httpclient"
	"nagoya/internal/upstream"
	"nagoya/pkg/platform/sentinel"
)

const (
	upstreamName     = "nominatim"
	maxBodyBytes     = 1 << 20
	defaultUserAgent = "nagoya-api"
)

var tracer = otel.Tracer("nagoya/internal/geocode/nominatim")

// reverseResponse is the subset of the /reverse payload we read. Nominatim
// answers 200 with only "error" set when nothing is found at the location.
type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Client calls the /reverse endpoint.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit paces outbound requests to rps requests per second.
// A non-positive value disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the instance at baseURL, e.g.
// "https://nominatim.example.org".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("nominatim host is required")
	}
	c := &Client{
		baseURL:   baseURL,
		userAgent: defaultUserAgent,
		http:      httpclient.New(30 * time.Second),
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveCountryCode returns the country code reported for (lat, lon),
// exactly as Nominatim spells it (lowercase alpha-2).
func (c *Client) ResolveCountryCode(ctx context.Context, lat, lon float64) (string, error) {
	ctx, span := tracer.Start(ctx, "nominatim.reverse",
		trace.WithAttributes(
			attribute.Float64("geo.latitude", lat),
			attribute.Float64("geo.longitude", lon),
		))
	defer span.End()

	code, err := c.reverse(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverse geocode failed")
		return "", err
	}
	span.SetAttributes(attribute.String("geo.country_code", code))
	return code, nil
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", upstream.New(upstream.RateLimited, upstreamName, "request pacing", err)
		}
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", upstream.New(upstream.Internal, upstreamName, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", upstream.FromTransport(upstreamName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", upstream.FromStatus(upstreamName, resp.StatusCode)
	}

	var payload reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return "", upstream.New(upstream.BadData, upstreamName, "decode reverse response", err)
	}
	if payload.Error != "" {
		c.logger.DebugContext(ctx, "location not geocodable", "lat", lat, "lon", lon, "reason", payload.Error)
		return "", upstream.New(upstream.NotFound, upstreamName, payload.Error, sentinel.ErrNotFound)
	}
	code := strings.TrimSpace(payload.Address.CountryCode)
	if code == "" {
		return "", upstream.New(upstream.NotFound, upstreamName, "no country at location", sentinel.ErrNotFound)
	}
	return code, nil
}
