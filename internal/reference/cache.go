// Package reference holds lazily refreshed reference data.
//
// A Cache keeps one value together with the time it was fetched. Reads inside
// the TTL are served from memory; the first read after the TTL triggers a
// refresh through the configured fetch function. Concurrent readers share a
// single in-flight refresh. When a refresh fails the previous snapshot keeps
// being served, so an unreachable upstream degrades freshness instead of
// availability.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"nagoya/internal/reference/metrics"
	"nagoya/pkg/platform/sentinel"
)

const refreshKey = "refresh"

var tracer = otel.Tracer("nagoya/internal/reference")

// FetchFunc loads a complete, current value from the upstream source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Entry pairs a value with its fetch time. Entries are replaced whole, never
// mutated in place.
type Entry[T any] struct {
	Data        T
	LastUpdated time.Time
	TTL         time.Duration
}

// IsFresh reports whether the entry is within its TTL at now.
func (e Entry[T]) IsFresh(now time.Time) bool {
	return now.Sub(e.LastUpdated) <= e.TTL
}

// Status summarizes cache health for /health and diagnostics.
type Status struct {
	Name                string    `json:"name"`
	LastUpdated         time.Time `json:"last_updated"`
	Fresh               bool      `json:"fresh"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Cache is a single-value, TTL-bound cache with serve-stale refresh.
type Cache[T any] struct {
	mu       sync.RWMutex
	entry    Entry[T]
	failures int
	lastErr  error

	fetch FetchFunc[T]
	group singleflight.Group
	opts  options
}

type options struct {
	name         string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
	maxStaleness time.Duration
	now          func() time.Time
}

type Option func(*options)

// WithName labels logs, metrics and spans. Defaults to "reference".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithFetchTimeout bounds each fetch. A timed-out fetch counts as a failed
// refresh.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetchTimeout = d
	}
}

// WithMaxStaleness limits how long past its TTL a snapshot may still be
// served after failed refreshes. Zero (the default) serves stale data
// indefinitely.
func WithMaxStaleness(d time.Duration) Option {
	return func(o *options) {
		o.maxStaleness = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		name:   "reference",
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a cache seeded with initial, considered fresh as of now.
func New[T any](initial T, ttl time.Duration, fetch FetchFunc[T], opts ...Option) (*Cache[T], error) {
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	o := buildOptions(opts)
	c := &Cache[T]{
		entry: Entry[T]{Data: initial, LastUpdated: o.now(), TTL: ttl},
		fetch: fetch,
		opts:  o,
	}
	c.recordEntries(initial)
	o.metrics.SetLastSuccess(o.name, c.entry.LastUpdated)
	return c, nil
}

// Bootstrap obtains the initial value from fetch and builds the cache. A
// failed initial fetch is returned to the caller; there is nothing to serve
// yet.
func Bootstrap[T any](ctx context.Context, fetch FetchFunc[T], ttl time.Duration, opts ...Option) (*Cache[T], error) {
	if fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	o := buildOptions(opts)
	if o.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.fetchTimeout)
		defer cancel()
	}
	initial, err := fetch(ctx)
	if err != nil {
		o.metrics.IncrementRefresh(o.name, "failure")
		return nil, fmt.Errorf("initial %s fetch: %w", o.name, err)
	}
	o.metrics.IncrementRefresh(o.name, "success")
	return New(initial, ttl, fetch, opts...)
}

// Snapshot returns the current entry without refreshing.
func (c *Cache[T]) Snapshot() Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// Status reports freshness and the refresh failure streak.
func (c *Cache[T]) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		Name:                c.opts.name,
		LastUpdated:         c.entry.LastUpdated,
		Fresh:               c.entry.IsFresh(c.opts.now()),
		ConsecutiveFailures: c.failures,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Get returns the current value, refreshing first when the entry is stale.
//
// Errors: only when the entry is stale, the refresh failed, and the snapshot
// is older than the max-staleness bound; the error wraps
// sentinel.ErrUnavailable and the refresh cause.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	entry := c.Snapshot()
	if entry.IsFresh(c.opts.now()) {
		c.opts.metrics.IncrementHit(c.opts.name)
		return entry.Data, nil
	}

	// The refresh outlives a caller that gives up, so waiting callers and the
	// next reader still benefit from it.
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		return c.serveStale(ctx, entry, ctx.Err())
	}
}

func (c *Cache[T]) refresh(ctx context.Context) (T, error) {
	current := c.Snapshot()
	if current.IsFresh(c.opts.now()) {
		return current.Data, nil
	}

	ctx, span := tracer.Start(ctx, "reference.refresh",
		trace.WithAttributes(attribute.String("reference.cache", c.opts.name)))
	defer span.End()

	fetchCtx := ctx
	if c.opts.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := c.safeFetch(fetchCtx)
	c.opts.metrics.ObserveRefreshLatency(c.opts.name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		c.recordFailure(ctx, err)
		return c.serveStale(ctx, current, err)
	}

	now := c.opts.now()
	c.mu.Lock()
	c.entry = Entry[T]{Data: data, LastUpdated: now, TTL: current.TTL}
	c.failures = 0
	c.lastErr = nil
	c.mu.Unlock()

	c.opts.metrics.IncrementRefresh(c.opts.name, "success")
	c.opts.metrics.SetLastSuccess(c.opts.name, now)
	c.recordEntries(data)
	c.opts.logger.InfoContext(ctx, "reference data refreshed",
		"cache", c.opts.name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// safeFetch turns a panicking fetch into a failed refresh. singleflight
// re-panics on its own goroutine, which would take the process down.
func (c *Cache[T]) safeFetch(ctx context.Context) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			data = zero
			err = fmt.Errorf("%s fetch panicked: %v", c.opts.name, r)
		}
	}()
	return c.fetch(ctx)
}

func (c *Cache[T]) recordFailure(ctx context.Context, err error) {
	c.mu.Lock()
	c.failures++
	c.lastErr = err
	failures := c.failures
	c.mu.Unlock()

	result := "failure"
	if errors.Is(err, sentinel.ErrCircuitOpen) {
		result = "skipped"
	}
	c.opts.metrics.IncrementRefresh(c.opts.name, result)
	c.opts.logger.WarnContext(ctx, "reference data refresh failed",
		"cache", c.opts.name,
		"consecutive_failures", failures,
		"error", err,
	)
}

// serveStale returns entry's data unless it is beyond the max-staleness bound.
func (c *Cache[T]) serveStale(ctx context.Context, entry Entry[T], cause error) (T, error) {
	staleFor := c.opts.now().Sub(entry.LastUpdated) - entry.TTL
	if c.opts.maxStaleness > 0 && staleFor > c.opts.maxStaleness {
		c.opts.logger.ErrorContext(ctx, "reference data too stale to serve",
			"cache", c.opts.name,
			"stale_for", staleFor.String(),
			"error", cause,
		)
		var zero T
		return zero, fmt.Errorf("%w: %s stale for %s: %w", sentinel.ErrUnavailable, c.opts.name, staleFor, cause)
	}
	c.opts.metrics.IncrementStaleServed(c.opts.name)
	return entry.Data, nil
}

func (c *Cache[T]) recordEntries(data T) {
	if sized, ok := any(data).(interface{ Len() int }); ok {
		c.opts.metrics.SetEntries(c.opts.name, sized.Len())
	}
}
