package livefeed

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// errorCooldown is how long a failed feed waits before the next attempt when
// the upstream gave no Retry-After hint.
const errorCooldown = 30 * time.Second

// FetchFunc loads a fresh value from the upstream.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is what a feed serves: the value plus how trustworthy it is.
type Snapshot[T any] struct {
	Feed      string    `json:"feed"`
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
	// Stale is set when the last refresh failed and an older value is served.
	Stale bool `json:"stale"`
	// Sample is set when no fetch has ever succeeded and the fallback is served.
	Sample bool   `json:"sample"`
	Error  string `json:"error,omitempty"`
}

// Feed caches one upstream value for a TTL. A failed refresh keeps the
// previous value and marks it stale.
type Feed[T any] struct {
	name    string
	fetch   FetchFunc[T]
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	has       bool
	lastErr   error
	retryAt   time.Time
	fallback  *T
}

// NewFeed creates a Feed. It holds no value until the first refresh.
func NewFeed[T any](name string, fetch FetchFunc[T], ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Feed[T] {
	return &Feed[T]{
		name:    name,
		fetch:   fetch,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		logger:  logger.With("feed", name),
	}
}

// WithFallback sets a sample value served while no fetch has succeeded.
func (f *Feed[T]) WithFallback(v T) *Feed[T] {
	f.fallback = &v
	return f
}

// Name returns the feed name used in logs, metrics, and snapshots.
func (f *Feed[T]) Name() string { return f.name }

// Get returns the cached value, refreshing it first if it has expired. It
// only returns an error when there is neither a cached value nor a fallback.
func (f *Feed[T]) Get(ctx context.Context) (Snapshot[T], error) {
	if f.expired() {
		_ = f.Refresh(ctx)
	}
	return f.Snapshot()
}

// Snapshot returns the current state without touching the upstream.
func (f *Feed[T]) Snapshot() (Snapshot[T], error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := Snapshot[T]{Feed: f.name}
	if f.lastErr != nil {
		snap.Error = f.lastErr.Error()
	}
	switch {
	case f.has:
		snap.Value = f.value
		snap.FetchedAt = f.fetchedAt
		snap.Stale = f.lastErr != nil || f.clock.Since(f.fetchedAt) >= f.ttl
		return snap, nil
	case f.fallback != nil:
		snap.Value = *f.fallback
		snap.Stale = true
		snap.Sample = true
		return snap, nil
	case f.lastErr != nil:
		return snap, f.lastErr
	default:
		return snap, errors.New(f.name + ": no data yet")
	}
}

// Refresh fetches a new value unconditionally.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	v, err := f.fetch(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.lastErr = err
		f.retryAt = f.clock.Now().Add(cooldown(err))
		outcome := "error"
		if errors.Is(err, ErrRateLimited) {
			outcome = "rate_limited"
		}
		f.metrics.LiveFetches.WithLabelValues(f.name, outcome).Inc()
		f.logger.Warn("live feed refresh failed", "outcome", outcome, "error", err)
		return err
	}

	f.value = v
	f.fetchedAt = f.clock.Now()
	f.has = true
	f.lastErr = nil
	f.metrics.LiveFetches.WithLabelValues(f.name, "success").Inc()
	return nil
}

// Run refreshes the feed immediately and then on every tick whose cached
// value has expired, until ctx is cancelled.
func (f *Feed[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := f.clock.NewTicker(interval)
	defer ticker.Stop()

	_ = f.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if f.expired() {
				_ = f.Refresh(ctx)
			}
		}
	}
}

// expired reports whether a refresh is due. After a failure the next attempt
// waits for the upstream's Retry-After, or errorCooldown without one.
func (f *Feed[T]) expired() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastErr != nil {
		return !f.clock.Now().Before(f.retryAt)
	}
	return !f.has || f.clock.Since(f.fetchedAt) >= f.ttl
}

func cooldown(err error) time.Duration {
	if secs, convErr := strconv.Atoi(RetryAfterOf(err)); convErr == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return errorCooldown
}
