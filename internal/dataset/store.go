// Package dataset holds the cleaned table in memory for the HTTP service and
// swaps it atomically when the file on disk is replaced.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
)

// ErrNotLoaded is returned by CheckReadiness before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// LoadFunc reads the full cleaned dataset.
type LoadFunc func(ctx context.Context) ([]domain.CleanRecord, error)

// Store serves the most recently loaded dataset. A failed reload keeps the
// previous dataset in place.
type Store struct {
	load    LoadFunc
	metrics *observability.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	records  []domain.CleanRecord
	summary  []domain.ContinentSummary
	loaded   bool
	loadedAt time.Time
}

// NewStore creates an empty Store. Call Reload before serving.
func NewStore(load LoadFunc, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{load: load, metrics: metrics, logger: logger}
}

// Reload reads the dataset and replaces the served copy.
func (s *Store) Reload(ctx context.Context) error {
	records, err := s.load(ctx)
	if err != nil {
		s.metrics.DatasetReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("reload dataset: %w", err)
	}
	summary := domain.Summarize(records)

	s.mu.Lock()
	s.records = records
	s.summary = summary
	s.loaded = true
	s.loadedAt = domain.Now()
	s.mu.Unlock()

	s.metrics.DatasetReloads.WithLabelValues("success").Inc()
	s.metrics.DatasetRecords.Set(float64(len(records)))
	s.logger.Debug("dataset loaded", "records", len(records))
	return nil
}

// CheckReadiness reports whether a dataset has been loaded.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

// Records returns the served records, optionally restricted to one continent
// (case-insensitive). An empty continent returns everything.
func (s *Store) Records(continent string) []domain.CleanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(continent) == "" {
		return s.records
	}
	want := domain.ParseContinent(continent)
	var out []domain.CleanRecord
	for _, r := range s.records {
		if r.Continent == want {
			out = append(out, r)
		}
	}
	return out
}

// Summary returns the per-continent aggregates of the served dataset.
func (s *Store) Summary() []domain.ContinentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// LoadedAt is when the served dataset was last replaced.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
