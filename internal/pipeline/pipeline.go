package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
	"github.com/google/uuid"
)

// Extractor reads every raw record from the source table.
type Extractor interface {
	Source() string
	Extract(ctx context.Context) ([]domain.RawRecord, error)
}

// Cleaner normalizes and filters a batch of raw records.
type Cleaner interface {
	Clean(ctx context.Context, raws []domain.RawRecord) ([]domain.CleanRecord, map[domain.DropReason]int)
}

// Loader writes the cleaned dataset to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, records []domain.CleanRecord) error
}

// RunRecorder is implemented by loaders that keep a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, report domain.BatchReport) error
}

// ColumnSource is implemented by extractors that know the source table's
// passthrough columns.
type ColumnSource interface {
	Columns() []string
}

// ColumnSink is implemented by loaders whose output layout follows the source
// columns rather than the surviving records.
type ColumnSink interface {
	SetColumns(columns []string)
}

// RetryPolicy bounds how often a failing loader is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries three times, starting at 200ms and capping at 5s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 5 * time.Second}

// Pipeline orchestrates one extract-clean-load run.
type Pipeline struct {
	extractor Extractor
	cleaner   Cleaner
	loaders   []Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	retry     RetryPolicy
	newRunID  func() string
}

// New creates a Pipeline. Loaders run in order; the first is the primary
// dataset file and later ones are optional mirrors.
func New(e Extractor, c Cleaner, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		cleaner:   c,
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
		retry:     DefaultRetryPolicy,
		newRunID:  uuid.NewString,
	}
}

// WithRetryPolicy overrides the loader retry policy.
func (p *Pipeline) WithRetryPolicy(r RetryPolicy) *Pipeline {
	p.retry = r
	return p
}

// Run reads the source, cleans it, and loads the result into every sink.
// Structural failures (unreadable source, missing columns, failed sink) abort
// the run and are returned; per-row failures only show up as drop counts.
func (p *Pipeline) Run(ctx context.Context) (domain.BatchReport, error) {
	report := domain.StartReport(p.newRunID(), p.extractor.Source())
	ctx = domain.WithRunID(ctx, report.RunID)
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("pipeline started", "source", report.Source, "sinks", len(p.loaders))

	raws, err := p.extractor.Extract(ctx)
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}
	p.metrics.RecordsRead.Add(float64(len(raws)))
	if cs, ok := p.extractor.(ColumnSource); ok {
		columns := cs.Columns()
		for _, l := range p.loaders {
			if sink, ok := l.(ColumnSink); ok {
				sink.SetColumns(columns)
			}
		}
	}

	records, dropped := p.cleaner.Clean(ctx, raws)
	for reason, n := range dropped {
		p.metrics.RecordsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}

	for _, l := range p.loaders {
		if err := p.loadWithRetry(ctx, logger, l, records); err != nil {
			p.metrics.SinkErrors.WithLabelValues(l.Name()).Inc()
			return report, fmt.Errorf("load %s: %w", l.Name(), err)
		}
	}
	p.metrics.RecordsWritten.Add(float64(len(records)))

	report.Finish(len(raws), len(records), dropped)
	p.metrics.BatchDuration.Observe(report.Duration().Seconds())
	p.metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))

	for _, l := range p.loaders {
		rr, ok := l.(RunRecorder)
		if !ok {
			continue
		}
		if err := rr.RecordRun(ctx, report); err != nil {
			logger.Warn("record run failed", "sink", l.Name(), "error", err)
		}
	}

	logger.Info("pipeline finished",
		"read", report.Read,
		"written", report.Written,
		"dropped", report.TotalDropped(),
		"duration", report.Duration(),
	)
	return report, nil
}

// loadWithRetry calls the loader until it succeeds, the attempts run out, or
// the context is cancelled.
func (p *Pipeline) loadWithRetry(ctx context.Context, logger *slog.Logger, l Loader, records []domain.CleanRecord) error {
	attempts := max(p.retry.MaxAttempts, 1)
	backoff := p.retry.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = l.Load(ctx, records); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		logger.Warn("load failed, retrying",
			"sink", l.Name(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, p.retry.MaxBackoff)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(err, ctxErr)
	}
	return err
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
