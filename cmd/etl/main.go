// Command etl runs one cleaning pass over the pandemic chronology table: it
// reads the CSV, derives the disease flag, continent, centroid, and death toll
// estimate for every row, drops the rows the filter policy rejects, and writes
// the result back (in place by default) plus any configured mirror sinks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/pandemic-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/pandemic-data-etl/internal/config"
	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/gazetteer"
	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
	"github.com/couchcryptid/pandemic-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("cleaning run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	strategy, err := gazetteer.ParseMatchStrategy(cfg.CoordinateMatch)
	if err != nil {
		return err
	}
	tables, err := gazetteer.Open(cfg.LookupTablesPath, strategy)
	if err != nil {
		return err
	}
	logger.Info("lookup tables loaded", "version", tables.Version(), "strategy", tables.Strategy())

	filters, err := domain.ParseFilters(cfg.CleanFilters)
	if err != nil {
		return fmt.Errorf("clean filters: %w", err)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	loaders := []pipeline.Loader{csvfile.NewWriter(cfg.OutputPath, logger)}

	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
	}

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}()
		loaders = append(loaders, store)
	}

	p := pipeline.New(
		csvfile.NewReader(cfg.InputPath, cfg.DropColumns, logger),
		domain.NewCleaner(tables, geocoder, filters, logger),
		loaders,
		logger,
		metrics,
	)

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for reason, n := range report.Dropped {
		logger.Info("records dropped", "reason", reason, "count", n)
	}
	logger.Info("cleaned table written", "path", cfg.OutputPath, "rows", report.Written)
	return nil
}
