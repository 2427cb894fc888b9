// Command serve exposes the cleaned dataset over HTTP. It reloads the table
// whenever the batch job replaces the file and keeps the optional live feeds
// (current weather, coin prices) warm in the background.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/pandemic-data-etl/internal/adapter/http"
	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/watch"
	"github.com/couchcryptid/pandemic-data-etl/internal/config"
	"github.com/couchcryptid/pandemic-data-etl/internal/dataset"
	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/livefeed"
	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
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

	data := dataset.NewStore(func(context.Context) ([]domain.CleanRecord, error) {
		return csvfile.ReadCleaned(cfg.OutputPath)
	}, metrics, logger)

	// A missing file is not fatal: /readyz reports 503 until the batch job
	// writes it and the watcher picks it up.
	if err := data.Reload(ctx); err != nil {
		logger.Warn("initial dataset load failed", "path", cfg.OutputPath, "error", err)
	}

	watcher := watch.New(cfg.OutputPath, data.Reload, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to watch dataset", "path", cfg.OutputPath, "error", err)
		os.Exit(1)
	}

	var live httpadapter.LiveFeeds
	if cfg.LiveFeedsEnabled {
		clock := clockwork.NewRealClock()

		weatherClient := livefeed.NewWeatherClient(cfg.WeatherLat, cfg.WeatherLon, cfg.LiveTimeout)
		weather := livefeed.NewFeed("weather", weatherClient.Fetch, cfg.WeatherTTL, clock, metrics, logger).
			WithFallback(livefeed.SampleWeather(cfg.WeatherLat, cfg.WeatherLon))

		priceClient := livefeed.NewPriceClient(cfg.PriceCoins, cfg.PriceCurrency, cfg.LiveTimeout)
		prices := livefeed.NewFeed("prices", priceClient.Fetch, cfg.PriceTTL, clock, metrics, logger).
			WithFallback(livefeed.SamplePrices(cfg.PriceCurrency))

		go weather.Run(ctx, cfg.LiveRefreshInterval)
		go prices.Run(ctx, cfg.LiveRefreshInterval)

		live = httpadapter.LiveFeeds{Weather: weather, Prices: prices}
		logger.Info("live feeds enabled", "refresh_interval", cfg.LiveRefreshInterval)
	} else {
		logger.Info("live feeds disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, data, live, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
