package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/gazetteer"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Cleaning pass.
	InputPath        string
	OutputPath       string // defaults to InputPath (in-place overwrite)
	LookupTablesPath string // empty uses the embedded tables
	CleanFilters     string
	CoordinateMatch  string
	DropColumns      []string

	// Optional sinks.
	KafkaBrokers   []string
	KafkaSinkTopic string
	SQLitePath     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Live feed configuration.
	LiveFeedsEnabled    bool
	LiveRefreshInterval time.Duration
	LiveTimeout         time.Duration
	WeatherLat          float64
	WeatherLon          float64
	WeatherTTL          time.Duration
	PriceCoins          []string
	PriceCurrency       string
	PriceTTL            time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	liveRefresh, err := parsePositiveDuration("LIVE_REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	liveTimeout, err := parsePositiveDuration("LIVE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	weatherTTL, err := parsePositiveDuration("WEATHER_TTL", "10m")
	if err != nil {
		return nil, err
	}
	priceTTL, err := parsePositiveDuration("PRICE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	weatherLat, err := parseFloat("WEATHER_LAT", "39.7392", -90, 90)
	if err != nil {
		return nil, err
	}
	weatherLon, err := parseFloat("WEATHER_LON", "-104.9903", -180, 180)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	inputPath := sharedcfg.EnvOrDefault("INPUT_PATH", "data/PandemicChronoTable.csv")

	cfg := &Config{
		InputPath:        inputPath,
		OutputPath:       sharedcfg.EnvOrDefault("OUTPUT_PATH", inputPath),
		LookupTablesPath: os.Getenv("LOOKUP_TABLES_PATH"),
		CleanFilters:     os.Getenv("CLEAN_FILTERS"),
		CoordinateMatch:  sharedcfg.EnvOrDefault("COORDINATE_MATCH", "first"),
		DropColumns:      splitList(sharedcfg.EnvOrDefault("DROP_COLUMNS", "Unnamed: 0,Ref.")),

		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "pandemic-records"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		LiveFeedsEnabled:    sharedcfg.EnvOrDefault("LIVE_FEEDS_ENABLED", "true") == "true",
		LiveRefreshInterval: liveRefresh,
		LiveTimeout:         liveTimeout,
		WeatherLat:          weatherLat,
		WeatherLon:          weatherLon,
		WeatherTTL:          weatherTTL,
		PriceCoins:          splitList(sharedcfg.EnvOrDefault("PRICE_COINS", "bitcoin,ethereum")),
		PriceCurrency:       sharedcfg.EnvOrDefault("PRICE_CURRENCY", "usd"),
		PriceTTL:            priceTTL,
	}

	if cfg.InputPath == "" {
		return nil, errors.New("INPUT_PATH is required")
	}
	if _, err := domain.ParseFilters(cfg.CleanFilters); err != nil {
		return nil, fmt.Errorf("invalid CLEAN_FILTERS: %w", err)
	}
	strategy, err := gazetteer.ParseMatchStrategy(cfg.CoordinateMatch)
	if err != nil {
		return nil, fmt.Errorf("invalid COORDINATE_MATCH: %w", err)
	}
	cfg.CoordinateMatch = string(strategy)
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if len(cfg.PriceCoins) == 0 {
		return nil, errors.New("PRICE_COINS must list at least one coin")
	}

	return cfg, nil
}

// KafkaEnabled reports whether cleaned records are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string, lo, hi float64) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || f < lo || f > hi {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
