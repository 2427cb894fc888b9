package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/livefeed"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dataset is the cleaned table the API serves.
type Dataset interface {
	CheckReadiness(ctx context.Context) error
	Records(continent string) []domain.CleanRecord
	Summary() []domain.ContinentSummary
}

// WeatherSource serves the cached current-weather feed.
type WeatherSource interface {
	Get(ctx context.Context) (livefeed.Snapshot[livefeed.Weather], error)
}

// PriceSource serves the cached coin-price feed.
type PriceSource interface {
	Get(ctx context.Context) (livefeed.Snapshot[[]livefeed.Price], error)
}

// LiveFeeds groups the optional live feeds. Nil fields disable the route.
type LiveFeeds struct {
	Weather WeatherSource
	Prices  PriceSource
}

// Server exposes the dataset API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	data       Dataset
	live       LiveFeeds
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, data Dataset, live LiveFeeds, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		data:   data,
		live:   live,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(data))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/live/weather", s.handleWeather)
	mux.HandleFunc("GET /api/live/prices", s.handlePrices)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type recordsResponse struct {
	Count   int                  `json:"count"`
	Records []domain.CleanRecord `json:"records"`
}

type summaryResponse struct {
	Total      int                       `json:"total"`
	Continents []domain.ContinentSummary `json:"continents"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if err := s.data.CheckReadiness(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	records := s.data.Records(r.URL.Query().Get("continent"))
	if records == nil {
		records = []domain.CleanRecord{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(records), Records: records})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if err := s.data.CheckReadiness(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	summary := s.data.Summary()
	total := 0
	for _, c := range summary {
		total += c.Records
	}
	if summary == nil {
		summary = []domain.ContinentSummary{}
	}
	writeJSON(w, http.StatusOK, summaryResponse{Total: total, Continents: summary})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.live.Weather == nil {
		writeError(w, http.StatusNotFound, errLiveDisabled)
		return
	}
	snap, err := s.live.Weather.Get(r.Context())
	s.writeSnapshot(w, snap, err)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if s.live.Prices == nil {
		writeError(w, http.StatusNotFound, errLiveDisabled)
		return
	}
	snap, err := s.live.Prices.Get(r.Context())
	s.writeSnapshot(w, snap, err)
}

var errLiveDisabled = errors.New("live feeds disabled")

func (s *Server) writeSnapshot(w http.ResponseWriter, snap any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if errors.Is(err, livefeed.ErrRateLimited) {
		if after := livefeed.RetryAfterOf(err); after != "" {
			w.Header().Set("Retry-After", after)
		}
		writeError(w, http.StatusTooManyRequests, err)
		return
	}
	s.logger.Warn("live feed unavailable", "error", err)
	writeError(w, http.StatusServiceUnavailable, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
