package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/pandemic-data-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Oju, Nigeria.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, placeTypes, r.URL.Query().Get("types"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{8.4167, 7.25},
					PlaceName: "Oju, Benue, Nigeria",
					Text:      "Oju",
					Relevance: 0.9,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.ForwardGeocode(context.Background(), "Oju, Nigeria")
	require.NoError(t, err)

	assert.Equal(t, 7.25, result.Lat)
	assert.Equal(t, 8.4167, result.Lon)
	assert.Equal(t, "Oju, Benue, Nigeria", result.FormattedAddress)
	assert.Equal(t, "Oju", result.PlaceName)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("success")))
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.ForwardGeocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, float64(0), result.Lat)
	assert.Empty(t, result.FormattedAddress)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	c.token = "bad-token"

	_, err := c.ForwardGeocode(context.Background(), "Naples")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("error")))
}

func TestClient_ForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, observability.NewMetricsForTesting())
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.ForwardGeocode(context.Background(), "Naples")
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(testToken, 3*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}
