package livefeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// openMeteoTimeLayout is the minute-resolution ISO 8601 form Open-Meteo uses
// for "current.time" (always GMT unless a timezone is requested).
const openMeteoTimeLayout = "2006-01-02T15:04"

// Weather is the current conditions at one point.
type Weather struct {
	Time         time.Time `json:"time"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedKmh float64   `json:"wind_speed_kmh"`
}

// WeatherClient reads current conditions from the Open-Meteo forecast API.
type WeatherClient struct {
	getter  httpGetter
	baseURL string
	lat     float64
	lon     float64
}

// NewWeatherClient creates a client for the given coordinates.
func NewWeatherClient(lat, lon float64, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		getter:  newHTTPGetter(timeout),
		baseURL: openMeteoURL,
		lat:     lat,
		lon:     lon,
	}
}

type openMeteoResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Fetch returns the current temperature and wind speed.
func (c *WeatherClient) Fetch(ctx context.Context) (Weather, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(c.lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(c.lon, 'f', -1, 64)},
		"current":   {"temperature_2m,wind_speed_10m"},
	}

	var resp openMeteoResponse
	if err := c.getter.getJSON(ctx, c.baseURL+"?"+params.Encode(), &resp); err != nil {
		return Weather{}, fmt.Errorf("weather: %w", err)
	}

	ts, err := time.Parse(openMeteoTimeLayout, resp.Current.Time)
	if err != nil {
		return Weather{}, fmt.Errorf("weather: parse time %q: %w", resp.Current.Time, err)
	}
	return Weather{
		Time:         ts,
		Latitude:     c.lat,
		Longitude:    c.lon,
		TemperatureC: resp.Current.Temperature,
		WindSpeedKmh: resp.Current.WindSpeed,
	}, nil
}

// SampleWeather is served when the upstream has never answered.
func SampleWeather(lat, lon float64) Weather {
	return Weather{Latitude: lat, Longitude: lon, TemperatureC: 20.0, WindSpeedKmh: 5.0}
}
