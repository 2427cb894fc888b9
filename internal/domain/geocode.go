package domain

import (
	"context"
	"log/slog"
	"strings"
)

// EnrichWithGeocoding replaces a default (0, 0) centroid with a geocoded one.
// Records that already have a table centroid are returned unchanged. If
// geocoder is nil or geocoding fails, the record keeps its default centroid
// (graceful degradation) and remains subject to the filter policy.
func EnrichWithGeocoding(ctx context.Context, rec CleanRecord, geocoder Geocoder, logger *slog.Logger) CleanRecord {
	if geocoder == nil || rec.CoordinateSource != CoordsDefault {
		return rec
	}
	query := strings.TrimSpace(rec.Location)
	if query == "" {
		return rec
	}

	result, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"record_id", rec.ID,
			"location", rec.Location,
			"error", err,
		)
		return rec
	}
	if result.Lat == 0 && result.Lon == 0 {
		return rec
	}

	rec.Geo = Geo{Lat: result.Lat, Lon: result.Lon}
	rec.CoordinateSource = CoordsGeocoded
	return rec
}
