package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves free-text place names that the static tables do not know.
type Geocoder interface {
	// ForwardGeocode converts a place description to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

// LocationResolver maps a location string to a continent and a centroid.
type LocationResolver interface {
	ClassifyContinent(location string) Continent
	ClassifyCoordinates(location string) (Geo, CoordinateSource)
}
