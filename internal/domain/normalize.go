package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Filter names an optional drop rule applied after normalization.
type Filter string

const (
	// FilterUnknownDisease drops records whose disease is marked unknown.
	FilterUnknownDisease Filter = "unknown_disease"
	// FilterUnresolvedCoordinates drops records whose centroid fell back to
	// the (0, 0) default.
	FilterUnresolvedCoordinates Filter = "unresolved_coordinates"
	// FilterZeroCoordinates drops every record at exactly (0, 0), including
	// locations whose table centroid is (0, 0) such as "Worldwide".
	FilterZeroCoordinates Filter = "zero_coordinates"
)

// ParseFilters parses a comma-separated filter list. Blank input yields no filters.
func ParseFilters(s string) ([]Filter, error) {
	var filters []Filter
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		switch f := Filter(name); f {
		case FilterUnknownDisease, FilterUnresolvedCoordinates, FilterZeroCoordinates:
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}
	return filters, nil
}

// IsDiseaseKnown reports whether the disease text lacks an "unknown" marker.
func IsDiseaseKnown(disease string) bool {
	return !strings.Contains(strings.ToLower(disease), "unknown")
}

// NormalizeRecord derives the disease flag, continent, centroid, and death toll
// estimate for one source row. It never fails: unresolvable fields become
// Unknown, the default centroid, or a nil estimate.
func NormalizeRecord(raw RawRecord, resolver LocationResolver) CleanRecord {
	geo, source := resolver.ClassifyCoordinates(raw.Location)

	rec := CleanRecord{
		ID:               RecordID(raw.Location, raw.Disease, raw.DeathTollText, raw.Get(ColumnYear)),
		Row:              raw.Row,
		Location:         raw.Location,
		Disease:          raw.Disease,
		DeathTollText:    raw.DeathTollText,
		DiseaseKnown:     IsDiseaseKnown(raw.Disease),
		Continent:        resolver.ClassifyContinent(raw.Location),
		Geo:              geo,
		CoordinateSource: source,
		Passthrough:      raw.Passthrough,
	}
	if v, ok := ParseDeathToll(raw.DeathTollText); ok {
		rec.DeathTollEstimate = &v
	}
	return rec
}

// DropReasonFor returns the first rule that removes rec, checking the
// always-on rules before the optional filters in the order given.
func DropReasonFor(rec CleanRecord, filters []Filter) (DropReason, bool) {
	switch {
	case rec.Continent == Unknown || rec.Continent == "":
		return DropUnknownContinent, true
	case rec.DeathTollEstimate == nil:
		return DropMissingDeathToll, true
	case !isFinite(rec.Geo.Lat) || !isFinite(rec.Geo.Lon):
		return DropNonFiniteCoordinates, true
	}

	for _, f := range filters {
		switch f {
		case FilterUnknownDisease:
			if !rec.DiseaseKnown {
				return DropUnknownDisease, true
			}
		case FilterUnresolvedCoordinates:
			if rec.CoordinateSource == CoordsDefault {
				return DropUnresolvedCoordinates, true
			}
		case FilterZeroCoordinates:
			if rec.Geo.IsZero() {
				return DropZeroCoordinates, true
			}
		}
	}
	return "", false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Cleaner runs the normalize-then-filter pass over a batch of records.
type Cleaner struct {
	resolver LocationResolver
	geocoder Geocoder
	filters  []Filter
	logger   *slog.Logger
}

// NewCleaner creates a Cleaner. Pass a nil geocoder to disable geocoding of
// locations the static tables cannot place.
func NewCleaner(resolver LocationResolver, geocoder Geocoder, filters []Filter, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		resolver: resolver,
		geocoder: geocoder,
		filters:  filters,
		logger:   logger,
	}
}

// Filters returns the optional filters the cleaner applies.
func (c *Cleaner) Filters() []Filter {
	return c.filters
}

// Clean normalizes every record in input order and drops the ones the filter
// policy rejects. Surviving records keep their relative order. The returned
// map counts dropped records per reason.
func (c *Cleaner) Clean(ctx context.Context, raws []RawRecord) ([]CleanRecord, map[DropReason]int) {
	out := make([]CleanRecord, 0, len(raws))
	dropped := make(map[DropReason]int)

	for _, raw := range raws {
		rec := NormalizeRecord(raw, c.resolver)
		rec = EnrichWithGeocoding(ctx, rec, c.geocoder, c.logger)

		if reason, drop := DropReasonFor(rec, c.filters); drop {
			dropped[reason]++
			c.logger.Debug("record dropped",
				"row", rec.Row,
				"location", rec.Location,
				"reason", reason,
			)
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}
