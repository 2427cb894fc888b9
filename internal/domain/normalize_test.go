package domain

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub resolver ---

type stubResolver struct {
	continents map[string]Continent
	coords     map[string]Geo
}

func (s stubResolver) ClassifyContinent(location string) Continent {
	if c, ok := s.continents[location]; ok {
		return c
	}
	return Unknown
}

func (s stubResolver) ClassifyCoordinates(location string) (Geo, CoordinateSource) {
	if g, ok := s.coords[location]; ok {
		return g, CoordsExact
	}
	return Geo{}, CoordsDefault
}

func testResolver() stubResolver {
	return stubResolver{
		continents: map[string]Continent{
			"China":            Asia,
			"Byzantine Empire": Multiple,
			"Worldwide":        Global,
			"Oju, Nigeria":     Africa,
			"Nowhere Island":   Oceania,
		},
		coords: map[string]Geo{
			"China":            {Lat: 35.8, Lon: 104.1},
			"Byzantine Empire": {Lat: 41.0, Lon: 28.9},
			"Worldwide":        {},
			"Nowhere Island":   {Lat: math.NaN(), Lon: 0},
		},
	}
}

func raw(row int, location, disease, toll string) RawRecord {
	return RawRecord{
		Row:           row,
		Location:      location,
		Disease:       disease,
		DeathTollText: toll,
		Passthrough: []Field{
			{Name: ColumnLocation, Value: location},
			{Name: ColumnDisease, Value: disease},
			{Name: ColumnDeathToll, Value: toll},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestIsDiseaseKnown(t *testing.T) {
	assert.True(t, IsDiseaseKnown("Bubonic plague"))
	assert.True(t, IsDiseaseKnown(""))
	assert.False(t, IsDiseaseKnown("unknown plague"))
	assert.False(t, IsDiseaseKnown("Unknown; possibly smallpox"))
	assert.False(t, IsDiseaseKnown("UNKNOWN"))
}

func TestNormalizeRecord(t *testing.T) {
	in := raw(3, "China", "Bubonic plague", "12-15 million")
	in.Passthrough = append(in.Passthrough, Field{Name: ColumnYear, Value: "1855"})

	rec := NormalizeRecord(in, testResolver())

	assert.Equal(t, 3, rec.Row)
	assert.True(t, rec.DiseaseKnown)
	assert.Equal(t, Asia, rec.Continent)
	assert.Equal(t, Geo{Lat: 35.8, Lon: 104.1}, rec.Geo)
	assert.Equal(t, CoordsExact, rec.CoordinateSource)
	require.NotNil(t, rec.DeathTollEstimate)
	assert.Equal(t, 15_000_000.0, *rec.DeathTollEstimate)
	assert.Equal(t, in.Passthrough, rec.Passthrough)
	assert.True(t, strings.HasPrefix(rec.ID, "rec-"))
	assert.Equal(t, RecordID("China", "Bubonic plague", "12-15 million", "1855"), rec.ID)
}

func TestNormalizeRecord_Unresolved(t *testing.T) {
	rec := NormalizeRecord(raw(1, "Atlantis", "unknown fever", "no data"), testResolver())

	assert.False(t, rec.DiseaseKnown)
	assert.Equal(t, Unknown, rec.Continent)
	assert.Equal(t, Geo{}, rec.Geo)
	assert.Equal(t, CoordsDefault, rec.CoordinateSource)
	assert.Nil(t, rec.DeathTollEstimate)
}

func TestDropReasonFor(t *testing.T) {
	toll := 100.0
	base := CleanRecord{
		Continent:         Asia,
		Geo:               Geo{Lat: 1, Lon: 2},
		CoordinateSource:  CoordsExact,
		DeathTollEstimate: &toll,
		DiseaseKnown:      true,
	}

	tests := []struct {
		name    string
		mutate  func(*CleanRecord)
		filters []Filter
		want    DropReason
		drop    bool
	}{
		{"kept", func(*CleanRecord) {}, nil, "", false},
		{"unknown continent", func(r *CleanRecord) { r.Continent = Unknown }, nil, DropUnknownContinent, true},
		{"missing death toll", func(r *CleanRecord) { r.DeathTollEstimate = nil }, nil, DropMissingDeathToll, true},
		{"nan latitude", func(r *CleanRecord) { r.Geo.Lat = math.NaN() }, nil, DropNonFiniteCoordinates, true},
		{"inf longitude", func(r *CleanRecord) { r.Geo.Lon = math.Inf(1) }, nil, DropNonFiniteCoordinates, true},
		{"unknown disease kept without filter", func(r *CleanRecord) { r.DiseaseKnown = false }, nil, "", false},
		{"unknown disease filtered", func(r *CleanRecord) { r.DiseaseKnown = false }, []Filter{FilterUnknownDisease}, DropUnknownDisease, true},
		{"default coords kept without filter", func(r *CleanRecord) {
			r.Geo = Geo{}
			r.CoordinateSource = CoordsDefault
		}, nil, "", false},
		{"default coords filtered", func(r *CleanRecord) {
			r.Geo = Geo{}
			r.CoordinateSource = CoordsDefault
		}, []Filter{FilterUnresolvedCoordinates}, DropUnresolvedCoordinates, true},
		{"resolved zero coords survive unresolved filter", func(r *CleanRecord) { r.Geo = Geo{} }, []Filter{FilterUnresolvedCoordinates}, "", false},
		{"resolved zero coords dropped by zero filter", func(r *CleanRecord) { r.Geo = Geo{} }, []Filter{FilterZeroCoordinates}, DropZeroCoordinates, true},
		{"always-on rule wins", func(r *CleanRecord) {
			r.Continent = Unknown
			r.DiseaseKnown = false
		}, []Filter{FilterUnknownDisease}, DropUnknownContinent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			reason, drop := DropReasonFor(rec, tt.filters)
			assert.Equal(t, tt.drop, drop)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestCleaner_Clean_OrderAndCounts(t *testing.T) {
	raws := []RawRecord{
		raw(1, "Worldwide", "COVID-19", "296 (as of 31 December 2020)"),
		raw(2, "Atlantis", "Fever", "1000"),
		raw(3, "China", "Plague", "10m"),
		raw(4, "Byzantine Empire", "unknown plague", "unknown"),
		raw(5, "Oju, Nigeria", "Unknown illness", "5"),
		raw(6, "Byzantine Empire", "Plague of Justinian", "25–100 million"),
		raw(7, "Nowhere Island", "Measles", "40"),
	}

	cleaner := NewCleaner(testResolver(), nil, nil, discardLogger())
	out, dropped := cleaner.Clean(context.Background(), raws)

	rows := make([]int, len(out))
	for i, r := range out {
		rows[i] = r.Row
	}
	assert.Equal(t, []int{1, 3, 5, 6}, rows)
	assert.Equal(t, map[DropReason]int{
		DropUnknownContinent:     1,
		DropMissingDeathToll:     1,
		DropNonFiniteCoordinates: 1,
	}, dropped)

	for _, r := range out {
		assert.NotEqual(t, Unknown, r.Continent)
		require.NotNil(t, r.DeathTollEstimate)
		assert.True(t, isFinite(r.Geo.Lat) && isFinite(r.Geo.Lon))
	}
}

func TestCleaner_Clean_ConfiguredFilters(t *testing.T) {
	raws := []RawRecord{
		raw(1, "Worldwide", "COVID-19", "296"),
		raw(2, "China", "Plague", "10m"),
		raw(3, "Oju, Nigeria", "Unknown illness", "5"),
	}

	tests := []struct {
		name    string
		filters []Filter
		rows    []int
	}{
		{"none", nil, []int{1, 2, 3}},
		{"unknown disease", []Filter{FilterUnknownDisease}, []int{1, 2}},
		{"unresolved coordinates", []Filter{FilterUnresolvedCoordinates}, []int{1, 2}},
		{"zero coordinates", []Filter{FilterZeroCoordinates}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := NewCleaner(testResolver(), nil, tt.filters, discardLogger()).Clean(context.Background(), raws)
			var rows []int
			for _, r := range out {
				rows = append(rows, r.Row)
			}
			assert.Equal(t, tt.rows, rows)
		})
	}
}

func TestCleaner_Clean_Idempotent(t *testing.T) {
	raws := []RawRecord{
		raw(1, "Worldwide", "COVID-19", "296"),
		raw(2, "Atlantis", "Fever", "1000"),
		raw(3, "China", "Plague", "75,000-100,000"),
		raw(4, "Oju, Nigeria", "Unknown illness", "5"),
	}
	cleaner := NewCleaner(testResolver(), nil, []Filter{FilterUnknownDisease}, discardLogger())

	first, _ := cleaner.Clean(context.Background(), raws)

	again := make([]RawRecord, len(first))
	for i, r := range first {
		again[i] = r.Raw()
	}
	second, dropped := cleaner.Clean(context.Background(), again)

	assert.Equal(t, first, second)
	assert.Empty(t, dropped)
}

func TestCleaner_Clean_UnknownPlagueDropped(t *testing.T) {
	rec := NormalizeRecord(raw(1, "Byzantine Empire", "unknown plague", "unknown"), testResolver())
	assert.False(t, rec.DiseaseKnown)
	assert.Nil(t, rec.DeathTollEstimate)

	out, dropped := NewCleaner(testResolver(), nil, nil, discardLogger()).
		Clean(context.Background(), []RawRecord{raw(1, "Byzantine Empire", "unknown plague", "unknown")})
	assert.Empty(t, out)
	assert.Equal(t, 1, dropped[DropMissingDeathToll])
}

func TestParseFilters(t *testing.T) {
	filters, err := ParseFilters(" unknown_disease, zero_coordinates ,")
	require.NoError(t, err)
	assert.Equal(t, []Filter{FilterUnknownDisease, FilterZeroCoordinates}, filters)

	filters, err = ParseFilters("")
	require.NoError(t, err)
	assert.Empty(t, filters)

	_, err = ParseFilters("unknown_disease,bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParseContinent(t *testing.T) {
	assert.Equal(t, NorthAmerica, ParseContinent("  north   america "))
	assert.Equal(t, Global, ParseContinent("GLOBAL"))
	assert.Equal(t, Unknown, ParseContinent("Atlantis"))
	assert.Equal(t, Unknown, ParseContinent(""))
}

func TestSummarize(t *testing.T) {
	a, b, c := 100.0, 50.0, 10.0
	records := []CleanRecord{
		{Continent: Europe, DeathTollEstimate: &a},
		{Continent: Asia, DeathTollEstimate: &b},
		{Continent: Europe, DeathTollEstimate: &c},
		{Continent: Global},
	}

	got := Summarize(records)

	require.Len(t, got, 3)
	assert.Equal(t, ContinentSummary{Continent: Asia, Records: 1, DeathToll: 50, Share: 0.25}, got[0])
	assert.Equal(t, ContinentSummary{Continent: Europe, Records: 2, DeathToll: 110, Share: 0.5}, got[1])
	assert.Equal(t, ContinentSummary{Continent: Global, Records: 1, DeathToll: 0, Share: 0.25}, got[2])
	assert.Empty(t, Summarize(nil))
}
