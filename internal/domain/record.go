package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Source and derived column names of the pandemic chronology table.
const (
	ColumnLocation  = "Location"
	ColumnDisease   = "Disease"
	ColumnDeathToll = "Death toll (estimate)"
	ColumnYear      = "Year"

	ColumnDiseaseKnown      = "Disease_Known"
	ColumnContinent         = "Continent"
	ColumnLatitude          = "Latitude"
	ColumnLongitude         = "Longitude"
	ColumnDeathTollEstimate = "Death Toll (est)"
)

// RequiredColumns must be present in every source table.
var RequiredColumns = []string{ColumnLocation, ColumnDisease, ColumnDeathToll}

// DerivedColumns are appended by the cleaning pass, in output order.
var DerivedColumns = []string{
	ColumnDiseaseKnown,
	ColumnContinent,
	ColumnLatitude,
	ColumnLongitude,
	ColumnDeathTollEstimate,
}

// ErrMissingColumn is returned when a source table lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// IsDerivedColumn reports whether name is one of the columns the cleaning pass
// computes. Derived columns found in a source table are ignored and recomputed.
func IsDerivedColumn(name string) bool {
	for _, c := range DerivedColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Field is a single named cell carried through the pipeline unchanged.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawRecord is one source row.
type RawRecord struct {
	Row           int // 1-based data row in the source, for error reporting
	Location      string
	Disease       string
	DeathTollText string

	// Passthrough holds every non-derived source column in source order,
	// including the three interpreted columns above.
	Passthrough []Field
}

// Get returns the passthrough value for name, or "" if the column is absent.
func (r RawRecord) Get(name string) string {
	for _, f := range r.Passthrough {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the pair is exactly (0, 0).
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

// CoordinateSource records how a centroid was obtained.
type CoordinateSource string

const (
	CoordsExact     CoordinateSource = "exact"
	CoordsSubstring CoordinateSource = "substring"
	CoordsGeocoded  CoordinateSource = "geocoded"
	CoordsDefault   CoordinateSource = "default"
)

// CleanRecord is a source row after normalization.
type CleanRecord struct {
	ID                string           `json:"id"`
	Row               int              `json:"row"`
	Location          string           `json:"location"`
	Disease           string           `json:"disease"`
	DeathTollText     string           `json:"death_toll_text"`
	DiseaseKnown      bool             `json:"disease_known"`
	Continent         Continent        `json:"continent"`
	Geo               Geo              `json:"geo"`
	CoordinateSource  CoordinateSource `json:"coordinate_source"`
	DeathTollEstimate *float64         `json:"death_toll_estimate"`
	Passthrough       []Field          `json:"passthrough"`
}

// Get returns the passthrough value for name, or "" if the column is absent.
func (r CleanRecord) Get(name string) string {
	for _, f := range r.Passthrough {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Raw returns the source view of the record, dropping every derived value.
// Cleaning the result again yields the same record.
func (r CleanRecord) Raw() RawRecord {
	return RawRecord{
		Row:           r.Row,
		Location:      r.Location,
		Disease:       r.Disease,
		DeathTollText: r.DeathTollText,
		Passthrough:   r.Passthrough,
	}
}

// DropReason names why a record was removed by the cleaning pass.
type DropReason string

const (
	DropUnknownContinent      DropReason = "unknown_continent"
	DropMissingDeathToll      DropReason = "missing_death_toll"
	DropNonFiniteCoordinates  DropReason = "non_finite_coordinates"
	DropUnknownDisease        DropReason = "unknown_disease"
	DropUnresolvedCoordinates DropReason = "unresolved_coordinates"
	DropZeroCoordinates       DropReason = "zero_coordinates"
)

// BatchReport summarizes one cleaning run.
type BatchReport struct {
	RunID      string             `json:"run_id"`
	Source     string             `json:"source"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Read       int                `json:"read"`
	Written    int                `json:"written"`
	Dropped    map[DropReason]int `json:"dropped"`
}

// TotalDropped is the number of records removed by any filter.
func (r BatchReport) TotalDropped() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// RecordID produces a deterministic ID from the record's source fields.
func RecordID(location, disease, deathTollText, year string) string {
	input := fmt.Sprintf("%s|%s|%s|%s", location, disease, deathTollText, year)
	hash := sha256.Sum256([]byte(input))
	return "rec-" + hex.EncodeToString(hash[:8])
}
