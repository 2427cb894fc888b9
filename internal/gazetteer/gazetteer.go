// Package gazetteer resolves free-text pandemic locations to continent labels
// and representative centroids using versioned lookup tables.
//
// The default tables are embedded from tables.yaml. An override file with the
// same layout can be loaded with [LoadFile] to reconcile table revisions
// without touching code.
package gazetteer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// ErrDuplicateKey is returned when a table lists the same key twice.
var ErrDuplicateKey = errors.New("duplicate table key")

// MatchStrategy selects how the coordinate substring fallback picks among
// several matching keys.
type MatchStrategy string

const (
	// MatchFirst takes the first matching key in table order.
	MatchFirst MatchStrategy = "first"
	// MatchLongest takes the longest matching key; ties go to table order.
	MatchLongest MatchStrategy = "longest"
)

// ParseMatchStrategy validates a strategy name.
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch m := MatchStrategy(strings.ToLower(strings.TrimSpace(s))); m {
	case MatchFirst, MatchLongest:
		return m, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q", s)
	}
}

// Tables is the on-disk layout of the lookup tables.
type Tables struct {
	Version     int               `yaml:"version" validate:"gte=1"`
	Continents  []ContinentEntry  `yaml:"continents" validate:"required,dive"`
	Coordinates []CoordinateEntry `yaml:"coordinates" validate:"required,dive"`
}

// ContinentEntry maps one exact location string to a continent label.
type ContinentEntry struct {
	Location  string `yaml:"location" validate:"required"`
	Continent string `yaml:"continent" validate:"required,oneof=Africa Asia Europe 'North America' 'South America' Oceania Multiple Global"`
}

// CoordinateEntry is a representative centroid for a region, country, or polity.
type CoordinateEntry struct {
	Key string  `yaml:"key" validate:"required"`
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

// Gazetteer implements domain.LocationResolver over a set of Tables.
type Gazetteer struct {
	version    int
	strategy   MatchStrategy
	continents map[string]domain.Continent
	coords     []coordinate
	exact      map[string]domain.Geo
}

type coordinate struct {
	key   string
	lower string
	geo   domain.Geo
}

// Default returns a Gazetteer over the embedded tables.
func Default(strategy MatchStrategy) (*Gazetteer, error) {
	return Parse(defaultTables, strategy)
}

// LoadFile reads tables from a YAML file.
func LoadFile(path string, strategy MatchStrategy) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup tables: %w", err)
	}
	g, err := Parse(data, strategy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Open loads tables from path, or the embedded tables when path is empty.
func Open(path string, strategy MatchStrategy) (*Gazetteer, error) {
	if path == "" {
		return Default(strategy)
	}
	return LoadFile(path, strategy)
}

// Parse decodes and validates YAML tables.
func Parse(data []byte, strategy MatchStrategy) (*Gazetteer, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode lookup tables: %w", err)
	}
	return New(t, strategy)
}

// New validates t and builds a Gazetteer from it.
func New(t Tables, strategy MatchStrategy) (*Gazetteer, error) {
	if strategy == "" {
		strategy = MatchFirst
	}
	if _, err := ParseMatchStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(t); err != nil {
		return nil, fmt.Errorf("validate lookup tables: %w", err)
	}

	g := &Gazetteer{
		version:    t.Version,
		strategy:   strategy,
		continents: make(map[string]domain.Continent, len(t.Continents)),
		coords:     make([]coordinate, 0, len(t.Coordinates)),
		exact:      make(map[string]domain.Geo, len(t.Coordinates)),
	}

	for _, e := range t.Continents {
		key := strings.TrimSpace(e.Location)
		if _, dup := g.continents[key]; dup {
			return nil, fmt.Errorf("continents: %w: %q", ErrDuplicateKey, key)
		}
		g.continents[key] = domain.ParseContinent(e.Continent)
	}

	for _, e := range t.Coordinates {
		key := strings.TrimSpace(e.Key)
		if _, dup := g.exact[key]; dup {
			return nil, fmt.Errorf("coordinates: %w: %q", ErrDuplicateKey, key)
		}
		geo := domain.Geo{Lat: e.Lat, Lon: e.Lon}
		g.exact[key] = geo
		g.coords = append(g.coords, coordinate{key: key, lower: strings.ToLower(key), geo: geo})
	}

	return g, nil
}

// Version is the table revision the gazetteer was built from.
func (g *Gazetteer) Version() int { return g.version }

// Strategy is the coordinate substring match strategy in use.
func (g *Gazetteer) Strategy() MatchStrategy { return g.strategy }

// ClassifyContinent returns the continent mapped to the exact (trimmed)
// location string, or Unknown.
func (g *Gazetteer) ClassifyContinent(location string) domain.Continent {
	if c, ok := g.continents[strings.TrimSpace(location)]; ok {
		return c
	}
	return domain.Unknown
}

// ClassifyCoordinates returns the centroid for location: an exact key match
// first, then a case-insensitive substring scan, then (0, 0).
func (g *Gazetteer) ClassifyCoordinates(location string) (domain.Geo, domain.CoordinateSource) {
	location = strings.TrimSpace(location)
	if geo, ok := g.exact[location]; ok {
		return geo, domain.CoordsExact
	}

	lower := strings.ToLower(location)
	best := -1
	for i, c := range g.coords {
		if !strings.Contains(lower, c.lower) {
			continue
		}
		if g.strategy == MatchFirst {
			return c.geo, domain.CoordsSubstring
		}
		if best < 0 || len(c.lower) > len(g.coords[best].lower) {
			best = i
		}
	}
	if best >= 0 {
		return g.coords[best].geo, domain.CoordsSubstring
	}
	return domain.Geo{}, domain.CoordsDefault
}
