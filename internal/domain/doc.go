// Package domain models historical pandemic records and the rules that turn
// free-text source rows into plottable, numeric records.
//
// # Data Source
//
// Records come from a chronology table of epidemics and pandemics exported to
// CSV. Each row carries free text for the place, the disease, and the death
// toll, plus descriptive columns (event name, date, year) that pass through
// untouched.
//
// # Location Conventions
//
// Locations are written the way a historian would write them:
//
//	"Byzantine Empire, West Asia, Africa"   several regions, comma joined
//	"Oju, Nigeria"                          town, country
//	"Worldwide"                             global scope
//
// A location is mapped to exactly one continent label by exact lookup. The
// composite labels Multiple (explicitly spans two or more continents) and
// Global (worldwide scope) exist for rows that no single continent describes.
// Coordinates are coarse centroids for the named region, used only for map
// plotting. See [LocationResolver].
//
// # Death Toll Conventions
//
// Death tolls are estimates and appear as ranges, single figures, unit-suffixed
// numbers, or explicit unknown markers:
//
//	"5-10 million"                   range with a unit word
//	"75,000-100,000"                 range with thousands separators
//	"296 (as of 31 December 2020)"   figure with a dated remark
//	"10m"                            compact unit suffix
//	"Unknown"                        explicit marker
//
// The parser always keeps the upper bound of a range. See [ParseDeathToll].
//
// # Record IDs
//
// Record IDs are deterministic SHA-256 hashes of location|disease|death toll
// text|year so downstream sinks can upsert rows and replays do not duplicate
// them. See [RecordID].
package domain
