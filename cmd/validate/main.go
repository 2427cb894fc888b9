// Command validate checks a cleaned pandemic table against the guarantees of
// the cleaning pass: every row has a known continent, a finite death toll
// estimate, and in-range coordinates; every derived column agrees with the
// lookup tables and the death toll parser; the configured filters hold; and
// cleaning the file again changes nothing.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -path data/PandemicChronoTable.csv \
//	  -filters unknown_disease \
//	  -tables internal/gazetteer/tables.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/gazetteer"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("path", "data/PandemicChronoTable.csv", "cleaned CSV to validate")
	filters := flag.String("filters", "", "comma-separated optional filters the table was cleaned with")
	tablesPath := flag.String("tables", "", "lookup tables YAML (default: embedded tables)")
	match := flag.String("match", "first", "coordinate match strategy: first or longest")
	flag.Parse()

	os.Exit(run(os.Stdout, *path, *filters, *tablesPath, *match))
}

func run(out io.Writer, path, filterList, tablesPath, match string) int {
	fmt.Fprintln(out, "=== Pandemic Table Integrity Validation ===")
	fmt.Fprintln(out)

	strategy, err := gazetteer.ParseMatchStrategy(match)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	tables, err := gazetteer.Open(tablesPath, strategy)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load lookup tables: %v\n", err)
		return 1
	}
	filters, err := domain.ParseFilters(filterList)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	records, err := csvfile.ReadCleaned(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load cleaned table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRowInvariants(records),
		validateDerivations(records, tables),
		validateFilterPolicy(records, tables, filters),
		validateIdempotence(records, tables, filters),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d cleaned rows in %s\n", len(records), path)

	for _, p := range phases {
		for _, n := range p.notes {
			fmt.Fprintf(out, "  Note: %s\n", n)
		}
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateRowInvariants(records []domain.CleanRecord) *phase {
	p := &phase{name: "Phase 1: Row invariants"}
	for _, r := range records {
		if r.Continent == domain.Unknown {
			p.errorf("row %d (%q): continent is Unknown", r.Row, r.Location)
		}
		switch est := r.DeathTollEstimate; {
		case est == nil:
			p.errorf("row %d (%q): death toll estimate is empty", r.Row, r.Location)
		case math.IsNaN(*est) || math.IsInf(*est, 0) || *est < 0:
			p.errorf("row %d (%q): death toll estimate %v is not a finite non-negative number", r.Row, r.Location, *est)
		}
		if math.IsNaN(r.Geo.Lat) || r.Geo.Lat < -90 || r.Geo.Lat > 90 {
			p.errorf("row %d (%q): latitude %v out of range", r.Row, r.Location, r.Geo.Lat)
		}
		if math.IsNaN(r.Geo.Lon) || r.Geo.Lon < -180 || r.Geo.Lon > 180 {
			p.errorf("row %d (%q): longitude %v out of range", r.Row, r.Location, r.Geo.Lon)
		}
		if r.DiseaseKnown != domain.IsDiseaseKnown(r.Disease) {
			p.errorf("row %d: %s=%v disagrees with disease %q", r.Row, domain.ColumnDiseaseKnown, r.DiseaseKnown, r.Disease)
		}
	}
	return p
}

func validateDerivations(records []domain.CleanRecord, tables domain.LocationResolver) *phase {
	p := &phase{name: "Phase 2: Derived columns vs lookup tables"}
	geocoded := 0
	for _, r := range records {
		if want := tables.ClassifyContinent(r.Location); r.Continent != want {
			p.errorf("row %d (%q): continent %s, tables say %s", r.Row, r.Location, r.Continent, want)
		}

		want, ok := domain.ParseDeathToll(r.DeathTollText)
		if ok && (r.DeathTollEstimate == nil || *r.DeathTollEstimate != want) {
			p.errorf("row %d: death toll %q should estimate %v", r.Row, r.DeathTollText, want)
		}

		geo, source := tables.ClassifyCoordinates(r.Location)
		switch {
		case r.Geo == geo:
		case source == domain.CoordsDefault:
			// Not in the tables; the centroid came from the geocoder.
			geocoded++
		default:
			p.errorf("row %d (%q): centroid (%v, %v), tables say (%v, %v)",
				r.Row, r.Location, r.Geo.Lat, r.Geo.Lon, geo.Lat, geo.Lon)
		}
	}
	if geocoded > 0 {
		p.notef("%d row(s) carry geocoded centroids not found in the lookup tables", geocoded)
	}
	return p
}

func validateFilterPolicy(records []domain.CleanRecord, tables domain.LocationResolver, filters []domain.Filter) *phase {
	p := &phase{name: "Phase 3: Filter policy"}
	for _, r := range records {
		// CoordinateSource is not persisted; recover it from the tables.
		if _, source := tables.ClassifyCoordinates(r.Location); source == domain.CoordsDefault && !r.Geo.IsZero() {
			r.CoordinateSource = domain.CoordsGeocoded
		} else {
			r.CoordinateSource = source
		}
		if reason, drop := domain.DropReasonFor(r, filters); drop {
			p.errorf("row %d (%q): should have been dropped (%s)", r.Row, r.Location, reason)
		}
	}
	return p
}

func validateIdempotence(records []domain.CleanRecord, tables domain.LocationResolver, filters []domain.Filter) *phase {
	p := &phase{name: "Phase 4: Idempotence"}

	// Geocoded centroids cannot be reproduced offline, so those rows are
	// left out of the comparison.
	var (
		want []domain.CleanRecord
		raws []domain.RawRecord
	)
	for _, r := range records {
		if _, source := tables.ClassifyCoordinates(r.Location); source == domain.CoordsDefault && !r.Geo.IsZero() {
			continue
		}
		want = append(want, r)
		raws = append(raws, r.Raw())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	got, dropped := domain.NewCleaner(tables, nil, filters, logger).Clean(context.Background(), raws)

	if n := len(want) - len(got); n > 0 {
		p.errorf("re-cleaning dropped %d row(s): %v", n, dropped)
		return p
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty(), cmpopts.IgnoreFields(domain.CleanRecord{}, "CoordinateSource")); diff != "" {
		p.errorf("re-cleaning changed the table (-file +recleaned):\n%s", diff)
	}
	return p
}
