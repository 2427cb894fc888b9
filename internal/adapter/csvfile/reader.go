// Package csvfile reads pandemic chronology tables from CSV and writes the
// cleaned dataset back.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
)

// ErrDuplicateColumn is returned when a table header names a column twice.
var ErrDuplicateColumn = errors.New("duplicate column")

// Reader loads raw records from a CSV file.
// It implements pipeline.Extractor.
type Reader struct {
	path        string
	dropColumns map[string]bool
	logger      *slog.Logger
	columns     []string
}

// NewReader creates a Reader for path. Columns named in dropColumns are
// removed from the passthrough set; required columns are never dropped.
func NewReader(path string, dropColumns []string, logger *slog.Logger) *Reader {
	drop := make(map[string]bool, len(dropColumns))
	for _, c := range dropColumns {
		drop[c] = true
	}
	for _, c := range domain.RequiredColumns {
		delete(drop, c)
	}
	return &Reader{path: path, dropColumns: drop, logger: logger}
}

// Source is the file the reader loads.
func (r *Reader) Source() string { return r.path }

// Columns returns the passthrough column names of the last extracted table,
// in source order. It is empty before the first successful Extract.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Extract reads every data row of the file. A missing required column or a
// ragged row fails the whole read.
func (r *Reader) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open source table: %w", err)
	}
	defer f.Close()

	records, err := r.decode(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	r.logger.Info("source table read", "path", r.path, "rows", len(records))
	return records, nil
}

func (r *Reader) decode(ctx context.Context, src io.Reader) ([]domain.RawRecord, error) {
	cr := newCSVReader(src)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty table", domain.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = trimBOM(header)

	idx, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var columns []string
	for _, name := range header {
		if r.dropColumns[name] || domain.IsDerivedColumn(name) {
			continue
		}
		columns = append(columns, name)
	}

	var records []domain.RawRecord
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		rec := domain.RawRecord{
			Row:           row,
			Location:      cells[idx[domain.ColumnLocation]],
			Disease:       cells[idx[domain.ColumnDisease]],
			DeathTollText: cells[idx[domain.ColumnDeathToll]],
			Passthrough:   make([]domain.Field, 0, len(header)),
		}
		for i, name := range header {
			if r.dropColumns[name] || domain.IsDerivedColumn(name) {
				continue
			}
			rec.Passthrough = append(rec.Passthrough, domain.Field{Name: name, Value: cells[i]})
		}
		records = append(records, rec)
	}
	r.columns = columns
	return records, nil
}

// ReadCleaned loads a dataset previously written by Writer, parsing the
// derived columns back into CleanRecords.
func ReadCleaned(path string) ([]domain.CleanRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cleaned table: %w", err)
	}
	defer f.Close()

	records, err := decodeCleaned(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func decodeCleaned(src io.Reader) ([]domain.CleanRecord, error) {
	cr := newCSVReader(src)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = trimBOM(header)

	idx, err := indexColumns(header, domain.DerivedColumns...)
	if err != nil {
		return nil, err
	}

	var records []domain.CleanRecord
	for row := 1; ; row++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		rec, err := parseCleanRow(row, header, idx, cells)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCleanRow(row int, header []string, idx map[string]int, cells []string) (domain.CleanRecord, error) {
	lat, err := strconv.ParseFloat(cells[idx[domain.ColumnLatitude]], 64)
	if err != nil {
		return domain.CleanRecord{}, fmt.Errorf("parse %s: %w", domain.ColumnLatitude, err)
	}
	lon, err := strconv.ParseFloat(cells[idx[domain.ColumnLongitude]], 64)
	if err != nil {
		return domain.CleanRecord{}, fmt.Errorf("parse %s: %w", domain.ColumnLongitude, err)
	}

	rec := domain.CleanRecord{
		Row:           row,
		Location:      cells[idx[domain.ColumnLocation]],
		Disease:       cells[idx[domain.ColumnDisease]],
		DeathTollText: cells[idx[domain.ColumnDeathToll]],
		DiseaseKnown:  parseBool(cells[idx[domain.ColumnDiseaseKnown]]),
		Continent:     domain.ParseContinent(cells[idx[domain.ColumnContinent]]),
		Geo:           domain.Geo{Lat: lat, Lon: lon},
	}
	if s := strings.TrimSpace(cells[idx[domain.ColumnDeathTollEstimate]]); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.CleanRecord{}, fmt.Errorf("parse %s: %w", domain.ColumnDeathTollEstimate, err)
		}
		rec.DeathTollEstimate = &v
	}
	for i, name := range header {
		if domain.IsDerivedColumn(name) {
			continue
		}
		rec.Passthrough = append(rec.Passthrough, domain.Field{Name: name, Value: cells[i]})
	}
	rec.ID = domain.RecordID(rec.Location, rec.Disease, rec.DeathTollText, rec.Get(domain.ColumnYear))
	return rec, nil
}

func newCSVReader(src io.Reader) *csv.Reader {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = 0 // every row must match the header width
	return cr
}

// indexColumns maps column names to positions and verifies that the required
// columns, plus any extra ones, are present. Cells are addressed by name, so a
// repeated column name is rejected.
func indexColumns(header []string, extra ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if first, dup := idx[name]; dup {
			return nil, fmt.Errorf("%w: %q at columns %d and %d", ErrDuplicateColumn, name, first+1, i+1)
		}
		idx[name] = i
	}

	var missing []string
	for _, name := range append(append([]string{}, domain.RequiredColumns...), extra...) {
		if _, ok := idx[name]; !ok {
			missing = append(missing, strconv.Quote(name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// trimBOM strips a UTF-8 byte order mark from the first header cell.
func trimBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
