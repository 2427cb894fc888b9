package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
)

// Writer persists cleaned records as CSV.
// It implements pipeline.Loader.
type Writer struct {
	path    string
	logger  *slog.Logger
	columns []string
}

// NewWriter creates a Writer for path. The path may be the source file, in
// which case the source is overwritten.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "csv" }

// SetColumns fixes the passthrough columns of the output table, so the
// header survives even when every row is dropped.
func (w *Writer) SetColumns(columns []string) {
	w.columns = append([]string(nil), columns...)
}

// Load writes records to a temporary file in the destination directory and
// renames it over the destination, so readers never see a partial table.
func (w *Writer) Load(ctx context.Context, records []domain.CleanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := Encode(tmp, w.columns, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace %s: %w", w.path, err)
	}

	w.logger.Info("cleaned table written", "path", w.path, "rows", len(records))
	return nil
}

// Encode writes records as CSV: the passthrough columns followed by the
// derived columns. When columns is empty the passthrough columns of the first
// record are used.
func Encode(dst io.Writer, columns []string, records []domain.CleanRecord) error {
	cw := csv.NewWriter(dst)

	header := Header(columns, records)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	passthrough := header[:len(header)-len(domain.DerivedColumns)]
	for _, rec := range records {
		row := make([]string, 0, len(header))
		for _, name := range passthrough {
			row = append(row, rec.Get(name))
		}
		row = append(row,
			formatBool(rec.DiseaseKnown),
			rec.Continent.String(),
			formatFloat(rec.Geo.Lat),
			formatFloat(rec.Geo.Lon),
			formatEstimate(rec.DeathTollEstimate),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", rec.Row, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

// Header returns the output column order. Without explicit columns it falls
// back to the first record, and an empty batch still gets the required and
// derived columns so the file stays readable.
func Header(columns []string, records []domain.CleanRecord) []string {
	var header []string
	switch {
	case len(columns) > 0:
		header = append(header, columns...)
	case len(records) > 0:
		for _, f := range records[0].Passthrough {
			header = append(header, f.Name)
		}
	default:
		header = append(header, domain.RequiredColumns...)
	}
	return append(header, domain.DerivedColumns...)
}

// formatBool matches the True/False spelling the dashboards read.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// formatFloat uses the shortest representation that parses back exactly.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatEstimate(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
