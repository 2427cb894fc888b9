// Command report prints the continent breakdown of a cleaned pandemic table
// as Markdown tables: records and estimated deaths per continent, the
// deadliest events, and optionally the recent run history from the SQLite
// mirror.
//
// Usage:
//
//	go run ./cmd/report -path data/PandemicChronoTable.csv -top 10 -sqlite data/pandemics.db
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/pandemic-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/mattn/go-runewidth"
)

func main() {
	path := flag.String("path", "data/PandemicChronoTable.csv", "cleaned CSV to summarize")
	top := flag.Int("top", 10, "number of deadliest events to list (0 to skip)")
	dbPath := flag.String("sqlite", "", "SQLite mirror to read the run history from")
	runs := flag.Int("runs", 5, "number of recent runs to list when -sqlite is set")
	flag.Parse()

	if err := run(os.Stdout, *path, *top, *dbPath, *runs); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, path string, top int, dbPath string, runs int) error {
	records, err := csvfile.ReadCleaned(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "## Continents (%d records)\n\n", len(records))
	writeTable(out, continentTable(domain.Summarize(records)))

	if top > 0 {
		fmt.Fprintf(out, "\n## Deadliest events\n\n")
		writeTable(out, deadliestTable(records, top))
	}

	if dbPath != "" {
		store, err := sqlite.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		history, err := store.Runs(context.Background(), runs)
		if err != nil {
			return fmt.Errorf("read run history: %w", err)
		}
		fmt.Fprintf(out, "\n## Recent runs\n\n")
		writeTable(out, runsTable(history))
	}
	return nil
}

func continentTable(summary []domain.ContinentSummary) [][]string {
	table := [][]string{{"Continent", "Records", "Share", "Estimated deaths"}}
	for _, s := range summary {
		table = append(table, []string{
			s.Continent.String(),
			strconv.Itoa(s.Records),
			strconv.FormatFloat(s.Share*100, 'f', 1, 64) + "%",
			formatCount(s.DeathToll),
		})
	}
	return table
}

func deadliestTable(records []domain.CleanRecord, n int) [][]string {
	ranked := make([]domain.CleanRecord, 0, len(records))
	for _, r := range records {
		if r.DeathTollEstimate != nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].DeathTollEstimate > *ranked[j].DeathTollEstimate
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	table := [][]string{{"Event", "Year", "Location", "Continent", "Estimated deaths"}}
	for _, r := range ranked {
		table = append(table, []string{
			runewidth.Truncate(r.Get("Event"), 40, "…"),
			r.Get(domain.ColumnYear),
			runewidth.Truncate(r.Location, 40, "…"),
			r.Continent.String(),
			formatCount(*r.DeathTollEstimate),
		})
	}
	return table
}

func runsTable(history []domain.BatchReport) [][]string {
	table := [][]string{{"Run", "Started", "Read", "Written", "Dropped"}}
	for _, r := range history {
		table = append(table, []string{
			r.RunID,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Read),
			strconv.Itoa(r.Written),
			strconv.Itoa(r.TotalDropped()),
		})
	}
	return table
}

// writeTable renders rows as a Markdown table, padding cells by display
// width so accented and wide characters stay aligned.
func writeTable(out io.Writer, table [][]string) {
	if len(table) == 0 {
		return
	}
	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell), 3)
		}
	}

	line := func(cells []string) {
		var sb strings.Builder
		sb.WriteString("|")
		for i, w := range widths {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cells[i], w))
			sb.WriteString(" |")
		}
		fmt.Fprintln(out, sb.String())
	}

	line(table[0])
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range table[1:] {
		line(row)
	}
}

// formatCount renders a whole number with thousands separators.
func formatCount(f float64) string {
	s := strconv.FormatFloat(f, 'f', 0, 64)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
