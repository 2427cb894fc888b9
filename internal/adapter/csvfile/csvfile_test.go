package csvfile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	"github.com/couchcryptid/pandemic-data-etl/internal/gazetteer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceTable = `Unnamed: 0,Event,Date,Location,Disease,Death toll (estimate),Ref.
0,Plague of Justinian,541–549,Byzantine Empire,Bubonic plague,15–100 million,[1]
1,Antonine Plague,165–180,Roman Empire,Unknown; possibly smallpox,5–10 million,[2]
2,Mystery fever,1800,Atlantis,Fever,"75,000-100,000",[3]
3,Cocoliztli,1545,"Puerto Rico, Dominican Republic, Mexico",Cocoliztli,Unknown,[4]
4,COVID-19,2019–present,Worldwide,COVID-19,296 (as of 31 December 2020),[5]
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PandemicChronoTable.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReader_Extract(t *testing.T) {
	path := writeFile(t, sourceTable)
	r := NewReader(path, []string{"Unnamed: 0", "Ref."}, discardLogger())

	records, err := r.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 5)

	first := records[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, "Byzantine Empire", first.Location)
	assert.Equal(t, "Bubonic plague", first.Disease)
	assert.Equal(t, "15–100 million", first.DeathTollText)
	assert.Equal(t, []domain.Field{
		{Name: "Event", Value: "Plague of Justinian"},
		{Name: "Date", Value: "541–549"},
		{Name: "Location", Value: "Byzantine Empire"},
		{Name: "Disease", Value: "Bubonic plague"},
		{Name: "Death toll (estimate)", Value: "15–100 million"},
	}, first.Passthrough)

	assert.Equal(t, "75,000-100,000", records[2].DeathTollText)
	assert.Equal(t, "Puerto Rico, Dominican Republic, Mexico", records[3].Location)
}

func TestReader_MissingRequiredColumn(t *testing.T) {
	path := writeFile(t, "Location,Disease\nChina,Plague\n")
	r := NewReader(path, nil, discardLogger())

	_, err := r.Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Contains(t, err.Error(), `"Death toll (estimate)"`)
}

func TestReader_EmptyFile(t *testing.T) {
	path := writeFile(t, "")
	r := NewReader(path, nil, discardLogger())

	_, err := r.Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestReader_RaggedRow(t *testing.T) {
	path := writeFile(t, "Location,Disease,Death toll (estimate)\nChina,Plague,100\nIndia,Cholera\n")
	r := NewReader(path, nil, discardLogger())

	_, err := r.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read row 2")
}

func TestReader_MissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "missing.csv"), nil, discardLogger())

	_, err := r.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open source table")
}

func TestReader_NeverDropsRequiredColumns(t *testing.T) {
	path := writeFile(t, "Location,Disease,Death toll (estimate)\nChina,Plague,100\n")
	r := NewReader(path, []string{"Location"}, discardLogger())

	records, err := r.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "China", records[0].Get("Location"))
}

func TestReader_IgnoresDerivedColumns(t *testing.T) {
	path := writeFile(t, "Location,Disease,Death toll (estimate),Continent,Latitude\nChina,Plague,100,Europe,1\n")
	r := NewReader(path, nil, discardLogger())

	records, err := r.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records[0].Passthrough, 3)
	assert.Empty(t, records[0].Get("Continent"))
}

func TestReader_StripsBOM(t *testing.T) {
	path := writeFile(t, "\ufeffLocation,Disease,Death toll (estimate)\nChina,Plague,100\n")
	r := NewReader(path, nil, discardLogger())

	records, err := r.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "China", records[0].Location)
}

func TestEncode_Columns(t *testing.T) {
	toll := 1e7
	records := []domain.CleanRecord{{
		Location:      "China",
		Disease:       "Plague",
		DeathTollText: "10m",
		DiseaseKnown:  true,
		Continent:     domain.Asia,
		Geo:           domain.Geo{Lat: 35.8, Lon: 104.1},
		Passthrough: []domain.Field{
			{Name: "Event", Value: "Third plague pandemic"},
			{Name: "Location", Value: "China"},
			{Name: "Disease", Value: "Plague"},
			{Name: "Death toll (estimate)", Value: "10m"},
		},
		DeathTollEstimate: &toll,
	}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Event,Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est)", lines[0])
	assert.Equal(t, "Third plague pandemic,China,Plague,10m,True,Asia,35.8,104.1,10000000", lines[1])
}

func TestEncode_EmptyBatchKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, nil))
	assert.Equal(t, "Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est)\n", buf.String())
}

func TestEncode_ExplicitColumnsWinOverRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []string{"Event", "Year", "Location", "Disease", "Death toll (estimate)"}, nil))
	assert.Equal(t, "Event,Year,Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est)\n", buf.String())
}

func TestWriter_AllRowsDroppedKeepsSourceColumns(t *testing.T) {
	path := writeFile(t, "Event,Year,Location,Disease,Death toll (estimate)\nMystery,600,Atlantis,unknown plague,unknown\n")

	reader := NewReader(path, nil, discardLogger())
	records := cleanWith(t, reader)
	require.Empty(t, records)

	writer := NewWriter(path, discardLogger())
	writer.SetColumns(reader.Columns())
	require.NoError(t, writer.Load(context.Background(), records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Event,Year,Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est)\n", string(data))

	cleaned, err := ReadCleaned(path)
	require.NoError(t, err)
	assert.Empty(t, cleaned)
}

func TestReader_Columns(t *testing.T) {
	r := NewReader(writeFile(t, sourceTable), []string{"Unnamed: 0", "Ref."}, discardLogger())
	assert.Empty(t, r.Columns())

	_, err := r.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Event", "Date", "Location", "Disease", "Death toll (estimate)"}, r.Columns())
}

func TestReader_DuplicateColumn(t *testing.T) {
	path := writeFile(t, "Note,Location,Disease,Death toll (estimate),Note\nA,China,Plague,100,B\n")

	_, err := NewReader(path, nil, discardLogger()).Extract(context.Background())
	require.ErrorIs(t, err, ErrDuplicateColumn)
	assert.Contains(t, err.Error(), `"Note" at columns 1 and 5`)
}

func TestReadCleaned_DuplicateColumn(t *testing.T) {
	path := writeFile(t, "Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est),Continent\n"+
		"China,Plague,100,True,Asia,35.8,104.1,100,Asia\n")

	_, err := ReadCleaned(path)
	require.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestWriter_OverwritesInPlace(t *testing.T) {
	path := writeFile(t, sourceTable)
	records := cleanFile(t, path)

	require.NoError(t, NewWriter(path, discardLogger()).Load(context.Background(), records))

	cleaned, err := ReadCleaned(path)
	require.NoError(t, err)
	require.Len(t, cleaned, len(records))
	for i := range records {
		assert.Equal(t, records[i].ID, cleaned[i].ID)
		assert.Equal(t, records[i].Continent, cleaned[i].Continent)
		assert.Equal(t, records[i].Geo, cleaned[i].Geo)
		assert.Equal(t, *records[i].DeathTollEstimate, *cleaned[i].DeathTollEstimate)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")
}

// Cleaning the cleaned file again must not change it.
func TestClean_IdempotentThroughCSV(t *testing.T) {
	path := writeFile(t, sourceTable)
	writer := NewWriter(path, discardLogger())

	first := cleanFile(t, path)
	require.NoError(t, writer.Load(context.Background(), first))
	firstBytes, err := os.ReadFile(path)
	require.NoError(t, err)

	second := cleanFile(t, path)
	require.NoError(t, writer.Load(context.Background(), second))
	secondBytes, err := os.ReadFile(path)
	require.NoError(t, err)

	ignoreRow := cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".Row" }, cmp.Ignore())
	if diff := cmp.Diff(first, second, ignoreRow); diff != "" {
		t.Errorf("second pass changed records (-first +second):\n%s", diff)
	}
	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func cleanFile(t *testing.T, path string) []domain.CleanRecord {
	t.Helper()
	return cleanWith(t, NewReader(path, []string{"Unnamed: 0", "Ref."}, discardLogger()))
}

func cleanWith(t *testing.T, r *Reader) []domain.CleanRecord {
	t.Helper()
	g, err := gazetteer.Default(gazetteer.MatchFirst)
	require.NoError(t, err)

	raws, err := r.Extract(context.Background())
	require.NoError(t, err)

	cleaner := domain.NewCleaner(g, nil, nil, discardLogger())
	records, _ := cleaner.Clean(context.Background(), raws)
	return records
}

func TestReadCleaned_MissingDerivedColumn(t *testing.T) {
	path := writeFile(t, "Location,Disease,Death toll (estimate)\nChina,Plague,100\n")

	_, err := ReadCleaned(path)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Contains(t, err.Error(), "Continent")
}
