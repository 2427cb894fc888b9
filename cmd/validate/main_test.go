package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Event,Year,Location,Disease,Death toll (estimate),Disease_Known,Continent,Latitude,Longitude,Death Toll (est)\n"

func writeTable(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clean.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+rows), 0o600))
	return path
}

func TestRun_ValidTable(t *testing.T) {
	path := writeTable(t, ""+
		"Third plague pandemic,1855,China,Bubonic plague,12-15 million,True,Asia,35.8,104.1,15000000\n"+
		"COVID-19 pandemic,2019,Worldwide,COVID-19,296 (as of 31 December 2020),True,Global,0,0,296\n")

	var out bytes.Buffer
	code := run(&out, path, "", "", "first")

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_DetectsWrongDerivations(t *testing.T) {
	path := writeTable(t, ""+
		"Third plague pandemic,1855,China,Bubonic plague,12-15 million,False,Europe,35.8,104.1,12\n")

	var out bytes.Buffer
	code := run(&out, path, "", "", "first")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Disease_Known=false disagrees")
	assert.Contains(t, out.String(), "continent Europe, tables say Asia")
	assert.Contains(t, out.String(), "should estimate 1.5e+07")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_DetectsUnknownContinentAndMissingToll(t *testing.T) {
	path := writeTable(t, "Mystery,600,Atlantis,unknown,unknown,False,Unknown,0,0,\n")

	var out bytes.Buffer
	code := run(&out, path, "", "", "first")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "continent is Unknown")
	assert.Contains(t, out.String(), "death toll estimate is empty")
}

func TestRun_FilterPolicy(t *testing.T) {
	path := writeTable(t, "Antonine Plague,165,Roman Empire,Unknown; possibly smallpox,5–10 million,False,Europe,41.9,12.5,10000000\n")

	var out bytes.Buffer
	assert.Equal(t, 0, run(&out, path, "", "", "first"), out.String())

	out.Reset()
	assert.Equal(t, 1, run(&out, path, "unknown_disease", "", "first"))
	assert.Contains(t, out.String(), "should have been dropped (unknown_disease)")
}

func TestRun_GeocodedRowsAreNoted(t *testing.T) {
	path := writeTable(t, "Oju epidemic,2014,Oju,Cholera,10m,True,Africa,7.25,8.4167,10000000\n")

	var out bytes.Buffer
	run(&out, path, "", "", "first")
	assert.Contains(t, out.String(), "geocoded centroids")
}

func TestRun_Fatal(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, filepath.Join(t.TempDir(), "missing.csv"), "", "", "first"))
	assert.Contains(t, out.String(), "FATAL: load cleaned table")

	out.Reset()
	assert.Equal(t, 1, run(&out, "unused.csv", "bogus", "", "first"))
	assert.Contains(t, out.String(), "FATAL")

	out.Reset()
	assert.Equal(t, 1, run(&out, "unused.csv", "", "", "fuzzy"))
}
