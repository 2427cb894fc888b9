package domain

// ContinentSummary aggregates cleaned records for one continent label.
type ContinentSummary struct {
	Continent Continent `json:"continent"`
	Records   int       `json:"records"`
	DeathToll float64   `json:"death_toll"`
	// Share is this continent's fraction of all records, 0.0–1.0.
	Share float64 `json:"share"`
}

// Summarize groups records by continent in canonical label order. Labels
// without records are omitted.
func Summarize(records []CleanRecord) []ContinentSummary {
	byContinent := make(map[Continent]*ContinentSummary)
	for _, r := range records {
		s, ok := byContinent[r.Continent]
		if !ok {
			s = &ContinentSummary{Continent: r.Continent}
			byContinent[r.Continent] = s
		}
		s.Records++
		if r.DeathTollEstimate != nil {
			s.DeathToll += *r.DeathTollEstimate
		}
	}

	out := make([]ContinentSummary, 0, len(byContinent))
	for _, c := range Continents {
		s, ok := byContinent[c]
		if !ok {
			continue
		}
		s.Share = float64(s.Records) / float64(len(records))
		out = append(out, *s)
	}
	return out
}
