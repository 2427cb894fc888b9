package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// unknownMarkers mark a death toll as explicitly unknown.
	unknownMarkers = []string{"unknown", "n/a", "not known", "no data"}

	// remarkRe matches parenthetical and bracketed remarks such as
	// "(as of 31 December 2020)" or a citation marker "[12]".
	remarkRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// compactRe matches a number with an attached unit suffix: "10m", "2.5k", "1bn".
	compactRe = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)(bn|b|k|m)\b`)

	// numberRe matches digit runs with optional thousands commas and one decimal part.
	numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	unitWords = []struct {
		re    *regexp.Regexp
		scale float64
	}{
		{regexp.MustCompile(`\bbillion\b`), 1e9},
		{regexp.MustCompile(`\bmillion\b`), 1e6},
		{regexp.MustCompile(`\bthousand\b`), 1e3},
	}

	compactScale = map[string]float64{
		"k":  1e3,
		"m":  1e6,
		"b":  1e9,
		"bn": 1e9,
	}
)

// ParseDeathToll converts a free-text death toll estimate into its numeric
// upper bound. It returns false when the text is blank, explicitly unknown,
// or contains no number.
//
//	"5-10 million"                 -> 10000000
//	"75,000-100,000"               -> 100000
//	"296 (as of 31 December 2020)" -> 296
//	"10m"                          -> 10000000
func ParseDeathToll(text string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}
	for _, marker := range unknownMarkers {
		if strings.Contains(s, marker) {
			return 0, false
		}
	}

	// Figures inside remarks are dates and footnotes; use them only when the
	// text has no other figure.
	scope := remarkRe.ReplaceAllString(s, " ")
	if !numberRe.MatchString(scope) {
		scope = s
	}

	if v, ok := parseCompact(scope); ok {
		return v, true
	}

	numbers := parseNumbers(numberRe.FindAllString(scope, -1))
	if len(numbers) == 0 {
		return 0, false
	}
	return maxOf(numbers) * wordUnit(scope), true
}

// wordUnit returns the scale of the highest-priority whole-word unit in s, or 1.
func wordUnit(s string) float64 {
	for _, u := range unitWords {
		if u.re.MatchString(s) {
			return u.scale
		}
	}
	return 1
}

// parseCompact returns the largest compact-suffixed figure in s, scaled.
func parseCompact(s string) (float64, bool) {
	matches := compactRe.FindAllStringSubmatch(s, -1)
	found := false
	var best float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		v *= compactScale[m[2]]
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// parseNumbers strips thousands separators and parses each token, skipping failures.
func parseNumbers(tokens []string) []float64 {
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
