package domain

import "strings"

// Continent is one of the nine canonical region labels.
type Continent string

const (
	Africa       Continent = "Africa"
	Asia         Continent = "Asia"
	Europe       Continent = "Europe"
	NorthAmerica Continent = "North America"
	SouthAmerica Continent = "South America"
	Oceania      Continent = "Oceania"
	Multiple     Continent = "Multiple"
	Global       Continent = "Global"
	Unknown      Continent = "Unknown"
)

// Continents lists every label in display order.
var Continents = []Continent{
	Africa, Asia, Europe, NorthAmerica, SouthAmerica, Oceania, Multiple, Global, Unknown,
}

// ParseContinent canonicalizes a label: surrounding whitespace is trimmed and
// each word is title-cased before comparison. Anything outside the canonical
// set is Unknown.
func ParseContinent(s string) Continent {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	c := Continent(strings.Join(words, " "))
	for _, known := range Continents {
		if c == known {
			return c
		}
	}
	return Unknown
}

func (c Continent) String() string { return string(c) }
