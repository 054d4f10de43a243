package diagnosis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/taxonomy"
)

// Scoring weights. These are tuned defaults, not compatibility
// constants: defining characteristics carry more evidential weight than
// related/risk factors.
var (
	CharacteristicWeight = 0.6
	FactorWeight         = 0.4
)

// entryMatch accumulates, per taxonomy entry, the best observation
// weight seen for each matched field token. A field counts once no
// matter how many observations hit it.
type entryMatch struct {
	characteristics map[string]float64
	factors         map[string]float64
}

// Match scores every taxonomy entry reachable from the observation set
// through the inverted index and returns candidates above the
// acceptance threshold, sorted by score descending with ties broken by
// ascending taxonomy id. Entries with no matching field are excluded
// outright. The matcher never accepts a diagnosis itself — selection
// stays with the nurse.
func Match(obs []assessment.Observation, idx *taxonomy.Index, threshold float64) []Candidate {
	matches := make(map[string]*entryMatch)

	for _, o := range obs {
		if o.Polarity != assessment.PolarityPresent {
			continue
		}
		refs := idx.RefsForToken(o.Token)
		if refs == nil {
			continue
		}
		switch o.Category {
		case assessment.CategoryCharacteristic:
			for _, id := range refs.CharacteristicIDs {
				m := matchFor(matches, id)
				if o.Weight > m.characteristics[o.Token] {
					m.characteristics[o.Token] = o.Weight
				}
			}
		case assessment.CategoryFactor:
			for _, id := range refs.FactorIDs {
				m := matchFor(matches, id)
				if o.Weight > m.factors[o.Token] {
					m.factors[o.Token] = o.Weight
				}
			}
		}
	}

	candidates := make([]Candidate, 0, len(matches))
	for id, m := range matches {
		entry, err := idx.Lookup(id)
		if err != nil {
			continue
		}
		c := score(entry, m)
		if c.Score > threshold {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TaxonomyID < candidates[j].TaxonomyID
	})
	return candidates
}

func matchFor(matches map[string]*entryMatch, id string) *entryMatch {
	m, ok := matches[id]
	if !ok {
		m = &entryMatch{
			characteristics: make(map[string]float64),
			factors:         make(map[string]float64),
		}
		matches[id] = m
	}
	return m
}

func score(entry *taxonomy.Entry, m *entryMatch) Candidate {
	var s float64
	if n := len(entry.DefiningCharacteristics); n > 0 {
		s += weightSum(m.characteristics) / float64(n) * CharacteristicWeight
	}
	if n := len(entry.Factors()); n > 0 {
		s += weightSum(m.factors) / float64(n) * FactorWeight
	}
	if s > 1 {
		s = 1
	}

	matchedChars := sortedKeys(m.characteristics)
	matchedFactors := sortedKeys(m.factors)

	return Candidate{
		TaxonomyID:             entry.ID,
		Label:                  entry.Label,
		Score:                  s,
		MatchedCharacteristics: matchedChars,
		MatchedFactors:         matchedFactors,
		Rationale:              rationale(entry, matchedChars, matchedFactors),
	}
}

func rationale(entry *taxonomy.Entry, chars, factors []string) string {
	var parts []string
	if len(chars) > 0 {
		parts = append(parts, fmt.Sprintf("matched %d of %d defining characteristics (%s)",
			len(chars), len(entry.DefiningCharacteristics), strings.Join(chars, ", ")))
	}
	if len(factors) > 0 {
		parts = append(parts, fmt.Sprintf("matched %d of %d related/risk factors (%s)",
			len(factors), len(entry.Factors()), strings.Join(factors, ", ")))
	}
	return strings.Join(parts, "; ")
}

func weightSum(fields map[string]float64) float64 {
	var sum float64
	for _, w := range fields {
		sum += w
	}
	return sum
}

func sortedKeys(fields map[string]float64) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
