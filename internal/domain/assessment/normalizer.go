package assessment

import (
	"sort"
	"strings"

	"github.com/carenote/carenote/internal/domain/taxonomy"
)

// Structured fields map to observation categories through this fixed
// table. A field name outside the table is reported, not guessed at.
var fieldCategories = map[string]Category{
	"gait":          CategoryCharacteristic,
	"mobility":      CategoryCharacteristic,
	"pain":          CategoryCharacteristic,
	"breathing":     CategoryCharacteristic,
	"skin":          CategoryCharacteristic,
	"mental_status": CategoryCharacteristic,
	"elimination":   CategoryCharacteristic,
	"sleep":         CategoryCharacteristic,
	"appetite":      CategoryCharacteristic,
	"fall_history":  CategoryFactor,
	"vision":        CategoryFactor,
	"hearing":       CategoryFactor,
	"nutrition":     CategoryFactor,
	"medication":    CategoryFactor,
	"environment":   CategoryFactor,
	"support":       CategoryFactor,
	"history":       CategoryFactor,
}

const (
	structuredWeight = 1.0
	freeTextWeight   = 0.5
)

// Negation prefixes a structured field value may carry. "no falls" and
// "denies pain" record the finding as absent rather than dropping it.
var absentPrefixes = []string{"no ", "denies ", "without "}

// Normalize converts a raw assessment into the canonical observation
// set used for matching. Malformed structured fields are collected into
// the returned FieldError slice; free-text tokens with no counterpart
// in the taxonomy vocabulary are dropped silently. Output order is
// stable for identical input: structured fields in input order, then
// free-text matches ordered by category and token.
func Normalize(raw RawAssessment, idx *taxonomy.Index) ([]Observation, []FieldError) {
	var (
		obs  []Observation
		errs []FieldError
		seen = make(map[string]bool)
	)

	record := func(o Observation) {
		key := string(o.Category) + "\x00" + o.Token
		if seen[key] {
			return
		}
		seen[key] = true
		obs = append(obs, o)
	}

	for _, f := range raw.Fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		cat, ok := fieldCategories[name]
		if !ok {
			errs = append(errs, FieldError{Field: f.Name, Reason: "unrecognized field"})
			continue
		}
		value := strings.TrimSpace(f.Value)
		if value == "" {
			errs = append(errs, FieldError{Field: f.Name, Reason: "empty value"})
			continue
		}

		polarity := PolarityPresent
		lower := strings.ToLower(value)
		for _, prefix := range absentPrefixes {
			if strings.HasPrefix(lower, prefix) {
				polarity = PolarityAbsent
				value = value[len(prefix):]
				break
			}
		}

		record(Observation{
			Category: cat,
			Token:    taxonomy.NormalizeToken(value),
			Polarity: polarity,
			Weight:   structuredWeight,
		})
	}

	obs = append(obs, matchFreeText(raw, idx, seen)...)
	return obs, errs
}

// matchFreeText scans the note text for taxonomy vocabulary tokens.
// Matching is normalized substring containment — deliberately not
// fuzzy, so every match can be traced back to the exact wording.
func matchFreeText(raw RawAssessment, idx *taxonomy.Index, seen map[string]bool) []Observation {
	text := taxonomy.NormalizeToken(strings.Join([]string{
		raw.SubjectiveNotes, raw.ObjectiveNotes, raw.Narrative,
	}, " "))
	if text == "" {
		return nil
	}

	var out []Observation
	for _, token := range idx.Vocabulary() {
		if !strings.Contains(text, token) {
			continue
		}
		refs := idx.RefsForToken(token)
		if refs == nil {
			continue
		}
		if len(refs.CharacteristicIDs) > 0 && !seen[string(CategoryCharacteristic)+"\x00"+token] {
			out = append(out, Observation{
				Category: CategoryCharacteristic,
				Token:    token,
				Polarity: PolarityPresent,
				Weight:   freeTextWeight,
			})
		}
		if len(refs.FactorIDs) > 0 && !seen[string(CategoryFactor)+"\x00"+token] {
			out = append(out, Observation{
				Category: CategoryFactor,
				Token:    token,
				Polarity: PolarityPresent,
				Weight:   freeTextWeight,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Token < out[j].Token
	})
	for _, o := range out {
		seen[string(o.Category)+"\x00"+o.Token] = true
	}
	return out
}
