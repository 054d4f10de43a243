package careplan

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carenote/carenote/internal/domain/taxonomy"
)

// Generate expands the accepted diagnoses into a care plan: one item per
// suggested outcome of each accepted entry, interventions copied from
// the entry and deduplicated case-insensitively across the whole plan.
//
// When an existing plan is supplied the result is a merge: overridden
// items are preserved verbatim and shield their goal from regeneration,
// non-overridden items for still-accepted diagnoses are rebuilt keeping
// their ids, items for dropped diagnoses are removed, and overridden
// items that reference a dropped diagnosis are dropped with a warning.
// Regenerating an unchanged plan returns a deeply equal plan.
func Generate(accepted []string, idx *taxonomy.Index, existing []Item) ([]Item, []Warning, error) {
	acceptedSet := make(map[string]bool, len(accepted))
	entries := make([]*taxonomy.Entry, 0, len(accepted))
	for _, id := range accepted {
		if acceptedSet[id] {
			continue
		}
		entry, err := idx.Lookup(id)
		if err != nil {
			return nil, nil, fmt.Errorf("accepted diagnosis %q: %w", id, err)
		}
		acceptedSet[id] = true
		entries = append(entries, entry)
	}

	var warnings []Warning
	overridden := make(map[string][]Item)
	previousIDs := make(map[string]uuid.UUID)
	for _, item := range existing {
		if !item.Overridden {
			previousIDs[itemKey(item.DiagnosisID, item.Goal)] = item.ID
			continue
		}
		if !acceptedSet[item.DiagnosisID] {
			warnings = append(warnings, Warning{
				ItemID:      item.ID,
				DiagnosisID: item.DiagnosisID,
				Reason:      "overridden item references a diagnosis no longer accepted",
			})
			continue
		}
		overridden[item.DiagnosisID] = append(overridden[item.DiagnosisID], item)
	}

	var plan []Item
	for _, entry := range entries {
		kept := overridden[entry.ID]
		plan = append(plan, kept...)

		covered := make(map[string]bool, len(kept))
		for _, item := range kept {
			covered[strings.ToLower(item.Goal)] = true
		}
		for _, goal := range entry.SuggestedOutcomes {
			if covered[strings.ToLower(goal)] {
				continue
			}
			id, ok := previousIDs[itemKey(entry.ID, goal)]
			if !ok {
				id = uuid.New()
			}
			plan = append(plan, Item{
				ID:            id,
				DiagnosisID:   entry.ID,
				Goal:          goal,
				Interventions: append([]string(nil), entry.SuggestedInterventions...),
				Source:        SourceTaxonomy,
			})
		}
	}

	dedupeInterventions(plan)
	return plan, warnings, nil
}

// dedupeInterventions removes case-insensitive repeats across the plan,
// first occurrence wins. Overridden items are left verbatim but still
// claim their interventions.
func dedupeInterventions(plan []Item) {
	seen := make(map[string]bool)
	for i := range plan {
		if plan[i].Overridden {
			for _, iv := range plan[i].Interventions {
				seen[strings.ToLower(iv)] = true
			}
			continue
		}
		var kept []string
		for _, iv := range plan[i].Interventions {
			key := strings.ToLower(iv)
			if seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, iv)
		}
		plan[i].Interventions = kept
	}
}

func itemKey(diagnosisID, goal string) string {
	return diagnosisID + "\x00" + strings.ToLower(goal)
}
