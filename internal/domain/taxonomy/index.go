package taxonomy

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by Lookup for an unknown entry id. Callers
// treat it as recoverable (re-prompt the selection) rather than fatal.
var ErrNotFound = errors.New("taxonomy entry not found")

// TokenRefs lists the entry ids referencing a normalized token, split by
// the field kind the token came from. Ids are sorted ascending.
type TokenRefs struct {
	CharacteristicIDs []string
	FactorIDs         []string
}

// Index is the query-ready form of a loaded taxonomy. It is built once
// at load time and never mutated afterwards, so concurrent readers need
// no locking.
type Index struct {
	entries map[string]*Entry
	ordered []*Entry
	tokens  map[string]*TokenRefs
}

func newIndex(entries []*Entry) *Index {
	idx := &Index{
		entries: make(map[string]*Entry, len(entries)),
		ordered: make([]*Entry, 0, len(entries)),
		tokens:  make(map[string]*TokenRefs),
	}
	for _, e := range entries {
		idx.entries[e.ID] = e
		idx.ordered = append(idx.ordered, e)
		for _, c := range e.DefiningCharacteristics {
			refs := idx.refsFor(NormalizeToken(c))
			refs.CharacteristicIDs = appendUnique(refs.CharacteristicIDs, e.ID)
		}
		for _, f := range e.Factors() {
			refs := idx.refsFor(NormalizeToken(f))
			refs.FactorIDs = appendUnique(refs.FactorIDs, e.ID)
		}
	}
	sort.Slice(idx.ordered, func(i, j int) bool { return idx.ordered[i].ID < idx.ordered[j].ID })
	for _, refs := range idx.tokens {
		sort.Strings(refs.CharacteristicIDs)
		sort.Strings(refs.FactorIDs)
	}
	return idx
}

func (idx *Index) refsFor(token string) *TokenRefs {
	refs, ok := idx.tokens[token]
	if !ok {
		refs = &TokenRefs{}
		idx.tokens[token] = refs
	}
	return refs
}

// Lookup returns the entry with the given id, or ErrNotFound.
func (idx *Index) Lookup(id string) (*Entry, error) {
	e, ok := idx.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// All returns every entry ordered ascending by id.
func (idx *Index) All() []*Entry {
	return idx.ordered
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.ordered)
}

// RefsForToken returns the entries referencing the token, or nil if the
// token is not part of the taxonomy vocabulary. The token is normalized
// before lookup.
func (idx *Index) RefsForToken(token string) *TokenRefs {
	return idx.tokens[NormalizeToken(token)]
}

// Vocabulary returns every normalized characteristic/factor token known
// to the taxonomy, sorted ascending. The assessment normalizer scans
// free text against this list.
func (idx *Index) Vocabulary() []string {
	out := make([]string, 0, len(idx.tokens))
	for tok := range idx.tokens {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// NormalizeToken case-folds a token and collapses internal whitespace.
// All token comparisons in the matching pipeline go through this, which
// keeps matches auditable: two strings match iff their normal forms are
// equal or one contains the other.
func NormalizeToken(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
