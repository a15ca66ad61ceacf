package morph

// ID indexes a morpheme inside a Table.
type ID uint32

// Table interns morphemes so that recurring (lemma, inflection) pairs are
// stored once and referenced by ID. It is not safe for concurrent mutation.
type Table struct {
	ids    map[Key]ID
	morphs []Morpheme
}

// NewTable returns an empty table with room for sizeHint morphs.
func NewTable(sizeHint int) *Table {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Table{
		ids:    make(map[Key]ID, sizeHint),
		morphs: make([]Morpheme, 0, sizeHint),
	}
}

// Intern returns the id of m, adding it if needed. When m is already present
// the stored intervals are raised to the maximum of both values.
func (t *Table) Intern(m Morpheme) ID {
	k := m.Key()
	if id, ok := t.Lookup(k); ok {
		cur := &t.morphs[id]
		if m.HighestLemmaInterval > cur.HighestLemmaInterval {
			cur.HighestLemmaInterval = m.HighestLemmaInterval
		}
		if m.HighestInflectionInterval > cur.HighestInflectionInterval {
			cur.HighestInflectionInterval = m.HighestInflectionInterval
		}
		return id
	}
	id := ID(len(t.morphs))
	t.ids[k] = id
	t.morphs = append(t.morphs, m)
	return id
}

// Lookup returns the id for k.
func (t *Table) Lookup(k Key) (ID, bool) {
	id, ok := t.ids[k]
	return id, ok
}

// Get returns the morph stored under id.
func (t *Table) Get(id ID) Morpheme { return t.morphs[id] }

// Len reports the number of distinct morphs.
func (t *Table) Len() int { return len(t.morphs) }

// Resolve maps ids back to morph values.
func (t *Table) Resolve(ids []ID) []Morpheme {
	out := make([]Morpheme, len(ids))
	for i, id := range ids {
		out[i] = t.morphs[id]
	}
	return out
}

// Each calls fn for every morph in insertion order.
func (t *Table) Each(fn func(ID, Morpheme)) {
	for i, m := range t.morphs {
		fn(ID(i), m)
	}
}
