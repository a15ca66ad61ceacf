package cache

import "github.com/japaniel/ankimorphs/pkg/morph"

// CardRecord is one cached card.
type CardRecord struct {
	CardID     int64
	NoteID     int64
	NoteTypeID int64
	CardType   int
	Tags       string
}

// MorphRecord is one cached morph with its highest learning intervals.
type MorphRecord struct {
	Lemma                     string
	Inflection                string
	HighestLemmaInterval      int
	HighestInflectionInterval int
}

// CardMorphLink joins a card with a morph found in its text.
type CardMorphLink struct {
	CardID     int64
	Lemma      string
	Inflection string
}

// CardMorphMap is the in-memory view of the cache used by scoring. Morphs are
// interned once in Table; each card holds ids into it.
type CardMorphMap struct {
	Table *morph.Table
	Cards map[int64][]morph.ID
}

// Morphs returns the morphs of cardID. ok is false when the card has none
// (never extracted, or its text produced no morphs).
func (m *CardMorphMap) Morphs(cardID int64) ([]morph.Morpheme, bool) {
	ids, ok := m.Cards[cardID]
	if !ok {
		return nil, false
	}
	return m.Table.Resolve(ids), true
}

// Len reports the number of cards with at least one morph.
func (m *CardMorphMap) Len() int { return len(m.Cards) }

// Occurrence counts how many card/morph links reference a morph key.
type Occurrence struct {
	Key   morph.Key
	Count int
}
