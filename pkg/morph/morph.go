// Package morph defines the morpheme value type shared by every stage of a
// recalculation, and a small interning table that maps (lemma, inflection)
// pairs to compact integer ids.
package morph

import (
	"fmt"
	"strings"
)

// EvaluationMode selects whether learning status and priorities are judged
// per lemma or per inflection.
type EvaluationMode int

const (
	EvaluateLemma EvaluationMode = iota
	EvaluateInflection
)

func (m EvaluationMode) String() string {
	switch m {
	case EvaluateLemma:
		return "lemma"
	case EvaluateInflection:
		return "inflection"
	}
	return fmt.Sprintf("EvaluationMode(%d)", int(m))
}

// ParseEvaluationMode accepts "lemma" or "inflection" (case-insensitive).
func ParseEvaluationMode(s string) (EvaluationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lemma", "":
		return EvaluateLemma, nil
	case "inflection":
		return EvaluateInflection, nil
	}
	return EvaluateLemma, fmt.Errorf("unknown evaluation mode %q", s)
}

// Key is the identity of a morpheme.
type Key struct {
	Lemma      string
	Inflection string
}

// NoInterval marks a learning interval that has not been evaluated.
const NoInterval = -1

// Morpheme is a word-meaning unit found in card text. Equality is defined by
// Key alone; the interval fields are transient and filled from the cache.
type Morpheme struct {
	Lemma      string
	Inflection string

	// HighestLemmaInterval is the highest interval of any card containing a
	// morph with this lemma.
	HighestLemmaInterval int
	// HighestInflectionInterval is the highest interval of any card
	// containing exactly this (lemma, inflection) pair.
	HighestInflectionInterval int
}

// New returns a morpheme with unset intervals.
func New(lemma, inflection string) Morpheme {
	return Morpheme{
		Lemma:                     lemma,
		Inflection:                inflection,
		HighestLemmaInterval:      NoInterval,
		HighestInflectionInterval: NoInterval,
	}
}

func (m Morpheme) Key() Key { return Key{Lemma: m.Lemma, Inflection: m.Inflection} }

// Interval returns the learning interval relevant to mode. Unset intervals
// read as 0 (unknown).
func (m Morpheme) Interval(mode EvaluationMode) int {
	v := m.HighestLemmaInterval
	if mode == EvaluateInflection {
		v = m.HighestInflectionInterval
	}
	if v < 0 {
		return 0
	}
	return v
}

// PriorityKey is the key used to look the morph up in a priority map: in
// lemma mode the inflection is replaced by the lemma itself.
func (m Morpheme) PriorityKey(mode EvaluationMode) Key {
	if mode == EvaluateInflection {
		return m.Key()
	}
	return Key{Lemma: m.Lemma, Inflection: m.Lemma}
}

// Equal compares identity only.
func (m Morpheme) Equal(o Morpheme) bool { return m.Key() == o.Key() }

func (m Morpheme) String() string {
	if m.Lemma == m.Inflection {
		return m.Lemma
	}
	return m.Lemma + "[" + m.Inflection + "]"
}
