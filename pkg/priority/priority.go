// Package priority resolves how common each morph is. Priorities come either
// from morph frequencies in the cached collection or from a CSV frequency
// file / study plan; lower numbers are more important.
package priority

import (
	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Cutoff is the first priority treated as "not found". Rows and values at or
// beyond it are ignored when reading files.
const Cutoff = 1_000_000

// Map assigns priorities to morph keys. In lemma mode keys are
// {lemma, lemma}; in inflection mode {lemma, inflection}.
type Map map[morph.Key]int

// Default is the priority of a morph missing from m: one past the lowest
// ranked entry.
func (m Map) Default() int { return len(m) + 1 }

// Of returns the priority of mm under mode, or Default when absent.
func (m Map) Of(mm morph.Morpheme, mode morph.EvaluationMode) int {
	if p, ok := m[mm.PriorityKey(mode)]; ok {
		return p
	}
	return m.Default()
}

// FromOccurrences ranks keys in the given order: rank 0 is the first.
func FromOccurrences(keys []morph.Key) Map {
	out := make(Map, len(keys))
	for rank, k := range keys {
		if rank >= Cutoff {
			break
		}
		if _, ok := out[k]; !ok {
			out[k] = rank
		}
	}
	return out
}
