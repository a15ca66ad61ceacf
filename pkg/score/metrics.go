package score

import (
	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/morph"
	"github.com/japaniel/ankimorphs/pkg/priority"
)

// Metrics summarises the morphs of one card.
type Metrics struct {
	NumMorphs         int
	UnknownMorphs     []morph.Morpheme
	NumLearningMorphs int

	TotalPriorityAllMorphs      int
	TotalPriorityUnknownMorphs  int
	TotalPriorityLearningMorphs int

	AvgPriorityAllMorphs      int
	AvgPriorityLearningMorphs int
}

// NumUnknownMorphs is len(UnknownMorphs).
func (m Metrics) NumUnknownMorphs() int { return len(m.UnknownMorphs) }

// Evaluator holds what every card's metrics are computed against.
type Evaluator struct {
	Mode          morph.EvaluationMode
	KnownInterval int
	Priorities    priority.Map
}

// Classify reports whether mm is unknown or learning under e. A morph that
// is neither is known.
func (e Evaluator) Classify(mm morph.Morpheme) (unknown, learning bool) {
	ivl := mm.Interval(e.Mode)
	switch {
	case ivl == 0:
		return true, false
	case ivl < e.KnownInterval:
		return false, true
	}
	return false, false
}

// Compute aggregates morphs. Morphs missing from the priority map count with
// the map's default priority.
func (e Evaluator) Compute(morphs []morph.Morpheme) Metrics {
	var m Metrics
	if len(morphs) == 0 {
		return m
	}
	for _, mm := range morphs {
		p := e.Priorities.Of(mm, e.Mode)
		m.TotalPriorityAllMorphs += p

		unknown, learning := e.Classify(mm)
		switch {
		case unknown:
			m.UnknownMorphs = append(m.UnknownMorphs, mm)
			m.TotalPriorityUnknownMorphs += p
		case learning:
			m.NumLearningMorphs++
			m.TotalPriorityLearningMorphs += p
		}
	}
	m.NumMorphs = len(morphs)
	m.AvgPriorityAllMorphs = m.TotalPriorityAllMorphs / m.NumMorphs
	if m.NumLearningMorphs > 0 {
		m.AvgPriorityLearningMorphs = m.TotalPriorityLearningMorphs / m.NumLearningMorphs
	}
	return m
}

// ComputeCard looks cardID up in cm. A card missing from the cache yields
// empty metrics.
func (e Evaluator) ComputeCard(cm *cache.CardMorphMap, cardID int64) Metrics {
	if cm == nil {
		return Metrics{}
	}
	morphs, ok := cm.Morphs(cardID)
	if !ok {
		return Metrics{}
	}
	return e.Compute(morphs)
}
