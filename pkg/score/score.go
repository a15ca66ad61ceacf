// Package score turns the morphs of a card into an integer sort key: lower
// scores are studied sooner.
package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/japaniel/ankimorphs/pkg/config"
	"github.com/japaniel/ankimorphs/pkg/priority"
)

const (
	// MorphUnknownPenalty is added per unknown morph. The tuning terms are
	// capped below it so unknown count always dominates.
	MorphUnknownPenalty = priority.Cutoff

	// DefaultScore is the highest score and the position of cards with
	// nothing to learn. It leaves room below the int32 limit for offsets.
	DefaultScore = 2_047_483_647

	maxTuning = MorphUnknownPenalty - 1
)

// Terms are the weighted components of a score before the unknown penalty.
type Terms struct {
	TotalPriorityAllMorphs         int
	TotalPriorityUnknownMorphs     int
	TotalPriorityLearningMorphs    int
	AvgPriorityAllMorphs           int
	AvgPriorityLearningMorphs      int
	LearningMorphsTargetDifference int
	AllMorphsTargetDifference      int
}

// Result is a score and how it was reached.
type Result struct {
	Score    int
	Unknowns int
	Tuning   int
	Terms    Terms
	// Default is set when the card short-circuited to DefaultScore.
	Default bool
}

// TargetDifference is the penalty for n falling outside [t.Low, t.High]:
// ceil(a·d² + b·d + c) with d the distance to the nearest bound, using the
// upper coefficients above the range and the lower ones below it.
func TargetDifference(n int, t config.Target) int {
	var d float64
	var c config.Coefficients
	switch {
	case n > t.High:
		d, c = float64(n-t.High), t.Upper
	case n < t.Low:
		d, c = float64(t.Low-n), t.Lower
	default:
		return 0
	}
	v := math.Ceil(c.A*d*d + c.B*d + c.C)
	if v > maxTuning {
		return maxTuning
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// Score computes the score of a card with metrics m.
func Score(alg config.Algorithm, moveKnownToEnd bool, m Metrics) Result {
	if m.NumMorphs == 0 || (moveKnownToEnd && m.NumUnknownMorphs() == 0) {
		return Result{Score: DefaultScore, Default: true}
	}

	terms := Terms{
		TotalPriorityAllMorphs:         alg.TotalPriorityAllMorphs * m.TotalPriorityAllMorphs,
		TotalPriorityUnknownMorphs:     alg.TotalPriorityUnknownMorphs * m.TotalPriorityUnknownMorphs,
		TotalPriorityLearningMorphs:    alg.TotalPriorityLearningMorphs * m.TotalPriorityLearningMorphs,
		AvgPriorityAllMorphs:           alg.AveragePriorityAllMorphs * m.AvgPriorityAllMorphs,
		AvgPriorityLearningMorphs:      alg.AveragePriorityLearningMorphs * m.AvgPriorityLearningMorphs,
		LearningMorphsTargetDifference: alg.LearningMorphsTargetDifference * TargetDifference(m.NumLearningMorphs, alg.LearningMorphsTarget),
		AllMorphsTargetDifference:      alg.AllMorphsTargetDifference * TargetDifference(m.NumMorphs, alg.AllMorphsTarget),
	}

	tuning := int64(0)
	for _, v := range terms.values() {
		tuning += int64(v)
		if tuning > maxTuning {
			tuning = maxTuning
			break
		}
	}
	if tuning < 0 {
		tuning = 0
	}

	total := int64(m.NumUnknownMorphs())*MorphUnknownPenalty + tuning
	if total > DefaultScore {
		total = DefaultScore
	}
	return Result{
		Score:    int(total),
		Unknowns: m.NumUnknownMorphs(),
		Tuning:   int(tuning),
		Terms:    terms,
	}
}

func (t Terms) values() []int {
	return []int{
		t.TotalPriorityAllMorphs,
		t.TotalPriorityUnknownMorphs,
		t.TotalPriorityLearningMorphs,
		t.AvgPriorityAllMorphs,
		t.AvgPriorityLearningMorphs,
		t.LearningMorphsTargetDifference,
		t.AllMorphsTargetDifference,
	}
}

// Describe renders the breakdown for the score-terms note field, one term
// per line.
func (r Result) Describe() string {
	if r.Default {
		return fmt.Sprintf("score: %d (default)", r.Score)
	}
	lines := []string{
		fmt.Sprintf("unknown morphs: %d × %d", r.Unknowns, MorphUnknownPenalty),
		fmt.Sprintf("total priority all morphs: %d", r.Terms.TotalPriorityAllMorphs),
		fmt.Sprintf("total priority unknown morphs: %d", r.Terms.TotalPriorityUnknownMorphs),
		fmt.Sprintf("total priority learning morphs: %d", r.Terms.TotalPriorityLearningMorphs),
		fmt.Sprintf("average priority all morphs: %d", r.Terms.AvgPriorityAllMorphs),
		fmt.Sprintf("average priority learning morphs: %d", r.Terms.AvgPriorityLearningMorphs),
		fmt.Sprintf("learning morphs target difference: %d", r.Terms.LearningMorphsTargetDifference),
		fmt.Sprintf("all morphs target difference: %d", r.Terms.AllMorphsTargetDifference),
		fmt.Sprintf("tuning: %d", r.Tuning),
		fmt.Sprintf("score: %d", r.Score),
	}
	return strings.Join(lines, "<br>")
}
