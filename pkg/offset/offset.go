// Package offset spreads out new cards that share their only unknown morph,
// so the morph is met on one card first and its siblings come later.
package offset

import (
	"sort"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Candidate is a scored card considered for offsetting.
type Candidate struct {
	CardID int64
	// Due is the position assigned by scoring.
	Due int
	// StoredDue is the position currently saved in the collection.
	StoredDue int
	// Unknowns are the card's unknown morphs, evaluated against the cache at
	// offset time. Only cards with exactly one take part.
	Unknowns []morph.Key
}

// Change is the new position of one offset card.
type Change struct {
	CardID int64
	Due    int
	// Unchanged is set when Due equals StoredDue: the card was offset by an
	// earlier run and needs no write for its position.
	Unchanged bool
}

// Scheduler pushes sibling cards back by Amount.
type Scheduler struct {
	Amount int
	// MorphLimit bounds how many morph groups are processed; groups are
	// taken in order of their earliest card. Zero means no limit.
	MorphLimit int
	// Ceiling caps every offset position.
	Ceiling int
}

type group struct {
	key   morph.Key
	cards []Candidate
}

// Schedule returns the changes for every non-earliest card of the first
// MorphLimit groups. Within a group the card with the lowest Due (then
// lowest id) keeps its position.
func (s Scheduler) Schedule(cands []Candidate) []Change {
	byMorph := make(map[morph.Key]*group)
	var groups []*group
	for _, c := range cands {
		if len(c.Unknowns) != 1 {
			continue
		}
		k := c.Unknowns[0]
		g, ok := byMorph[k]
		if !ok {
			g = &group{key: k}
			byMorph[k] = g
			groups = append(groups, g)
		}
		g.cards = append(g.cards, c)
	}

	for _, g := range groups {
		sort.Slice(g.cards, func(i, j int) bool {
			a, b := g.cards[i], g.cards[j]
			if a.Due != b.Due {
				return a.Due < b.Due
			}
			return a.CardID < b.CardID
		})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].cards[0], groups[j].cards[0]
		if a.Due != b.Due {
			return a.Due < b.Due
		}
		return a.CardID < b.CardID
	})
	if s.MorphLimit > 0 && len(groups) > s.MorphLimit {
		groups = groups[:s.MorphLimit]
	}

	var out []Change
	for _, g := range groups {
		for _, c := range g.cards[1:] {
			due := s.offsetDue(c.Due)
			out = append(out, Change{CardID: c.CardID, Due: due, Unchanged: due == c.StoredDue})
		}
	}
	return out
}

func (s Scheduler) offsetDue(due int) int {
	v := int64(due) + int64(s.Amount)
	if v > int64(s.Ceiling) {
		return s.Ceiling
	}
	return int(v)
}
