package offset

import (
	"testing"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

const ceiling = 2_047_483_647

func key(s string) []morph.Key { return []morph.Key{{Lemma: s, Inflection: s}} }

func TestSiblingIsOffset(t *testing.T) {
	s := Scheduler{Amount: 500_000, MorphLimit: 100, Ceiling: ceiling}
	changes := s.Schedule([]Candidate{
		{CardID: 2, Due: 200, StoredDue: 200, Unknowns: key("X")},
		{CardID: 1, Due: 100, StoredDue: 100, Unknowns: key("X")},
	})
	if len(changes) != 1 {
		t.Fatalf("expected one change, got %+v", changes)
	}
	if changes[0].CardID != 2 || changes[0].Due != 500_200 || changes[0].Unchanged {
		t.Fatalf("unexpected change %+v", changes[0])
	}
}

func TestOffsetIsCappedAtCeiling(t *testing.T) {
	s := Scheduler{Amount: 500_000, Ceiling: ceiling}
	changes := s.Schedule([]Candidate{
		{CardID: 1, Due: 100, Unknowns: key("X")},
		{CardID: 2, Due: ceiling - 10, Unknowns: key("X")},
	})
	if len(changes) != 1 || changes[0].Due != ceiling {
		t.Fatalf("expected cap at ceiling, got %+v", changes)
	}
}

func TestCardsWithoutSingleUnknownAreIgnored(t *testing.T) {
	s := Scheduler{Amount: 10, Ceiling: ceiling}
	two := []morph.Key{{Lemma: "X", Inflection: "X"}, {Lemma: "Y", Inflection: "Y"}}
	changes := s.Schedule([]Candidate{
		{CardID: 1, Due: 1, Unknowns: key("X")},
		{CardID: 2, Due: 2, Unknowns: two},
		{CardID: 3, Due: 3, Unknowns: nil},
	})
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestMorphLimitKeepsEarliestGroups(t *testing.T) {
	s := Scheduler{Amount: 1000, MorphLimit: 1, Ceiling: ceiling}
	changes := s.Schedule([]Candidate{
		{CardID: 10, Due: 50, Unknowns: key("late")},
		{CardID: 11, Due: 60, Unknowns: key("late")},
		{CardID: 20, Due: 5, Unknowns: key("early")},
		{CardID: 21, Due: 7, Unknowns: key("early")},
		{CardID: 22, Due: 6, Unknowns: key("early")},
	})
	if len(changes) != 2 {
		t.Fatalf("expected only the early group, got %+v", changes)
	}
	got := map[int64]int{}
	for _, c := range changes {
		got[c.CardID] = c.Due
	}
	if got[22] != 1006 || got[21] != 1007 {
		t.Fatalf("unexpected dues %v", got)
	}
}

func TestAlreadyOffsetCardIsUnchanged(t *testing.T) {
	s := Scheduler{Amount: 500, Ceiling: ceiling}
	changes := s.Schedule([]Candidate{
		{CardID: 1, Due: 100, StoredDue: 100, Unknowns: key("X")},
		{CardID: 2, Due: 200, StoredDue: 700, Unknowns: key("X")},
	})
	if len(changes) != 1 || !changes[0].Unchanged || changes[0].Due != 700 {
		t.Fatalf("expected an unchanged offset at 700, got %+v", changes)
	}
}

func TestTiesBreakOnCardID(t *testing.T) {
	s := Scheduler{Amount: 1, Ceiling: ceiling}
	changes := s.Schedule([]Candidate{
		{CardID: 9, Due: 100, Unknowns: key("X")},
		{CardID: 3, Due: 100, Unknowns: key("X")},
	})
	if len(changes) != 1 || changes[0].CardID != 9 {
		t.Fatalf("lower id should keep its place, got %+v", changes)
	}
}
