// Package status decides the morph status of a card and renders it as note
// tags and a queue change at the write-back boundary.
package status

import (
	"fmt"

	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/config"
)

// Status is the exclusive morph state of a card.
type Status int

const (
	// Learning: no unknown morphs, but some are still being learned. No
	// exclusive tag applies.
	Learning Status = iota
	Ready
	NotReady
	KnownAutomatically
	KnownManually
	// Reviewing cards are past the new state; only the fresh overlay is
	// managed for them.
	Reviewing
)

func (s Status) String() string {
	switch s {
	case Learning:
		return "learning"
	case Ready:
		return "ready"
	case NotReady:
		return "not-ready"
	case KnownAutomatically:
		return "known-automatically"
	case KnownManually:
		return "known-manually"
	case Reviewing:
		return "reviewing"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CardStatus is computed once per card.
type CardStatus struct {
	Status Status
	// Fresh is set when the card has any morph still being learned.
	Fresh bool
}

// Outcome is what Render decided for one card.
type Outcome struct {
	Tags         []string
	Queue        collection.Queue
	TagsChanged  bool
	QueueChanged bool
}

// Machine applies the tag and queue rules.
type Machine struct {
	Tags    config.Tags
	Suspend bool
}

// NewMachine reads the relevant settings from cfg.
func NewMachine(cfg config.Config) Machine {
	return Machine{Tags: cfg.Tags, Suspend: cfg.Recalc.SuspendKnownNewCards}
}

// Evaluate classifies a card from its unknown and learning morph counts.
func (m Machine) Evaluate(card collection.Card, tags []string, unknowns, learning int) CardStatus {
	st := CardStatus{Fresh: learning > 0}
	switch {
	case collection.HasTag(tags, m.Tags.KnownManually):
		st.Status = KnownManually
	case card.Type != collection.CardTypeNew:
		st.Status = Reviewing
	case unknowns == 0 && learning > 0:
		st.Status = Learning
	case unknowns == 0:
		st.Status = KnownAutomatically
	case unknowns == 1:
		st.Status = Ready
	default:
		st.Status = NotReady
	}
	return st
}

// Render turns st into tags and a queue for card. Rendering an already
// consistent card changes nothing.
func (m Machine) Render(st CardStatus, card collection.Card, tags []string) Outcome {
	out := append([]string(nil), tags...)
	queue := card.Queue

	set := func(tag string, on bool) {
		if on {
			out = collection.AddTag(out, tag)
		} else {
			out = collection.RemoveTag(out, tag)
		}
	}

	switch st.Status {
	case KnownManually:
		set(m.Tags.Ready, false)
		set(m.Tags.NotReady, false)
		set(m.Tags.KnownAutomatically, false)
	case Reviewing:
		set(m.Tags.Ready, false)
		set(m.Tags.NotReady, false)
	case Learning, KnownAutomatically:
		set(m.Tags.Ready, false)
		set(m.Tags.NotReady, false)
		set(m.Tags.KnownAutomatically, st.Status == KnownAutomatically)
		if m.Suspend {
			queue = collection.QueueSuspended
		}
	case Ready:
		set(m.Tags.NotReady, false)
		set(m.Tags.KnownAutomatically, false)
		set(m.Tags.Ready, true)
	case NotReady:
		set(m.Tags.Ready, false)
		set(m.Tags.KnownAutomatically, false)
		set(m.Tags.NotReady, true)
	}
	set(m.Tags.Fresh, st.Fresh)

	return Outcome{
		Tags:         out,
		Queue:        queue,
		TagsChanged:  !equalTags(tags, out),
		QueueChanged: queue != card.Queue,
	}
}

// Apply is Evaluate followed by Render.
func (m Machine) Apply(card collection.Card, tags []string, unknowns, learning int) (CardStatus, Outcome) {
	st := m.Evaluate(card, tags, unknowns, learning)
	return st, m.Render(st, card, tags)
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
