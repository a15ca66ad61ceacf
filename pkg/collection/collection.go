// Package collection is the boundary to the host flashcard collection: the
// card, note and note type records a recalculation reads, and the bulk
// updates it writes back.
package collection

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// CardType is the scheduling state of a card.
type CardType int

const (
	CardTypeNew CardType = iota
	CardTypeLearning
	CardTypeReview
	CardTypeRelearning
)

// Queue is the queue a card sits in. Negative values are hidden queues.
type Queue int

const (
	QueueSuspended Queue = -1
	QueueNew       Queue = 0
)

// FieldSeparator joins note fields in storage.
const FieldSeparator = "\x1f"

// ErrNoteTypeNotFound is returned by NoteTypeByName.
var ErrNoteTypeNotFound = errors.New("collection: note type not found")

// NoteType describes a note model and its ordered field names.
type NoteType struct {
	ID     int64
	Name   string
	Fields []string
}

// FieldIndex returns the position of the named field or -1.
func (nt NoteType) FieldIndex(name string) int {
	for i, f := range nt.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

type Card struct {
	ID         int64
	NoteID     int64
	NoteTypeID int64
	Type       CardType
	Queue      Queue
	Due        int
	Interval   int
}

type Note struct {
	ID         int64
	NoteTypeID int64
	Fields     []string
	Tags       []string
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	n.Fields = append([]string(nil), n.Fields...)
	n.Tags = append([]string(nil), n.Tags...)
	return n
}

// CardNote pairs a card with a copy of its note.
type CardNote struct {
	Card Card
	Note Note
}

// CardQuery selects cards by note type and note tags.
type CardQuery struct {
	NoteTypeID  int64
	IncludeTags []string
	ExcludeTags []string
}

// Matches reports whether tags satisfy the include/exclude lists.
func (q CardQuery) Matches(tags []string) bool {
	for _, t := range q.IncludeTags {
		if !HasTag(tags, t) {
			return false
		}
	}
	for _, t := range q.ExcludeTags {
		if HasTag(tags, t) {
			return false
		}
	}
	return true
}

// Collection is what a recalculation needs from the host. Implementations
// serialise their own writes; callers batch all updates into one call each.
type Collection interface {
	NoteTypeByName(ctx context.Context, name string) (NoteType, error)
	Cards(ctx context.Context, q CardQuery) ([]CardNote, error)
	UpdateCards(ctx context.Context, cards []Card) error
	UpdateNotes(ctx context.Context, notes []Note) error
}

// ParseTags splits the space-separated tag string used in storage.
func ParseTags(s string) []string {
	return strings.Fields(s)
}

// JoinTags renders tags in storage form, padded with spaces on both sides.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

// HasTag compares case-insensitively.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag appends tag unless present.
func AddTag(tags []string, tag string) []string {
	if HasTag(tags, tag) {
		return tags
	}
	return append(tags, tag)
}

// RemoveTag drops every case-insensitive match of tag.
func RemoveTag(tags []string, tag string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if !strings.EqualFold(t, tag) {
			out = append(out, t)
		}
	}
	return out
}

func sortCardNotes(cs []CardNote) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Card.ID < cs[j].Card.ID })
}
