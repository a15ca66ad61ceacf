package collection

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Collection. It backs tests and dry runs.
type Memory struct {
	mu        sync.Mutex
	noteTypes map[int64]NoteType
	notes     map[int64]Note
	cards     map[int64]Card

	// CardWrites and NoteWrites count rows passed to the update methods.
	CardWrites int
	NoteWrites int
}

func NewMemory() *Memory {
	return &Memory{
		noteTypes: make(map[int64]NoteType),
		notes:     make(map[int64]Note),
		cards:     make(map[int64]Card),
	}
}

func (m *Memory) AddNoteType(nt NoteType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noteTypes[nt.ID] = nt
}

func (m *Memory) AddNote(n Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = n.Clone()
}

// AddCard stores c; its NoteTypeID is taken from the owning note.
func (m *Memory) AddCard(c Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[c.NoteID]
	if !ok {
		return fmt.Errorf("card %d: note %d not found", c.ID, c.NoteID)
	}
	c.NoteTypeID = n.NoteTypeID
	m.cards[c.ID] = c
	return nil
}

// Card returns the stored card.
func (m *Memory) Card(id int64) (Card, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	return c, ok
}

// Note returns a copy of the stored note.
func (m *Memory) Note(id int64) (Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	return n.Clone(), ok
}

func (m *Memory) NoteTypeByName(_ context.Context, name string) (NoteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nt := range m.noteTypes {
		if nt.Name == name {
			return nt, nil
		}
	}
	return NoteType{}, fmt.Errorf("%w: %q", ErrNoteTypeNotFound, name)
}

func (m *Memory) Cards(ctx context.Context, q CardQuery) ([]CardNote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CardNote
	for _, c := range m.cards {
		if c.NoteTypeID != q.NoteTypeID {
			continue
		}
		n := m.notes[c.NoteID]
		if !q.Matches(n.Tags) {
			continue
		}
		out = append(out, CardNote{Card: c, Note: n.Clone()})
	}
	sortCardNotes(out)
	return out, nil
}

func (m *Memory) UpdateCards(_ context.Context, cards []Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		cur, ok := m.cards[c.ID]
		if !ok {
			return fmt.Errorf("update card %d: not found", c.ID)
		}
		cur.Due = c.Due
		cur.Queue = c.Queue
		m.cards[c.ID] = cur
	}
	m.CardWrites += len(cards)
	return nil
}

func (m *Memory) UpdateNotes(_ context.Context, notes []Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range notes {
		cur, ok := m.notes[n.ID]
		if !ok {
			return fmt.Errorf("update note %d: not found", n.ID)
		}
		cur.Fields = append([]string(nil), n.Fields...)
		cur.Tags = append([]string(nil), n.Tags...)
		m.notes[n.ID] = cur
	}
	m.NoteWrites += len(notes)
	return nil
}
