package collection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite reads and writes an Anki collection file (schema 18: notetypes and
// fields tables, cards and notes with unix-second mod times).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the collection database at path.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect collection %s: %w", path, err)
	}
	return NewSQLite(conn), nil
}

// NewSQLite wraps an open connection.
func NewSQLite(conn *sql.DB) *SQLite {
	return &SQLite{db: conn, now: time.Now}
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) NoteTypeByName(ctx context.Context, name string) (NoteType, error) {
	nt := NoteType{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT id FROM notetypes WHERE name = ?`, name).Scan(&nt.ID)
	if err == sql.ErrNoRows {
		return NoteType{}, fmt.Errorf("%w: %q", ErrNoteTypeNotFound, name)
	}
	if err != nil {
		return NoteType{}, fmt.Errorf("query note type %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM fields WHERE ntid = ? ORDER BY ord`, nt.ID)
	if err != nil {
		return NoteType{}, fmt.Errorf("query fields of %q: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return NoteType{}, fmt.Errorf("scan field of %q: %w", name, err)
		}
		nt.Fields = append(nt.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return NoteType{}, err
	}
	return nt, nil
}

func (s *SQLite) Cards(ctx context.Context, q CardQuery) ([]CardNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.nid, n.mid, c.type, c.queue, c.due, c.ivl, n.flds, n.tags
		FROM cards c
		JOIN notes n ON n.id = c.nid
		WHERE n.mid = ?
		ORDER BY c.id`, q.NoteTypeID)
	if err != nil {
		return nil, fmt.Errorf("query cards of note type %d: %w", q.NoteTypeID, err)
	}
	defer rows.Close()

	var out []CardNote
	for rows.Next() {
		var cn CardNote
		var flds, tags string
		if err := rows.Scan(&cn.Card.ID, &cn.Card.NoteID, &cn.Card.NoteTypeID, &cn.Card.Type, &cn.Card.Queue,
			&cn.Card.Due, &cn.Card.Interval, &flds, &tags); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cn.Note = Note{
			ID:         cn.Card.NoteID,
			NoteTypeID: cn.Card.NoteTypeID,
			Fields:     strings.Split(flds, FieldSeparator),
			Tags:       ParseTags(tags),
		}
		if !q.Matches(cn.Note.Tags) {
			continue
		}
		out = append(out, cn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCards writes due and queue of every card in one transaction.
func (s *SQLite) UpdateCards(ctx context.Context, cards []Card) error {
	if len(cards) == 0 {
		return nil
	}
	mod := s.now().Unix()
	return s.inTx(ctx, `UPDATE cards SET due = ?, queue = ?, mod = ?, usn = -1 WHERE id = ?`, len(cards), func(i int) []interface{} {
		c := cards[i]
		return []interface{}{c.Due, c.Queue, mod, c.ID}
	})
}

// UpdateNotes writes fields and tags of every note in one transaction.
func (s *SQLite) UpdateNotes(ctx context.Context, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	mod := s.now().Unix()
	return s.inTx(ctx, `UPDATE notes SET flds = ?, tags = ?, mod = ?, usn = -1 WHERE id = ?`, len(notes), func(i int) []interface{} {
		n := notes[i]
		return []interface{}{strings.Join(n.Fields, FieldSeparator), JoinTags(n.Tags), mod, n.ID}
	})
}

func (s *SQLite) inTx(ctx context.Context, query string, n int, args func(i int) []interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin collection update: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare collection update: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("collection update: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit collection update (%d rows): %w", n, err)
	}
	return nil
}
