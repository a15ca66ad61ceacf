package cache

import (
	"database/sql"
	"fmt"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Prepare(query string) (*sql.Stmt, error)
}

// insertEach prepares query once and executes it for every row; duplicate
// keys are ignored by the INSERT OR IGNORE statements it is used with.
func insertEach(db DBExecutor, query string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// InsertCards stores card rows. Re-inserting an existing card is a no-op.
func InsertCards(db DBExecutor, cards []CardRecord) error {
	err := insertEach(db, `INSERT OR IGNORE INTO cards (card_id, note_id, note_type_id, card_type, tags) VALUES (?, ?, ?, ?, ?)`,
		len(cards), func(i int) []interface{} {
			c := cards[i]
			return []interface{}{c.CardID, c.NoteID, c.NoteTypeID, c.CardType, c.Tags}
		})
	if err != nil {
		return fmt.Errorf("insert cards: %w", err)
	}
	return nil
}

// InsertMorphs stores morph rows. Re-inserting an existing morph is a no-op.
func InsertMorphs(db DBExecutor, morphs []MorphRecord) error {
	err := insertEach(db, `INSERT OR IGNORE INTO morphs (lemma, inflection, highest_lemma_learning_interval, highest_inflection_learning_interval) VALUES (?, ?, ?, ?)`,
		len(morphs), func(i int) []interface{} {
			m := morphs[i]
			return []interface{}{m.Lemma, m.Inflection, m.HighestLemmaInterval, m.HighestInflectionInterval}
		})
	if err != nil {
		return fmt.Errorf("insert morphs: %w", err)
	}
	return nil
}

// InsertCardMorphLinks stores card/morph join rows. Duplicates are ignored.
func InsertCardMorphLinks(db DBExecutor, links []CardMorphLink) error {
	err := insertEach(db, `INSERT OR IGNORE INTO card_morph_map (card_id, morph_lemma, morph_inflection) VALUES (?, ?, ?)`,
		len(links), func(i int) []interface{} {
			l := links[i]
			return []interface{}{l.CardID, l.Lemma, l.Inflection}
		})
	if err != nil {
		return fmt.Errorf("insert card morph links: %w", err)
	}
	return nil
}

// LoadCardMorphMap reads every card/morph link with the morph intervals in a
// single query.
func LoadCardMorphMap(db DBExecutor) (*CardMorphMap, error) {
	var nMorphs int
	if err := db.QueryRow(`SELECT COUNT(*) FROM morphs`).Scan(&nMorphs); err != nil {
		return nil, fmt.Errorf("count morphs: %w", err)
	}

	rows, err := db.Query(`
		SELECT cm.card_id, m.lemma, m.inflection,
		       IFNULL(m.highest_lemma_learning_interval, -1),
		       IFNULL(m.highest_inflection_learning_interval, -1)
		FROM card_morph_map cm
		JOIN morphs m ON m.lemma = cm.morph_lemma AND m.inflection = cm.morph_inflection
		ORDER BY cm.card_id`)
	if err != nil {
		return nil, fmt.Errorf("query card morph map: %w", err)
	}
	defer rows.Close()

	out := &CardMorphMap{
		Table: morph.NewTable(nMorphs),
		Cards: make(map[int64][]morph.ID),
	}
	for rows.Next() {
		var cardID int64
		var m morph.Morpheme
		if err := rows.Scan(&cardID, &m.Lemma, &m.Inflection, &m.HighestLemmaInterval, &m.HighestInflectionInterval); err != nil {
			return nil, fmt.Errorf("scan card morph: %w", err)
		}
		id := out.Table.Intern(m)
		out.Cards[cardID] = append(out.Cards[cardID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MorphOccurrences counts card links per morph, grouped by lemma in lemma
// mode (keys are {lemma, lemma}) or by (lemma, inflection) otherwise. The
// result is ordered most frequent first; ties break on the key.
func MorphOccurrences(db DBExecutor, mode morph.EvaluationMode) ([]Occurrence, error) {
	query := `
		SELECT morph_lemma, morph_lemma, COUNT(*) AS n
		FROM card_morph_map
		GROUP BY morph_lemma
		ORDER BY n DESC, morph_lemma`
	if mode == morph.EvaluateInflection {
		query = `
		SELECT morph_lemma, morph_inflection, COUNT(*) AS n
		FROM card_morph_map
		GROUP BY morph_lemma, morph_inflection
		ORDER BY n DESC, morph_lemma, morph_inflection`
	}
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query morph occurrences: %w", err)
	}
	defer rows.Close()

	var out []Occurrence
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.Key.Lemma, &o.Key.Inflection, &o.Count); err != nil {
			return nil, fmt.Errorf("scan morph occurrence: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountCards returns the number of cached cards.
func CountCards(db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}
