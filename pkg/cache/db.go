// Package cache is the morph data cache: a SQLite store mapping cards to the
// morphs found in their text and each morph to its highest learning
// interval. It is dropped and rebuilt on every recalculation.
package cache

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
DROP TABLE IF EXISTS card_morph_map;
DROP TABLE IF EXISTS morphs;
DROP TABLE IF EXISTS cards;

CREATE TABLE cards (
    card_id      INTEGER PRIMARY KEY,
    note_id      INTEGER NOT NULL,
    note_type_id INTEGER NOT NULL,
    card_type    INTEGER NOT NULL,
    tags         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE morphs (
    lemma                                TEXT NOT NULL,
    inflection                           TEXT NOT NULL,
    highest_lemma_learning_interval      INTEGER,
    highest_inflection_learning_interval INTEGER,
    PRIMARY KEY (lemma, inflection)
);

CREATE TABLE card_morph_map (
    card_id          INTEGER NOT NULL,
    morph_lemma      TEXT NOT NULL,
    morph_inflection TEXT NOT NULL,
    PRIMARY KEY (card_id, morph_lemma, morph_inflection)
);

CREATE INDEX card_morph_map_morph ON card_morph_map (morph_lemma, morph_inflection);
`

// Open opens (creating if needed) the cache database at path. The cache is
// owned by a single recalculation, so one connection is enough and keeps
// ":memory:" databases coherent.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configure cache: %w", err)
		}
	}
	return conn, nil
}

// Rebuild drops and recreates every cache table in one transaction. Errors
// are returned unchanged in meaning; callers abort the recalculation.
func Rebuild(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("rebuild cache: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, s := range strings.Split(schemaSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("rebuild cache: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rebuild cache: %w", err)
	}
	return nil
}
