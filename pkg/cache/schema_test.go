package cache

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestRebuildCreatesSchema verifies Rebuild creates the three cache tables
// with the columns the store relies on.
func TestRebuildCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	want := map[string][]string{
		"cards":          {"card_id", "note_id", "note_type_id", "card_type", "tags"},
		"morphs":         {"lemma", "inflection", "highest_lemma_learning_interval", "highest_inflection_learning_interval"},
		"card_morph_map": {"card_id", "morph_lemma", "morph_inflection"},
	}
	for table, cols := range want {
		got := tableColumns(t, db, table)
		for _, c := range cols {
			if !got[c] {
				t.Errorf("table %s missing column %s (have %v)", table, c, got)
			}
		}
	}
}

// TestRebuildDropsExistingRows verifies a rebuild starts from empty tables.
func TestRebuildDropsExistingRows(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := InsertCards(db, []CardRecord{{CardID: 1, NoteID: 1, NoteTypeID: 1}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := Rebuild(db); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	n, err := CountCards(db)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty cards table after rebuild, got %d rows", n)
	}
}

func TestRebuildFailsOnClosedDB(t *testing.T) {
	db := setupTestDB(t)
	db.Close()
	if err := Rebuild(db); err == nil {
		t.Fatal("expected error rebuilding a closed database")
	}
}
