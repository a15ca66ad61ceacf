package priority

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/morph"
	_ "github.com/mattn/go-sqlite3"
)

func lemmaKey(l string) morph.Key { return morph.Key{Lemma: l, Inflection: l} }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestMinimalFileRanksByRow(t *testing.T) {
	m, err := Parse(strings.NewReader("Morph-Lemma\nの\nた\nに\n"), "min.csv", morph.EvaluateLemma)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i, l := range []string{"の", "た", "に"} {
		if m[lemmaKey(l)] != i {
			t.Errorf("%s: got %d, want %d", l, m[lemmaKey(l)], i)
		}
	}
	if m.Default() != 4 {
		t.Errorf("default priority = %d, want 4", m.Default())
	}
}

func TestFullFrequencyFileUsesColumns(t *testing.T) {
	content := "\ufeffMorph-Lemma,Morph-Inflection,Lemma-Priority,Inflection-Priority,Occurrences\n" +
		"食べる,食べ,5,9,100\n" +
		"食べる,食べる,5,2,80\n" +
		"猫,猫,7,7,10\n" +
		"犬,犬,1000000,1000001,1\n"

	lemma, err := Parse(strings.NewReader(content), "freq.csv", morph.EvaluateLemma)
	if err != nil {
		t.Fatalf("lemma Parse: %v", err)
	}
	if lemma[lemmaKey("食べる")] != 5 || lemma[lemmaKey("猫")] != 7 {
		t.Errorf("lemma priorities = %v", lemma)
	}
	if _, ok := lemma[lemmaKey("犬")]; ok {
		t.Errorf("priority at the cutoff should be ignored")
	}

	infl, err := Parse(strings.NewReader(content), "freq.csv", morph.EvaluateInflection)
	if err != nil {
		t.Fatalf("inflection Parse: %v", err)
	}
	if infl[morph.Key{Lemma: "食べる", Inflection: "食べ"}] != 9 || infl[morph.Key{Lemma: "食べる", Inflection: "食べる"}] != 2 {
		t.Errorf("inflection priorities = %v", infl)
	}
}

func TestStudyPlanRanksInflectionsByRow(t *testing.T) {
	content := "Morph-Lemma,Morph-Inflection\nrun,ran\nrun,runs\n"
	m, err := Parse(strings.NewReader(content), "plan.csv", morph.EvaluateInflection)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m[morph.Key{Lemma: "run", Inflection: "ran"}] != 0 || m[morph.Key{Lemma: "run", Inflection: "runs"}] != 1 {
		t.Errorf("study plan priorities = %v", m)
	}
}

func TestIncompatibleCombinations(t *testing.T) {
	cases := []struct {
		name    string
		content string
		mode    morph.EvaluationMode
	}{
		{"inflection from lemma-only file", "Morph-Lemma\nの\n", morph.EvaluateInflection},
		{"lemma from inflection study plan", "Morph-Lemma,Morph-Inflection\nrun,ran\n", morph.EvaluateLemma},
		{"inflection from lemma priorities", "Morph-Lemma,Morph-Inflection,Lemma-Priority\nb,bs,500\na,as,7\n", morph.EvaluateInflection},
	}
	for _, tc := range cases {
		_, err := Parse(strings.NewReader(tc.content), "x.csv", tc.mode)
		if !errors.Is(err, ErrIncompatibleFile) {
			t.Errorf("%s: expected ErrIncompatibleFile, got %v", tc.name, err)
		}
	}
}

func TestMalformedFiles(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"no lemma header":   "Word,Count\na,1\n",
		"non-numeric value": "Morph-Lemma,Morph-Inflection,Lemma-Priority,Inflection-Priority\na,a,x,1\n",
		"blank lemma":       "Morph-Lemma\n\"\"\n",
	}
	for name, content := range cases {
		_, err := Parse(strings.NewReader(content), "bad.csv", morph.EvaluateLemma)
		var fe *FileError
		if !errors.As(err, &fe) || !errors.Is(err, ErrFileMalformed) {
			t.Errorf("%s: expected malformed FileError, got %v", name, err)
			continue
		}
		if fe.Path != "bad.csv" {
			t.Errorf("%s: error path = %q", name, fe.Path)
		}
	}
}

func TestLoadFileMissingCarriesPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nope.csv")
	_, err := LoadFile(p, morph.EvaluateLemma)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), p) {
		t.Errorf("error %q should name %s", err, p)
	}
}

func TestLoadFileNoHeaderNamesPath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "empty.csv", "")
	_, err := LoadFile(p, morph.EvaluateLemma)
	if !errors.Is(err, ErrFileMalformed) || !strings.Contains(err.Error(), p) {
		t.Fatalf("expected malformed error naming %s, got %v", p, err)
	}
}

func setupCache(t *testing.T) *sql.DB {
	t.Helper()
	db, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if err := cache.Rebuild(db); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	links := []cache.CardMorphLink{
		{CardID: 1, Lemma: "a", Inflection: "a"},
		{CardID: 2, Lemma: "a", Inflection: "a"},
		{CardID: 2, Lemma: "b", Inflection: "b"},
	}
	if err := cache.InsertCardMorphLinks(db, links); err != nil {
		t.Fatalf("insert links: %v", err)
	}
	return db
}

func TestRegistryCollectionAndInvalidate(t *testing.T) {
	db := setupCache(t)
	defer db.Close()

	r, err := NewRegistry(db, "", 0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()
	m, err := r.Get(ctx, CollectionSource, morph.EvaluateLemma)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m[lemmaKey("a")] != 0 || m[lemmaKey("b")] != 1 {
		t.Fatalf("collection priorities = %v", m)
	}

	// a stale map is served until the registry is invalidated
	if err := cache.InsertCardMorphLinks(db, []cache.CardMorphLink{
		{CardID: 3, Lemma: "b", Inflection: "b"},
		{CardID: 4, Lemma: "b", Inflection: "b"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if again, _ := r.Get(ctx, CollectionSource, morph.EvaluateLemma); again[lemmaKey("b")] != 1 {
		t.Fatalf("expected memoised map, got %v", again)
	}
	r.Invalidate()
	if r.Len() != 0 {
		t.Fatalf("Invalidate left %d maps", r.Len())
	}
	fresh, err := r.Get(ctx, CollectionSource, morph.EvaluateLemma)
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if fresh[lemmaKey("b")] != 0 {
		t.Fatalf("expected b to rank first after invalidate, got %v", fresh)
	}
}

func TestRegistryResolveAll(t *testing.T) {
	db := setupCache(t)
	defer db.Close()
	dir := t.TempDir()
	writeFile(t, dir, "jp.csv", "Morph-Lemma\nx\ny\n")

	r, err := NewRegistry(db, dir, 4)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	maps, err := r.ResolveAll(context.Background(), []string{"jp.csv", CollectionSource, "jp.csv"}, morph.EvaluateLemma)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(maps) != 2 {
		t.Fatalf("expected 2 maps, got %d", len(maps))
	}
	if maps["jp.csv"][lemmaKey("y")] != 1 {
		t.Errorf("file map = %v", maps["jp.csv"])
	}

	_, err = r.ResolveAll(context.Background(), []string{"missing.csv", CollectionSource}, morph.EvaluateLemma)
	var fe *FileError
	if !errors.As(err, &fe) || fe.Path != filepath.Join(dir, "missing.csv") {
		t.Fatalf("expected FileError for missing.csv, got %v", err)
	}
}

func TestMapOfFallsBackToDefault(t *testing.T) {
	m := Map{lemmaKey("a"): 0, {Lemma: "b", Inflection: "bs"}: 3}
	if got := m.Of(morph.New("a", "as"), morph.EvaluateLemma); got != 0 {
		t.Errorf("lemma lookup ignores inflection, got %d", got)
	}
	if got := m.Of(morph.New("b", "bs"), morph.EvaluateInflection); got != 3 {
		t.Errorf("inflection lookup = %d", got)
	}
	if got := m.Of(morph.New("zzz", "zzz"), morph.EvaluateLemma); got != 3 {
		t.Errorf("missing morph should get len+1 = 3, got %d", got)
	}
}
