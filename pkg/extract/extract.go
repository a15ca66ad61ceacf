// Package extract runs morphemizers over card text and fills the morph data
// cache.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/morph"
	"github.com/japaniel/ankimorphs/pkg/morphemizer"
)

// Card is one card whose field text is to be analysed.
type Card struct {
	ID         int64
	NoteID     int64
	NoteTypeID int64
	Type       collection.CardType
	Interval   int
	Tags       []string
	Text       string
}

// Source is a set of cards analysed by the same morphemizer.
type Source struct {
	Morphemizer morphemizer.Morphemizer
	Cards       []Card
}

// Overrides replace the review interval of some cards before it is credited
// to their morphs.
type Overrides struct {
	// KnownTags mark a card as known regardless of review history.
	KnownTags []string
	// KnownInterval is the interval credited to such cards.
	KnownInterval int
}

// Interval returns the interval credited to c's morphs. Cards carrying a
// known tag get KnownInterval; cards past the new state are floored at 1 so
// a card in learning never reads as unknown.
func (o Overrides) Interval(c Card) int {
	for _, t := range o.KnownTags {
		if t != "" && collection.HasTag(c.Tags, t) {
			return o.KnownInterval
		}
	}
	if c.Type != collection.CardTypeNew && c.Interval < 1 {
		return 1
	}
	if c.Interval < 0 {
		return 0
	}
	return c.Interval
}

// Stats summarises one extraction.
type Stats struct {
	Cards  int
	Morphs int
	Links  int
}

// Extractor fills the cache from card text.
type Extractor struct {
	Cache     *sql.DB
	Clean     func(string) string
	Overrides Overrides
	BatchSize int
	Workers   int
	// WriteBatch is how many batches of cache rows share one transaction;
	// FlushInterval, when positive, commits a partial group that often.
	WriteBatch    int
	FlushInterval time.Duration
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnProgress is called with the number of cards handled so far.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) Pool
}

// New returns an Extractor writing to the cache db.
func New(db *sql.DB) *Extractor {
	return &Extractor{
		Cache:         db,
		BatchSize:     1000,
		Workers:       4,
		WriteBatch:    8,
		FlushInterval: 100 * time.Millisecond,
	}
}

// batch is a slice of one source's cards, numbered in submission order.
type batch struct {
	index int
	m     morphemizer.Morphemizer
	cards []Card
}

type batchResult struct {
	index  int
	cards  []Card
	morphs [][]morph.Morpheme
	err    error
}

func (ex *Extractor) batches(sources []Source) ([]batch, int) {
	size := ex.BatchSize
	if size <= 0 {
		size = 1000
	}
	var out []batch
	total := 0
	for _, src := range sources {
		total += len(src.Cards)
		for start := 0; start < len(src.Cards); start += size {
			end := start + size
			if end > len(src.Cards) {
				end = len(src.Cards)
			}
			out = append(out, batch{index: len(out), m: src.Morphemizer, cards: src.Cards[start:end]})
		}
	}
	return out, total
}

func (ex *Extractor) logf(format string, args ...interface{}) {
	if ex.Logger != nil {
		ex.Logger.Printf(format, args...)
	}
}

// Extract morphemizes every card of sources and writes cards, morphs and
// card/morph links into the cache, which must have been rebuilt first. Batch
// results are committed in submission order. A card appearing in several
// sources keeps its first record and gains the morphs of all of them.
//
// When ctx is cancelled Extract returns ctx.Err(); rows written so far are
// left for the next rebuild to discard.
func (ex *Extractor) Extract(ctx context.Context, sources []Source) (Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	jobs, total := ex.batches(sources)
	if len(jobs) == 0 {
		return stats, nil
	}
	start := time.Now()

	workers := ex.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp Pool
	if ex.PoolFactory != nil {
		wp = ex.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bw := NewBatchWriter(ex.Cache, ex.WriteBatch, ex.FlushInterval)
	bw.OnError = func(err error) {
		ex.logf("cache write failed: %v", err)
		cancel()
	}
	table := morph.NewTable(0)
	lemmaMax := make(map[string]int)
	seenCards := make(map[int64]bool)

	resultCh := make(chan batchResult, workers*2)
	doneCh := make(chan error, 1)

	// Consumer: reorder results by index and hand them to the batch writer.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]batchResult)
		next := 0
		handled := 0
		for res := range resultCh {
			if res.err != nil {
				cancel()
				doneCh <- res.err
				return
			}
			buffer[res.index] = res
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				next++

				records, links := ex.collect(item, table, lemmaMax, seenCards)
				stats.Cards += len(records)
				stats.Links += len(links)
				if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
					if err := cache.InsertCards(tx, records); err != nil {
						return err
					}
					return cache.InsertCardMorphLinks(tx, links)
				}); err != nil {
					cancel()
					doneCh <- err
					return
				}

				handled += len(item.cards)
				if ex.OnProgress != nil {
					ex.OnProgress(handled, total)
				}
			}
		}
		if next != len(jobs) {
			// Producers stopped early; the cause is on ctx.
			doneCh <- ctx.Err()
			return
		}
		doneCh <- nil
	}()

	wp.Start(ctx)

	var submitErr error
	for _, b := range jobs {
		if ctx.Err() != nil {
			break
		}
		b := b
		job := func(ctx context.Context) error {
			res := ex.process(ctx, b)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if ctx.Err() == nil && err != ErrPoolClosed {
				submitErr = fmt.Errorf("submit extraction batch %d: %w", b.index, err)
				cancel()
			}
			break
		}
	}

	// Once the pool is closed no job can still be sending.
	wp.Close()
	close(resultCh)
	consumerErr := <-doneCh

	// A failed commit cancels ctx, so its error wins over the cancellation
	// the consumer saw.
	writeErr := bw.Close()
	if submitErr != nil {
		return stats, submitErr
	}
	if writeErr != nil {
		return stats, fmt.Errorf("write cache: %w", writeErr)
	}
	if consumerErr != nil {
		return stats, consumerErr
	}

	morphs := make([]cache.MorphRecord, 0, table.Len())
	table.Each(func(_ morph.ID, m morph.Morpheme) {
		morphs = append(morphs, cache.MorphRecord{
			Lemma:                     m.Lemma,
			Inflection:                m.Inflection,
			HighestLemmaInterval:      lemmaMax[m.Lemma],
			HighestInflectionInterval: m.HighestInflectionInterval,
		})
	})
	if err := insertMorphs(ex.Cache, morphs); err != nil {
		return stats, err
	}
	stats.Morphs = len(morphs)

	ex.logf("extracted %d morphs from %d cards in %s (%d cache commits)", stats.Morphs, stats.Cards, time.Since(start).Round(time.Millisecond), bw.Commits())
	return stats, nil
}

// process cleans and morphemizes one batch.
func (ex *Extractor) process(ctx context.Context, b batch) batchResult {
	texts := make([]string, len(b.cards))
	for i, c := range b.cards {
		if ex.Clean != nil {
			texts[i] = ex.Clean(c.Text)
		} else {
			texts[i] = c.Text
		}
	}
	morphs, err := morphemizer.Process(ctx, b.m, texts)
	return batchResult{index: b.index, cards: b.cards, morphs: morphs, err: err}
}

// collect credits intervals and builds the rows of one batch. It runs on the
// consumer goroutine only.
func (ex *Extractor) collect(res batchResult, table *morph.Table, lemmaMax map[string]int, seen map[int64]bool) ([]cache.CardRecord, []cache.CardMorphLink) {
	records := make([]cache.CardRecord, 0, len(res.cards))
	var links []cache.CardMorphLink
	for i, c := range res.cards {
		if !seen[c.ID] {
			seen[c.ID] = true
			records = append(records, cache.CardRecord{
				CardID:     c.ID,
				NoteID:     c.NoteID,
				NoteTypeID: c.NoteTypeID,
				CardType:   int(c.Type),
				Tags:       collection.JoinTags(c.Tags),
			})
		}
		ivl := ex.Overrides.Interval(c)
		for _, m := range res.morphs[i] {
			table.Intern(morph.Morpheme{
				Lemma:                     m.Lemma,
				Inflection:                m.Inflection,
				HighestLemmaInterval:      ivl,
				HighestInflectionInterval: ivl,
			})
			if cur, ok := lemmaMax[m.Lemma]; !ok || ivl > cur {
				lemmaMax[m.Lemma] = ivl
			}
			links = append(links, cache.CardMorphLink{CardID: c.ID, Lemma: m.Lemma, Inflection: m.Inflection})
		}
	}
	return records, links
}

func insertMorphs(db *sql.DB, morphs []cache.MorphRecord) error {
	if db == nil {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin morph insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()
	if err := cache.InsertMorphs(tx, morphs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit morphs: %w", err)
	}
	return nil
}
