// Package recalc runs a full recalculation: it rebuilds the morph cache from
// card text, scores and tags every card selected by a modify filter, spreads
// out cards sharing one unknown morph and writes the changes back to the
// collection in one batch.
package recalc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/config"
	"github.com/japaniel/ankimorphs/pkg/extract"
	"github.com/japaniel/ankimorphs/pkg/morphemizer"
	"github.com/japaniel/ankimorphs/pkg/priority"
)

var (
	// ErrRecalcInProgress is returned when Run is called during another run.
	ErrRecalcInProgress = errors.New("recalc: already running")
	// ErrCancelled is returned when ctx is cancelled before write-back. It is
	// always joined with the context error.
	ErrCancelled = errors.New("recalc: cancelled")
)

// Phase names a stage reported through OnProgress.
type Phase string

const (
	PhaseExtract Phase = "extract"
	PhaseScore   Phase = "score"
	PhaseWrite   Phase = "write"
)

// checkEvery is how many cards the scoring loop handles between
// cancellation checks.
const checkEvery = 1000

// Result summarises a finished run.
type Result struct {
	RunID          string
	CardsExtracted int
	CardsHandled   int
	CardsModified  int
	NotesModified  int
	OffsetCards    int
	Duration       time.Duration
}

// Recalculator owns the cache and the registries for the life of the
// process. Only one run may be active at a time.
type Recalculator struct {
	Collection   collection.Collection
	Cache        *sql.DB
	Morphemizers *morphemizer.Registry
	Priorities   *priority.Registry

	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnProgress is called from the background goroutine.
	OnProgress func(phase Phase, current, total int)
	// PoolFactory is handed to the extractor; nil uses the default pool.
	PoolFactory func(workers, queue int) extract.Pool

	running sync.Mutex
}

// New returns a Recalculator. The priority registry reads collection
// frequencies from cacheDB.
func New(col collection.Collection, cacheDB *sql.DB, morphs *morphemizer.Registry, prios *priority.Registry) *Recalculator {
	return &Recalculator{
		Collection:   col,
		Cache:        cacheDB,
		Morphemizers: morphs,
		Priorities:   prios,
	}
}

func (r *Recalculator) progress(phase Phase, current, total int) {
	if r.OnProgress != nil {
		r.OnProgress(phase, current, total)
	}
}

// Run validates cfg against the collection, computes every change on a
// background goroutine and then writes the changes from the calling
// goroutine. Nothing is written if any phase fails or ctx is cancelled
// before write-back starts.
func (r *Recalculator) Run(ctx context.Context, cfg config.Config) (Result, error) {
	if !r.running.TryLock() {
		return Result{}, ErrRecalcInProgress
	}
	defer r.running.Unlock()

	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	logger := r.runLogger(res.RunID)

	if err := cfg.Validate(); err != nil {
		return res, err
	}
	filters, err := r.resolveFilters(ctx, cfg)
	if err != nil {
		return res, err
	}

	type outcome struct {
		plan *plan
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := r.compute(ctx, cfg, filters, logger)
		done <- outcome{p, err}
	}()
	out := <-done

	if ctxErr := ctx.Err(); ctxErr != nil {
		logf(logger, "cancelled before write-back")
		return res, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
	}
	if out.err != nil {
		return res, out.err
	}

	p := out.plan
	res.CardsExtracted = p.extracted
	res.CardsHandled = len(p.cards)
	res.OffsetCards = p.offset

	cards, notes := p.changes()
	r.progress(PhaseWrite, 0, len(cards)+len(notes))
	// Write-back must not be torn by a late cancel.
	wctx := context.WithoutCancel(ctx)
	if err := r.Collection.UpdateCards(wctx, cards); err != nil {
		return res, fmt.Errorf("write cards: %w", err)
	}
	if err := r.Collection.UpdateNotes(wctx, notes); err != nil {
		return res, fmt.Errorf("write notes: %w", err)
	}
	r.progress(PhaseWrite, len(cards)+len(notes), len(cards)+len(notes))

	res.CardsModified = len(cards)
	res.NotesModified = len(notes)
	res.Duration = time.Since(start)
	logf(logger, "handled %d cards, modified %d cards and %d notes in %s",
		res.CardsHandled, res.CardsModified, res.NotesModified, res.Duration.Round(time.Millisecond))
	return res, nil
}

func (r *Recalculator) runLogger(runID string) *log.Logger {
	if r.Logger == nil {
		return nil
	}
	return log.New(r.Logger.Writer(), r.Logger.Prefix()+"["+runID[:8]+"] ", r.Logger.Flags())
}

func logf(l *log.Logger, format string, args ...interface{}) {
	if l != nil {
		l.Printf(format, args...)
	}
}
