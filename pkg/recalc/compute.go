package recalc

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/config"
	"github.com/japaniel/ankimorphs/pkg/extract"
	"github.com/japaniel/ankimorphs/pkg/morph"
	"github.com/japaniel/ankimorphs/pkg/offset"
	"github.com/japaniel/ankimorphs/pkg/preprocess"
	"github.com/japaniel/ankimorphs/pkg/score"
	"github.com/japaniel/ankimorphs/pkg/status"
)

// cardState is a handled card: what the collection holds and what it should.
type cardState struct {
	stored collection.Card
	due    int
	queue  collection.Queue
	eval   score.Evaluator
}

// noteState tracks a note touched by one or more of its cards.
type noteState struct {
	stored collection.Note
	cur    collection.Note
}

// plan is the full set of changes computed by a run.
type plan struct {
	extracted int
	offset    int
	cards     map[int64]*cardState
	order     []int64
	notes     map[int64]*noteState
}

// changes returns the cards and notes that differ from the collection,
// ordered by id.
func (p *plan) changes() ([]collection.Card, []collection.Note) {
	var cards []collection.Card
	for _, id := range p.order {
		cs := p.cards[id]
		if cs.due == cs.stored.Due && cs.queue == cs.stored.Queue {
			continue
		}
		c := cs.stored
		c.Due, c.Queue = cs.due, cs.queue
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })

	var notes []collection.Note
	for _, ns := range p.notes {
		if equalStrings(ns.stored.Fields, ns.cur.Fields) && equalStrings(ns.stored.Tags, ns.cur.Tags) {
			continue
		}
		notes = append(notes, ns.cur)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return cards, notes
}

// compute runs every phase up to, but not including, write-back.
func (r *Recalculator) compute(ctx context.Context, cfg config.Config, filters []filter, logger *log.Logger) (*plan, error) {
	mode := cfg.Mode()
	r.Priorities.Invalidate()

	if err := cache.Rebuild(r.Cache); err != nil {
		return nil, err
	}

	// Cards are fetched once per filter and shared by both phases.
	selected := make([][]collection.CardNote, len(filters))
	for i, f := range filters {
		cards, err := r.Collection.Cards(ctx, f.query())
		if err != nil {
			return nil, fmt.Errorf("note filter %d: %w", f.index+1, err)
		}
		selected[i] = cards
	}

	extracted, err := r.extract(ctx, cfg, filters, selected, logger)
	if err != nil {
		return nil, err
	}

	cm, err := cache.LoadCardMorphMap(r.Cache)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, nf := range cfg.ModifyFilters() {
		sources = append(sources, nf.MorphPriority)
	}
	maps, err := r.Priorities.ResolveAll(ctx, sources, mode)
	if err != nil {
		return nil, err
	}

	p := &plan{
		extracted: extracted,
		cards:     make(map[int64]*cardState),
		notes:     make(map[int64]*noteState),
	}
	machine := status.NewMachine(cfg)

	total := 0
	for i, f := range filters {
		if f.cfg.Modify {
			total += len(selected[i])
		}
	}
	handled := 0
	for i, f := range filters {
		if !f.cfg.Modify {
			continue
		}
		eval := score.Evaluator{Mode: mode, KnownInterval: cfg.IntervalForKnownMorphs, Priorities: maps[f.cfg.MorphPriority]}
		for _, cn := range selected[i] {
			if handled%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				r.progress(PhaseScore, handled, total)
			}
			handled++
			if _, dup := p.cards[cn.Card.ID]; dup {
				continue
			}
			p.handle(cfg, f, eval, machine, cm, cn)
		}
	}
	r.progress(PhaseScore, handled, total)

	if cfg.Recalc.Offset.Enabled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.offset = p.applyOffsets(cfg, cm)
	}
	logf(logger, "scored %d cards (%d offset)", len(p.cards), p.offset)
	return p, nil
}

// extract runs the extraction pipeline over every read filter.
func (r *Recalculator) extract(ctx context.Context, cfg config.Config, filters []filter, selected [][]collection.CardNote, logger *log.Logger) (int, error) {
	cleaner, err := preprocess.New(cfg.Preprocess)
	if err != nil {
		return 0, err
	}
	var sources []extract.Source
	cards := 0
	for i, f := range filters {
		if !f.cfg.Read {
			continue
		}
		src := extract.Source{Morphemizer: f.morphemizer}
		for _, cn := range selected[i] {
			if cfg.Preprocess.IgnoreSuspendedCards && cn.Card.Queue == collection.QueueSuspended {
				continue
			}
			text := ""
			if f.field < len(cn.Note.Fields) {
				text = cn.Note.Fields[f.field]
			}
			src.Cards = append(src.Cards, extract.Card{
				ID:         cn.Card.ID,
				NoteID:     cn.Card.NoteID,
				NoteTypeID: cn.Card.NoteTypeID,
				Type:       cn.Card.Type,
				Interval:   cn.Card.Interval,
				Tags:       cn.Note.Tags,
				Text:       text,
			})
		}
		cards += len(src.Cards)
		sources = append(sources, src)
	}

	ex := extract.New(r.Cache)
	ex.Clean = cleaner.Clean
	ex.BatchSize = cfg.Extraction.BatchSize
	ex.Workers = cfg.Extraction.Workers
	ex.WriteBatch = cfg.Extraction.WriteBatch
	ex.FlushInterval = cfg.Extraction.FlushInterval
	ex.Logger = logger
	ex.PoolFactory = r.PoolFactory
	ex.Overrides = extract.Overrides{
		KnownTags:     []string{cfg.Tags.KnownManually, cfg.Tags.KnownAutomatically},
		KnownInterval: cfg.IntervalForKnownMorphs,
	}
	ex.OnProgress = func(current, total int) { r.progress(PhaseExtract, current, total) }

	logf(logger, "extracting %d cards through %d read filters", cards, len(cfg.ReadFilters()))
	if _, err := ex.Extract(ctx, sources); err != nil {
		return 0, fmt.Errorf("extract morphs: %w", err)
	}
	return cache.CountCards(r.Cache)
}

// handle scores, tags and annotates one card.
func (p *plan) handle(cfg config.Config, f filter, eval score.Evaluator, machine status.Machine, cm *cache.CardMorphMap, cn collection.CardNote) {
	card := cn.Card
	cs := &cardState{stored: card, due: card.Due, queue: card.Queue, eval: eval}
	p.cards[card.ID] = cs
	p.order = append(p.order, card.ID)

	ns, ok := p.notes[card.NoteID]
	if !ok {
		ns = &noteState{stored: cn.Note.Clone(), cur: cn.Note.Clone()}
		p.notes[card.NoteID] = ns
	}

	metrics := eval.ComputeCard(cm, card.ID)
	res := score.Score(cfg.Algorithm, cfg.Recalc.MoveKnownNewCardsToEnd, metrics)
	isNew := card.Type == collection.CardTypeNew
	if isNew {
		cs.due = res.Score
	}

	_, outcome := machine.Apply(card, ns.cur.Tags, metrics.NumUnknownMorphs(), metrics.NumLearningMorphs)
	ns.cur.Tags = outcome.Tags
	cs.queue = outcome.Queue

	unknowns := make([]string, len(metrics.UnknownMorphs))
	for i, m := range metrics.UnknownMorphs {
		unknowns[i] = m.Inflection
	}
	setField(&ns.cur, f.extra.unknowns, strings.Join(unknowns, ", "))
	setField(&ns.cur, f.extra.unknownsCount, strconv.Itoa(len(unknowns)))
	if isNew {
		setField(&ns.cur, f.extra.score, strconv.Itoa(res.Score))
		setField(&ns.cur, f.extra.scoreTerms, res.Describe())
	}
}

// applyOffsets re-reads each new card's unknown morphs from the cache and
// pushes back siblings sharing a single unknown morph. It returns the number
// of cards whose position the offset decided.
func (p *plan) applyOffsets(cfg config.Config, cm *cache.CardMorphMap) int {
	var cands []offset.Candidate
	for _, id := range p.order {
		cs := p.cards[id]
		if cs.stored.Type != collection.CardTypeNew || cs.queue == collection.QueueSuspended {
			continue
		}
		morphs, _ := cm.Morphs(id)
		var unknowns []morph.Key
		for _, m := range morphs {
			if unknown, _ := cs.eval.Classify(m); unknown {
				unknowns = append(unknowns, m.PriorityKey(cs.eval.Mode))
			}
		}
		cands = append(cands, offset.Candidate{
			CardID:    id,
			Due:       cs.due,
			StoredDue: cs.stored.Due,
			Unknowns:  unknowns,
		})
	}

	s := offset.Scheduler{
		Amount:     cfg.Recalc.Offset.Amount,
		MorphLimit: cfg.Recalc.Offset.MorphLimit,
		Ceiling:    score.DefaultScore,
	}
	changes := s.Schedule(cands)
	for _, ch := range changes {
		p.cards[ch.CardID].due = ch.Due
	}
	return len(changes)
}

// setField writes value into field i when the note type has it.
func setField(n *collection.Note, i int, value string) {
	if i < 0 || i >= len(n.Fields) {
		return
	}
	n.Fields[i] = value
}

func equalStrings(a, b []string) bool {
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
