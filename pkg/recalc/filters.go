package recalc

import (
	"context"
	"errors"
	"fmt"

	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/config"
	"github.com/japaniel/ankimorphs/pkg/morphemizer"
)

// filter is a note filter checked against the collection.
type filter struct {
	index       int
	cfg         config.NoteFilter
	noteType    collection.NoteType
	field       int
	morphemizer morphemizer.Morphemizer
	extra       extraFields
}

func (f filter) query() collection.CardQuery {
	return collection.CardQuery{
		NoteTypeID:  f.noteType.ID,
		IncludeTags: f.cfg.Tags.Include,
		ExcludeTags: f.cfg.Tags.Exclude,
	}
}

// extraFields holds note field positions for output; -1 when absent.
type extraFields struct {
	unknowns, unknownsCount, score, scoreTerms int
}

func lookupExtra(nt collection.NoteType, names config.ExtraFields) extraFields {
	idx := func(name string) int {
		if name == "" {
			return -1
		}
		return nt.FieldIndex(name)
	}
	return extraFields{
		unknowns:      idx(names.Unknowns),
		unknownsCount: idx(names.UnknownsCount),
		score:         idx(names.Score),
		scoreTerms:    idx(names.ScoreTerms),
	}
}

// resolveFilters fails fast on filters naming a note type, field or
// morphemizer that does not exist.
func (r *Recalculator) resolveFilters(ctx context.Context, cfg config.Config) ([]filter, error) {
	out := make([]filter, 0, len(cfg.Filters))
	for i, nf := range cfg.Filters {
		if !nf.Read && !nf.Modify {
			continue
		}
		nt, err := r.Collection.NoteTypeByName(ctx, nf.NoteType)
		if errors.Is(err, collection.ErrNoteTypeNotFound) {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, &config.FilterError{Index: i, Field: "note_type", Reason: fmt.Sprintf("note type %q not found", nf.NoteType)})
		}
		if err != nil {
			return nil, fmt.Errorf("note filter %d: %w", i+1, err)
		}
		field := nt.FieldIndex(nf.Field)
		if field < 0 {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, &config.FilterError{Index: i, Field: "field", Reason: fmt.Sprintf("note type %q has no field %q", nf.NoteType, nf.Field)})
		}
		m, ok := r.Morphemizers.Get(nf.Morphemizer)
		if !ok {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, &config.FilterError{Index: i, Field: "morphemizer", Reason: fmt.Sprintf("morphemizer %q not available", nf.Morphemizer)})
		}
		out = append(out, filter{
			index:       i,
			cfg:         nf,
			noteType:    nt,
			field:       field,
			morphemizer: m,
			extra:       lookupExtra(nt, cfg.ExtraFields),
		})
	}
	return out, nil
}
