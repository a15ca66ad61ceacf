// Package config holds the typed settings consumed by a recalculation and
// loads them from YAML, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Placeholder is the value a settings UI leaves in a selector nobody touched.
const Placeholder = "(none)"

// CollectionFrequency selects priorities derived from the cached collection
// instead of a frequency file.
const CollectionFrequency = "collection"

// Config is the settings bundle for one recalculation.
type Config struct {
	Evaluation             string `koanf:"evaluation" validate:"oneof=lemma inflection"`
	IntervalForKnownMorphs int    `koanf:"interval_for_known_morphs" validate:"gte=1"`

	Algorithm   Algorithm    `koanf:"algorithm"`
	Recalc      Recalc       `koanf:"recalc"`
	Tags        Tags         `koanf:"tags"`
	ExtraFields ExtraFields  `koanf:"extra_fields"`
	Preprocess  Preprocess   `koanf:"preprocess"`
	Extraction  Extraction   `koanf:"extraction"`
	Filters     []NoteFilter `koanf:"filters" validate:"min=1,dive"`
}

// Algorithm holds the score weights and targets.
type Algorithm struct {
	TotalPriorityUnknownMorphs     int `koanf:"total_priority_unknown_morphs" validate:"gte=0"`
	TotalPriorityAllMorphs         int `koanf:"total_priority_all_morphs" validate:"gte=0"`
	TotalPriorityLearningMorphs    int `koanf:"total_priority_learning_morphs" validate:"gte=0"`
	AveragePriorityAllMorphs       int `koanf:"average_priority_all_morphs" validate:"gte=0"`
	AveragePriorityLearningMorphs  int `koanf:"average_priority_learning_morphs" validate:"gte=0"`
	LearningMorphsTargetDifference int `koanf:"learning_morphs_target_difference" validate:"gte=0"`
	AllMorphsTargetDifference      int `koanf:"all_morphs_target_difference" validate:"gte=0"`

	AllMorphsTarget      Target `koanf:"all_morphs_target"`
	LearningMorphsTarget Target `koanf:"learning_morphs_target"`
}

// Target is an inclusive [Low, High] range with the quadratic coefficients
// applied above and below it.
type Target struct {
	Low   int          `koanf:"low" validate:"gte=0"`
	High  int          `koanf:"high" validate:"gte=0"`
	Upper Coefficients `koanf:"upper"`
	Lower Coefficients `koanf:"lower"`
}

// Coefficients of a·d² + b·d + c.
type Coefficients struct {
	A float64 `koanf:"a" validate:"gte=0"`
	B float64 `koanf:"b" validate:"gte=0"`
	C float64 `koanf:"c" validate:"gte=0"`
}

type Recalc struct {
	SuspendKnownNewCards   bool   `koanf:"suspend_known_new_cards"`
	MoveKnownNewCardsToEnd bool   `koanf:"move_known_new_cards_to_end"`
	Offset                 Offset `koanf:"offset"`
}

// Offset configures how cards sharing one unknown morph are spread out.
type Offset struct {
	Enabled    bool `koanf:"enabled"`
	Amount     int  `koanf:"amount" validate:"gte=0"`
	MorphLimit int  `koanf:"morph_limit" validate:"gte=0"`
}

type Tags struct {
	Ready              string `koanf:"ready" validate:"required"`
	NotReady           string `koanf:"not_ready" validate:"required"`
	KnownAutomatically string `koanf:"known_automatically" validate:"required"`
	KnownManually      string `koanf:"known_manually" validate:"required"`
	Fresh              string `koanf:"fresh" validate:"required"`
}

// ExtraFields names optional note fields that receive recalculation output.
// An empty name disables that field.
type ExtraFields struct {
	Unknowns      string `koanf:"unknowns"`
	UnknownsCount string `koanf:"unknowns_count"`
	Score         string `koanf:"score"`
	ScoreTerms    string `koanf:"score_terms"`
}

// Preprocess controls which parts of a field are removed before it reaches a
// morphemizer.
type Preprocess struct {
	IgnoreSquareBrackets         bool   `koanf:"ignore_square_brackets"`
	IgnoreRoundBrackets          bool   `koanf:"ignore_round_brackets"`
	IgnoreFullWidthRoundBrackets bool   `koanf:"ignore_full_width_round_brackets"`
	IgnoreNumerals               bool   `koanf:"ignore_numerals"`
	IgnoreSuspendedCards         bool   `koanf:"ignore_suspended_cards"`
	IgnoreCharacters             string `koanf:"ignore_characters"`
	NamesFile                    string `koanf:"names_file"`
}

// Extraction tunes the morphemizing pipeline. WriteBatch batches of cache
// rows are committed per transaction, and at least every FlushInterval when
// it is positive.
type Extraction struct {
	BatchSize     int           `koanf:"batch_size" validate:"gte=1"`
	Workers       int           `koanf:"workers" validate:"gte=1"`
	WriteBatch    int           `koanf:"write_batch" validate:"gte=1"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gte=0"`
}

// NoteFilter selects cards by note type and tags and says how their text is
// analysed and prioritised.
type NoteFilter struct {
	NoteType      string       `koanf:"note_type" validate:"required"`
	Tags          TagSelection `koanf:"tags"`
	Field         string       `koanf:"field" validate:"required"`
	Morphemizer   string       `koanf:"morphemizer" validate:"required"`
	MorphPriority string       `koanf:"morph_priority" validate:"required"`
	Read          bool         `koanf:"read"`
	Modify        bool         `koanf:"modify"`
}

// TagSelection: a note must carry every Include tag and none of Exclude.
type TagSelection struct {
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
}

// Mode returns the parsed evaluation mode.
func (c Config) Mode() morph.EvaluationMode {
	m, _ := morph.ParseEvaluationMode(c.Evaluation)
	return m
}

// ReadFilters returns the filters whose cards populate the cache.
func (c Config) ReadFilters() []NoteFilter {
	var out []NoteFilter
	for _, f := range c.Filters {
		if f.Read {
			out = append(out, f)
		}
	}
	return out
}

// ModifyFilters returns the filters whose cards are rescored.
func (c Config) ModifyFilters() []NoteFilter {
	var out []NoteFilter
	for _, f := range c.Filters {
		if f.Modify {
			out = append(out, f)
		}
	}
	return out
}

// Default returns the built-in settings. Filters are left empty.
func Default() Config {
	return Config{
		Evaluation:             "lemma",
		IntervalForKnownMorphs: 21,
		Algorithm: Algorithm{
			TotalPriorityUnknownMorphs:     1,
			LearningMorphsTargetDifference: 1,
			AllMorphsTargetDifference:      1,
			AllMorphsTarget: Target{
				Low:   4,
				High:  6,
				Upper: Coefficients{A: 1, B: 5, C: 100},
				Lower: Coefficients{A: 1, B: 5, C: 100},
			},
			LearningMorphsTarget: Target{
				Low:   0,
				High:  3,
				Upper: Coefficients{A: 1, B: 5, C: 50},
			},
		},
		Recalc: Recalc{
			Offset: Offset{Enabled: true, Amount: 500_000, MorphLimit: 100},
		},
		Tags: Tags{
			Ready:              "am-ready",
			NotReady:           "am-not-ready",
			KnownAutomatically: "am-known-automatically",
			KnownManually:      "am-known-manually",
			Fresh:              "am-fresh-morphs",
		},
		Extraction: Extraction{BatchSize: 1000, Workers: 4, WriteBatch: 8, FlushInterval: 100 * time.Millisecond},
	}
}

// FilterError reports an unusable note filter.
type FilterError struct {
	Index  int
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("note filter %d: %s: %s", e.Index+1, e.Field, e.Reason)
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid settings")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the semantic rules the struct tags
// cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for name, tgt := range map[string]Target{
		"algorithm.all_morphs_target":      c.Algorithm.AllMorphsTarget,
		"algorithm.learning_morphs_target": c.Algorithm.LearningMorphsTarget,
	} {
		if tgt.Low > tgt.High {
			return fmt.Errorf("%w: %s: low %d exceeds high %d", ErrInvalid, name, tgt.Low, tgt.High)
		}
	}
	for _, tag := range []string{c.Tags.Ready, c.Tags.NotReady, c.Tags.KnownAutomatically, c.Tags.KnownManually, c.Tags.Fresh} {
		if strings.ContainsAny(tag, " \t") {
			return fmt.Errorf("%w: tag %q contains whitespace", ErrInvalid, tag)
		}
	}
	modify := 0
	for i, f := range c.Filters {
		for field, v := range map[string]string{
			"note_type":      f.NoteType,
			"field":          f.Field,
			"morphemizer":    f.Morphemizer,
			"morph_priority": f.MorphPriority,
		} {
			if strings.TrimSpace(v) == Placeholder {
				return fmt.Errorf("%w: %w", ErrInvalid, &FilterError{Index: i, Field: field, Reason: "no option selected"})
			}
		}
		if f.Modify {
			modify++
		}
	}
	if modify == 0 {
		return fmt.Errorf("%w: no note filter has modify enabled", ErrInvalid)
	}
	return nil
}
