package morphemizer

import (
	"context"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Kagome is a MeCab-compatible Japanese morphemizer backed by kagome and the
// IPA dictionary. Lemma is the dictionary base form, inflection the surface.
type Kagome struct {
	// SkipProperNouns drops 固有名詞 tokens (names, places).
	SkipProperNouns bool

	once sync.Once
	t    *tokenizer.Tokenizer
	err  error
}

func NewKagome(skipProperNouns bool) *Kagome {
	return &Kagome{SkipProperNouns: skipProperNouns}
}

func (*Kagome) Name() string { return "kagome" }

func (*Kagome) Description() string { return "Japanese (kagome, MeCab IPA dictionary)" }

func (k *Kagome) tokenizer() (*tokenizer.Tokenizer, error) {
	k.once.Do(func() {
		k.t, k.err = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	})
	return k.t, k.err
}

func (k *Kagome) ProcessedMorphs(ctx context.Context, sentences []string) ([][]morph.Morpheme, error) {
	t, err := k.tokenizer()
	if err != nil {
		return nil, err
	}
	out := make([][]morph.Morpheme, len(sentences))
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = k.analyze(t, sent)
	}
	return out, nil
}

func (k *Kagome) analyze(t *tokenizer.Tokenizer, text string) []morph.Morpheme {
	tokens := t.Tokenize(text)
	morphs := make([]morph.Morpheme, 0, len(tokens))

	for _, token := range tokens {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features:
		// 0: Part of Speech
		// 1: Sub-POS 1
		// 6: Base Form (Lemma)
		features := token.Features()
		if !k.keep(features) {
			continue
		}

		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		morphs = append(morphs, morph.New(base, token.Surface))
	}
	return morphs
}

func (k *Kagome) keep(features []string) bool {
	if len(features) == 0 {
		return true
	}
	switch features[0] {
	case "記号", "補助記号":
		return false
	}
	if len(features) > 1 {
		switch features[1] {
		case "数":
			return false
		case "固有名詞":
			return !k.SkipProperNouns
		}
	}
	return true
}
