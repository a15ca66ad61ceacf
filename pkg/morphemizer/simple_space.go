package morphemizer

import (
	"context"
	"regexp"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

var reWord = regexp.MustCompile(`\p{L}[\p{L}\p{M}'’]*`)

// SimpleSpace treats every run of letters as one morph whose lemma and
// inflection are the word itself. It suits space-delimited languages without
// a dedicated analyser.
type SimpleSpace struct{}

func NewSimpleSpace() *SimpleSpace { return &SimpleSpace{} }

func (*SimpleSpace) Name() string { return "simple-space" }

func (*SimpleSpace) Description() string {
	return "Simple Space Splitter: words separated by whitespace or punctuation"
}

func (s *SimpleSpace) ProcessedMorphs(ctx context.Context, sentences []string) ([][]morph.Morpheme, error) {
	out := make([][]morph.Morpheme, len(sentences))
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		words := reWord.FindAllString(sent, -1)
		morphs := make([]morph.Morpheme, 0, len(words))
		for _, w := range words {
			morphs = append(morphs, morph.New(w, w))
		}
		out[i] = morphs
	}
	return out, nil
}
