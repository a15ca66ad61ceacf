package morphemizer

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Jieba segments Chinese text with gse, a Go port of jieba. Chinese has no
// inflection, so lemma and inflection are the same word.
type Jieba struct {
	once sync.Once
	seg  gse.Segmenter
	err  error
}

func NewJieba() *Jieba { return &Jieba{} }

func (*Jieba) Name() string { return "jieba" }

func (*Jieba) Description() string { return "Chinese (jieba segmentation)" }

func (j *Jieba) segmenter() (*gse.Segmenter, error) {
	j.once.Do(func() {
		j.err = j.seg.LoadDictEmbed()
	})
	return &j.seg, j.err
}

func (j *Jieba) ProcessedMorphs(ctx context.Context, sentences []string) ([][]morph.Morpheme, error) {
	seg, err := j.segmenter()
	if err != nil {
		return nil, err
	}
	out := make([][]morph.Morpheme, len(sentences))
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		words := seg.Cut(sent, true)
		morphs := make([]morph.Morpheme, 0, len(words))
		for _, w := range words {
			w = strings.TrimSpace(w)
			if !isWord(w) {
				continue
			}
			morphs = append(morphs, morph.New(w, w))
		}
		out[i] = morphs
	}
	return out, nil
}

// isWord reports whether w contains at least one letter.
func isWord(w string) bool {
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
