// Package preprocess cleans raw note field content before it is handed to a
// morphemizer.
package preprocess

import (
	"bufio"
	"fmt"
	"html"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/japaniel/ankimorphs/pkg/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)

	reBreak = regexp.MustCompile(`(?i)<br\s*/?>|</?(div|p|li)\b[^>]*>`)
	reTag   = regexp.MustCompile(`(?s)<[^>]*>`)
	reSound = regexp.MustCompile(`\[sound:[^\]]*\]`)

	reSquare    = regexp.MustCompile(`\[[^\]]*\]`)
	reRound     = regexp.MustCompile(`\([^)]*\)`)
	reFullRound = regexp.MustCompile(`（[^）]*）`)
	reNumerals  = regexp.MustCompile(`[0-9０-９]+`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// so that furigana is not analysed as part of the sentence ("漢字かんじ").
func SanitizeRuby(content string) string {
	cleaned := reRT.ReplaceAllString(content, "")
	return reRP.ReplaceAllString(cleaned, "")
}

// StripHTML drops markup and sound references and decodes entities. Block
// level tags become spaces so adjacent lines do not merge into one word.
func StripHTML(content string) string {
	s := reSound.ReplaceAllString(content, " ")
	s = reBreak.ReplaceAllString(s, " ")
	s = reTag.ReplaceAllString(s, "")
	// Anki editors emit &nbsp; between words.
	return strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
}

// Cleaner applies the configured preprocessing steps. It is safe for
// concurrent use.
type Cleaner struct {
	opts  config.Preprocess
	names *strings.Replacer
}

// New builds a Cleaner, reading the names file when one is configured.
func New(opts config.Preprocess) (*Cleaner, error) {
	c := &Cleaner{opts: opts}
	if opts.NamesFile != "" {
		names, err := LoadNames(opts.NamesFile)
		if err != nil {
			return nil, err
		}
		c.names = namesReplacer(names)
	}
	return c, nil
}

// Clean returns text ready for a morphemizer: markup removed, configured
// bracket contents and characters removed, width folded and lower-cased.
// Lower-casing keeps capitalised sentence starts from being taken for
// proper nouns.
func (c *Cleaner) Clean(text string) string {
	s := StripHTML(SanitizeRuby(text))
	if c.opts.IgnoreSquareBrackets {
		s = reSquare.ReplaceAllString(s, "")
	}
	if c.opts.IgnoreRoundBrackets {
		s = reRound.ReplaceAllString(s, "")
	}
	if c.opts.IgnoreFullWidthRoundBrackets {
		s = reFullRound.ReplaceAllString(s, "")
	}
	if c.opts.IgnoreNumerals {
		s = reNumerals.ReplaceAllString(s, "")
	}
	if c.opts.IgnoreCharacters != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(c.opts.IgnoreCharacters, r) {
				return -1
			}
			return r
		}, s)
	}
	s = width.Fold.String(s)
	s = cases.Lower(language.Und).String(s)
	if c.names != nil {
		s = c.names.Replace(s)
	}
	return strings.TrimSpace(s)
}

// LoadNames reads one name per line, skipping blanks.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if n := strings.TrimSpace(sc.Text()); n != "" {
			names = append(names, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read names file %s: %w", path, err)
	}
	return names, nil
}

func namesReplacer(names []string) *strings.Replacer {
	lower := make([]string, 0, len(names))
	for _, n := range names {
		lower = append(lower, cases.Lower(language.Und).String(width.Fold.String(n)))
	}
	// longest first so "mary ann" wins over "mary"
	sort.Slice(lower, func(i, j int) bool { return len(lower[i]) > len(lower[j]) })
	pairs := make([]string, 0, len(lower)*2)
	for _, n := range lower {
		pairs = append(pairs, n, " ")
	}
	return strings.NewReplacer(pairs...)
}
