package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/japaniel/ankimorphs/pkg/config"
)

func TestSanitizeRuby(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple Ruby",
			input:    "<ruby>漢字<rt>かんじ</rt></ruby>",
			expected: "<ruby>漢字</ruby>",
		},
		{
			name:     "Ruby with RP",
			input:    "<ruby>漢字<rp>(</rp><rt>かんじ</rt><rp>)</rp></ruby>",
			expected: "<ruby>漢字</ruby>",
		},
		{
			name:     "Multiple Ruby",
			input:    "<ruby>私<rt>わたし</rt></ruby>は<ruby>猫<rt>ねこ</rt></ruby>である",
			expected: "<ruby>私</ruby>は<ruby>猫</ruby>である",
		},
		{
			name:     "Attributes in tags",
			input:    "<ruby class='test'>漢字<rt class='reading'>かんじ</rt></ruby>",
			expected: "<ruby class='test'>漢字</ruby>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeRuby(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML(`<div>one</div><div>two &amp; three</div>[sound:a.mp3]`)
	want := " one  two & three  "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripHTMLNonBreakingSpace(t *testing.T) {
	got := StripHTML("猫&nbsp;が\u00a0いる")
	if got != "猫 が いる" {
		t.Errorf("got %q, want plain spaces", got)
	}
}

func TestCleanOptions(t *testing.T) {
	tests := []struct {
		name string
		opts config.Preprocess
		in   string
		want string
	}{
		{"lowercases", config.Preprocess{}, "The Cat", "the cat"},
		{"square brackets", config.Preprocess{IgnoreSquareBrackets: true}, "漢字[かんじ]です", "漢字です"},
		{"round brackets", config.Preprocess{IgnoreRoundBrackets: true}, "a (note) b", "a  b"},
		{"full width brackets", config.Preprocess{IgnoreFullWidthRoundBrackets: true}, "東京（とうきょう）", "東京"},
		{"keeps brackets when disabled", config.Preprocess{}, "a (b)", "a (b)"},
		{"numerals", config.Preprocess{IgnoreNumerals: true}, "3匹の猫１２", "匹の猫"},
		{"custom characters", config.Preprocess{IgnoreCharacters: "「」"}, "「猫」", "猫"},
		{"furigana markup", config.Preprocess{}, "<ruby>猫<rt>ねこ</rt></ruby>が<b>好き</b>", "猫が好き"},
		{"width fold", config.Preprocess{}, "ＡＢＣ", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := c.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanRemovesNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	if err := os.WriteFile(path, []byte("Mary\nMary Ann\n\n"), 0o644); err != nil {
		t.Fatalf("write names: %v", err)
	}
	c, err := New(config.Preprocess{NamesFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Clean("Mary Ann met Mary today"); got != "met   today" {
		t.Errorf("got %q", got)
	}
}

func TestNewMissingNamesFile(t *testing.T) {
	if _, err := New(config.Preprocess{NamesFile: filepath.Join(t.TempDir(), "nope.txt")}); err == nil {
		t.Fatal("expected error for missing names file")
	}
}
