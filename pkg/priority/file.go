package priority

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Recognised header names.
const (
	HeaderLemma              = "Morph-Lemma"
	HeaderInflection         = "Morph-Inflection"
	HeaderLemmaPriority      = "Lemma-Priority"
	HeaderInflectionPriority = "Inflection-Priority"
	HeaderOccurrences        = "Occurrences"
)

var (
	ErrFileNotFound     = errors.New("priority: frequency file not found")
	ErrFileMalformed    = errors.New("priority: frequency file malformed")
	ErrIncompatibleFile = errors.New("priority: frequency file incompatible with evaluation mode")
)

// FileError reports an unusable frequency file. It unwraps to one of
// ErrFileNotFound, ErrFileMalformed or ErrIncompatibleFile.
type FileError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("frequency file %s: %s", e.Path, e.Reason)
}

func (e *FileError) Unwrap() error { return e.Err }

// header holds the column positions of one file; -1 means absent.
type header struct {
	lemma, inflection           int
	lemmaPriority, inflPriority int
}

func parseHeader(row []string) header {
	h := header{-1, -1, -1, -1}
	for i, name := range row {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case HeaderLemma:
			h.lemma = i
		case HeaderInflection:
			h.inflection = i
		case HeaderLemmaPriority:
			h.lemmaPriority = i
		case HeaderInflectionPriority:
			h.inflPriority = i
		}
	}
	return h
}

// LoadFile reads the frequency file at path for mode.
func LoadFile(path string, mode morph.EvaluationMode) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileError{Path: path, Reason: "file does not exist", Err: ErrFileNotFound}
		}
		return nil, &FileError{Path: path, Reason: err.Error(), Err: ErrFileNotFound}
	}
	defer f.Close()
	return Parse(f, path, mode)
}

// Parse reads a frequency file from r. name is used in errors.
//
// Three shapes are recognised:
//   - lemma only: priority is the row index; lemma mode only
//   - lemma, inflection and numeric priority columns: priority is the value
//     of the column matching mode
//   - lemma and inflection without priorities (a study plan): priority is
//     the row index; inflection mode only
func Parse(r io.Reader, name string, mode morph.EvaluationMode) (Map, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	row, err := cr.Read()
	if err == io.EOF {
		return nil, &FileError{Path: name, Reason: "missing header row", Err: ErrFileMalformed}
	}
	if err != nil {
		return nil, &FileError{Path: name, Reason: err.Error(), Err: ErrFileMalformed}
	}
	h := parseHeader(row)
	if h.lemma < 0 {
		return nil, &FileError{Path: name, Reason: fmt.Sprintf("missing %q header", HeaderLemma), Err: ErrFileMalformed}
	}

	valueCol := -1
	switch mode {
	case morph.EvaluateInflection:
		if h.inflection < 0 {
			return nil, &FileError{Path: name, Reason: fmt.Sprintf("inflection evaluation needs a %q column", HeaderInflection), Err: ErrIncompatibleFile}
		}
		if h.lemmaPriority >= 0 && h.inflPriority < 0 {
			return nil, &FileError{Path: name, Reason: fmt.Sprintf("inflection evaluation of a lemma frequency file needs a %q column", HeaderInflectionPriority), Err: ErrIncompatibleFile}
		}
		valueCol = h.inflPriority
	default:
		if h.inflection >= 0 && h.lemmaPriority < 0 {
			return nil, &FileError{Path: name, Reason: fmt.Sprintf("lemma evaluation of an inflection study plan needs a %q column", HeaderLemmaPriority), Err: ErrIncompatibleFile}
		}
		valueCol = h.lemmaPriority
	}

	out := make(Map)
	for idx := 0; idx < Cutoff; idx++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FileError{Path: name, Reason: err.Error(), Err: ErrFileMalformed}
		}
		lemma, ok := column(row, h.lemma)
		if !ok {
			return nil, &FileError{Path: name, Reason: fmt.Sprintf("row %d has no lemma", idx+2), Err: ErrFileMalformed}
		}
		key := morph.Key{Lemma: lemma, Inflection: lemma}
		if mode == morph.EvaluateInflection {
			infl, ok := column(row, h.inflection)
			if !ok {
				return nil, &FileError{Path: name, Reason: fmt.Sprintf("row %d has no inflection", idx+2), Err: ErrFileMalformed}
			}
			key.Inflection = infl
		}

		p := idx
		if valueCol >= 0 {
			raw, _ := column(row, valueCol)
			p, err = strconv.Atoi(raw)
			if err != nil {
				return nil, &FileError{Path: name, Reason: fmt.Sprintf("row %d: priority %q is not a number", idx+2, raw), Err: ErrFileMalformed}
			}
			if p < 0 || p >= Cutoff {
				continue
			}
		}
		if _, seen := out[key]; !seen {
			out[key] = p
		}
	}
	return out, nil
}

func column(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[i])
	return v, v != ""
}
