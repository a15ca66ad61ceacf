// Package morphemizer defines the interface that turns sentences into
// morphemes and ships the built-in variants.
package morphemizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/japaniel/ankimorphs/pkg/morph"
)

// Morphemizer splits text into morphemes.
//
// ProcessedMorphs returns exactly one morph list per input sentence, in input
// order. Implementations must be safe for concurrent use.
type Morphemizer interface {
	Name() string
	Description() string
	ProcessedMorphs(ctx context.Context, sentences []string) ([][]morph.Morpheme, error)
}

// Registry maps names used in note filters to morphemizers. One registry is
// built per process and handed to the recalculator.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Morphemizer
}

// NewRegistry returns a registry holding ms.
func NewRegistry(ms ...Morphemizer) *Registry {
	r := &Registry{m: make(map[string]Morphemizer, len(ms))}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// NewDefaultRegistry registers every built-in morphemizer. Dictionaries are
// loaded on first use.
func NewDefaultRegistry(skipProperNouns bool) *Registry {
	return NewRegistry(
		NewSimpleSpace(),
		NewKagome(skipProperNouns),
		NewJieba(),
	)
}

// Register adds or replaces m under m.Name().
func (r *Registry) Register(m Morphemizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[m.Name()] = m
}

// Get looks a morphemizer up by name.
func (r *Registry) Get(name string) (Morphemizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.m[name]
	return m, ok
}

// Names lists the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for n := range r.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// checkLen guards the one-list-per-sentence contract.
func checkLen(name string, in int, out [][]morph.Morpheme) error {
	if len(out) != in {
		return fmt.Errorf("morphemizer %s returned %d results for %d sentences", name, len(out), in)
	}
	return nil
}

// Process runs m and verifies the result shape.
func Process(ctx context.Context, m Morphemizer, sentences []string) ([][]morph.Morpheme, error) {
	out, err := m.ProcessedMorphs(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("morphemizer %s: %w", m.Name(), err)
	}
	if err := checkLen(m.Name(), len(sentences), out); err != nil {
		return nil, err
	}
	return out, nil
}
