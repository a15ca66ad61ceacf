package priority

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/morph"
	"golang.org/x/sync/errgroup"
)

// CollectionSource names priorities counted from the cache.
const CollectionSource = "collection"

// DefaultRegistrySize bounds how many maps a registry keeps.
const DefaultRegistrySize = 16

type sourceKey struct {
	source string
	mode   morph.EvaluationMode
}

// Registry memoises priority maps per (source, mode) for the lifetime of a
// process. Maps derive from the cache or from files that may change between
// runs, so a recalculation calls Invalidate before resolving anything.
type Registry struct {
	// Cache is the morph data cache collection priorities are counted from.
	Cache *sql.DB
	// Dir resolves relative frequency file names.
	Dir string

	maps *lru.Cache[sourceKey, Map]
}

// NewRegistry returns a registry holding up to size maps.
func NewRegistry(db *sql.DB, dir string, size int) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	maps, err := lru.New[sourceKey, Map](size)
	if err != nil {
		return nil, fmt.Errorf("priority registry: %w", err)
	}
	return &Registry{Cache: db, Dir: dir, maps: maps}, nil
}

// Invalidate forgets every memoised map.
func (r *Registry) Invalidate() { r.maps.Purge() }

// Len reports how many maps are memoised.
func (r *Registry) Len() int { return r.maps.Len() }

// Path resolves a frequency file name against Dir.
func (r *Registry) Path(source string) string {
	if filepath.IsAbs(source) || r.Dir == "" {
		return source
	}
	return filepath.Join(r.Dir, source)
}

// Get returns the priority map of source, loading it on first use. source is
// CollectionSource or a frequency file name.
func (r *Registry) Get(ctx context.Context, source string, mode morph.EvaluationMode) (Map, error) {
	key := sourceKey{source: source, mode: mode}
	if m, ok := r.maps.Get(key); ok {
		return m, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m Map
	if source == CollectionSource {
		if r.Cache == nil {
			return nil, fmt.Errorf("collection priorities: no cache configured")
		}
		occ, err := cache.MorphOccurrences(r.Cache, mode)
		if err != nil {
			return nil, fmt.Errorf("collection priorities: %w", err)
		}
		keys := make([]morph.Key, len(occ))
		for i, o := range occ {
			keys[i] = o.Key
		}
		m = FromOccurrences(keys)
	} else {
		var err error
		if m, err = LoadFile(r.Path(source), mode); err != nil {
			return nil, err
		}
	}
	r.maps.Add(key, m)
	return m, nil
}

// ResolveAll loads every distinct source concurrently. The first failure
// cancels the rest and is returned.
func (r *Registry) ResolveAll(ctx context.Context, sources []string, mode morph.EvaluationMode) (map[string]Map, error) {
	distinct := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		distinct[s] = struct{}{}
	}

	var mu sync.Mutex
	results := make(map[string]Map, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	for s := range distinct {
		s := s
		g.Go(func() error {
			m, err := r.Get(gctx, s, mode)
			if err != nil {
				return err
			}
			mu.Lock()
			results[s] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
