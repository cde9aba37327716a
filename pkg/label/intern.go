package label

import (
	"sync"
	"sync/atomic"
)

// Interner caches parsed labels keyed by their source text so that
// repeated references across many rule conversions share one parse. It is
// safe for concurrent use; it is an optimization only, never required for
// correctness.
type Interner struct {
	cache  sync.Map // string -> Label
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Parse parses absolute label text through the cache.
func (in *Interner) Parse(text string) (Label, error) {
	if v, ok := in.cache.Load(text); ok {
		in.hits.Add(1)
		return v.(Label), nil
	}
	l, err := Parse(text)
	if err != nil {
		return Label{}, err
	}
	in.misses.Add(1)
	in.cache.Store(text, l)
	return l, nil
}

// Stats returns the cumulative cache hit and miss counts.
func (in *Interner) Stats() (hits, misses uint64) {
	return in.hits.Load(), in.misses.Load()
}
