package runix

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// ParseCache remembers the result of ParseSource for recently seen source
// texts. Cached programs are shared between evaluations, which is safe
// because the evaluator never mutates the tree. A ParseCache may be shared by
// several interpreters.
type ParseCache struct {
	entries *lru.Cache // source string -> parsed

	hits   uint64
	misses uint64
}

type parsed struct {
	prog *Program
	err  error
}

// NewParseCache creates a cache holding at most size programs.
func NewParseCache(size int) (*ParseCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ParseCache{entries: c}, nil
}

// Parse returns the cached result for src, parsing and storing it on a miss.
// Diagnostics are cached together with the program.
func (pc *ParseCache) Parse(src string) (*Program, error) {
	if v, ok := pc.entries.Get(src); ok {
		atomic.AddUint64(&pc.hits, 1)
		p := v.(parsed)
		return p.prog, p.err
	}
	atomic.AddUint64(&pc.misses, 1)
	prog, err := ParseSource(src)
	pc.entries.Add(src, parsed{prog: prog, err: err})
	return prog, err
}

// Len is the number of cached programs.
func (pc *ParseCache) Len() int { return pc.entries.Len() }

// Stats reports cache hits and misses since creation or the last Purge.
func (pc *ParseCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&pc.hits), atomic.LoadUint64(&pc.misses)
}

// Purge empties the cache and resets its counters.
func (pc *ParseCache) Purge() {
	pc.entries.Purge()
	atomic.StoreUint64(&pc.hits, 0)
	atomic.StoreUint64(&pc.misses, 0)
}
