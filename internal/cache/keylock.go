package cache

import (
	"sync"

	"github.com/finscope/histcache/internal/series"
)

// keyLocks is the per-key coordination table: one exclusive lock per
// cache key, created lazily on first use and never removed. Unrelated
// keys proceed in parallel; a single global mutex would serialize every
// symbol behind the slowest upstream fetch.
type keyLocks struct {
	mu sync.Mutex
	m  map[series.Key]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: make(map[series.Key]*sync.Mutex)}
}

func (l *keyLocks) get(k series.Key) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	km, ok := l.m[k]
	if !ok {
		km = &sync.Mutex{}
		l.m[k] = km
	}
	return km
}
