// Package inflight tracks race batches currently being processed.
//
// Re-processing a race is always safe (results and predictions are
// immutable and per-user application is idempotent), but two concurrent
// batches for the same race would burn store capacity doing identical
// work. The guard collapses them to one.
package inflight

import (
	"sync"
)

// Guard admits at most one in-flight batch per key.
type Guard interface {
	// TryAcquire records key as in flight. Returns false if a batch for
	// key is already running.
	TryAcquire(key string) bool

	// Release clears key so a later batch may run.
	Release(key string)

	// Size returns the number of keys currently in flight.
	Size() int
}

type guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// New creates an empty Guard.
func New() Guard {
	return &guard{running: make(map[string]struct{})}
}

func (g *guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[key]; busy {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

func (g *guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, key)
}

func (g *guard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
