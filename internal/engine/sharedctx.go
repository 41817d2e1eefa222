package engine

import "sync"

// SharedContext is the per-run scratch space for values several checks
// depend on, such as detected face regions. The first caller for a tag runs
// the computation; concurrent callers for the same tag block until it
// finishes and receive the identical value. Failed computations are cached
// too, so a broken dependency surfaces once and is replayed to every
// consumer instead of being retried per check.
type SharedContext struct {
	mu      sync.Mutex
	entries map[string]*sharedEntry
}

type sharedEntry struct {
	done  chan struct{}
	value any
	err   error
}

// NewSharedContext creates an empty scratch space for one validation run.
func NewSharedContext() *SharedContext {
	return &SharedContext{entries: make(map[string]*sharedEntry)}
}

// GetOrCompute returns the cached value for tag, computing it via fn exactly
// once per run across all goroutines.
func (s *SharedContext) GetOrCompute(tag string, compute func() (any, error)) (any, error) {
	s.mu.Lock()
	if e, ok := s.entries[tag]; ok {
		s.mu.Unlock()
		<-e.done
		return e.value, e.err
	}

	e := &sharedEntry{done: make(chan struct{})}
	s.entries[tag] = e
	s.mu.Unlock()

	e.value, e.err = compute()
	close(e.done)
	return e.value, e.err
}
