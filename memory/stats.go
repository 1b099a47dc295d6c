package memory

import "sync/atomic"

// Stats is a snapshot of the backend's runtime counters, generalizing the
// teacher's hit/miss/eviction tally to the scope-aware backend.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// stats holds the live counters; fields are updated with atomic
// operations so Stats() never needs to take the backend's locks.
type stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}
