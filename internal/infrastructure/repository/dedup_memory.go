package repository

import (
	"context"
	"sync"

	"github.com/multicreator/mintpipe"
)

// MemoryDedupRegistry is a process-local fingerprint registry. The
// mutex makes check-and-reserve atomic: of N concurrent calls bearing
// the same fingerprint exactly one wins.
//
// State is lost on restart; use RestoreReservations to re-seed it from
// the durable minted set.
type MemoryDedupRegistry struct {
	mu       sync.Mutex
	reserved map[mintpipe.Fingerprint]struct{}
}

func NewMemoryDedupRegistry() *MemoryDedupRegistry {
	return &MemoryDedupRegistry{
		reserved: make(map[mintpipe.Fingerprint]struct{}),
	}
}

func (r *MemoryDedupRegistry) CheckAndReserve(ctx context.Context, fp mintpipe.Fingerprint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reserved[fp]; ok {
		return false, nil
	}
	r.reserved[fp] = struct{}{}
	return true, nil
}

func (r *MemoryDedupRegistry) Release(ctx context.Context, fp mintpipe.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, fp)
	return nil
}

// Persist marks a fingerprint permanently reserved. In-memory
// reservations never expire, so reserving is sufficient.
func (r *MemoryDedupRegistry) Persist(ctx context.Context, fp mintpipe.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserved[fp] = struct{}{}
	return nil
}
