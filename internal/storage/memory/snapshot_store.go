package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Each pool keeps at most maxPerPool points, oldest dropped first.
type SnapshotStore struct {
	mu         sync.RWMutex
	data       map[string][]domain.PoolSnapshot // keyed by pool address, ordered by timestamp
	maxPerPool int
}

func NewSnapshotStore(maxPerPool int) *SnapshotStore {
	if maxPerPool <= 0 {
		maxPerPool = 5760 // two days at 30s
	}
	return &SnapshotStore{data: make(map[string][]domain.PoolSnapshot), maxPerPool: maxPerPool}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []domain.PoolSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, snap := range snapshots {
		if snap.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
		s.data[snap.PoolAddress] = append(s.data[snap.PoolAddress], snap)
		touched[snap.PoolAddress] = true
	}
	for pool := range touched {
		points := s.data[pool]
		sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
		if len(points) > s.maxPerPool {
			points = append([]domain.PoolSnapshot(nil), points[len(points)-s.maxPerPool:]...)
		}
		s.data[pool] = points
	}
	return nil
}

func (s *SnapshotStore) History(_ context.Context, pool string, since time.Time, limit int) ([]domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PoolSnapshot
	for _, p := range s.data[pool] {
		if p.Timestamp.Before(since) {
			continue
		}
		result = append(result, p)
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}
