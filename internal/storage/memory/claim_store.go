package memory

import (
	"context"
	"sort"
	"sync"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"
)

// ClaimStore is an in-memory implementation of storage.ClaimStore.
type ClaimStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClaimReceipt // keyed by receipt id
}

func NewClaimStore() *ClaimStore {
	return &ClaimStore{data: make(map[string]*domain.ClaimReceipt)}
}

var _ storage.ClaimStore = (*ClaimStore)(nil)

func copyReceipt(r *domain.ClaimReceipt) *domain.ClaimReceipt {
	c := *r
	c.Digests = append([]string(nil), r.Digests...)
	return &c
}

func (s *ClaimStore) Insert(_ context.Context, r *domain.ClaimReceipt) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.ID] = copyReceipt(r)
	return nil
}

func (s *ClaimStore) Get(_ context.Context, id string) (*domain.ClaimReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReceipt(r), nil
}

func (s *ClaimStore) ListByUser(_ context.Context, user string, limit int) ([]*domain.ClaimReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClaimReceipt
	for _, r := range s.data {
		if r.User == user {
			result = append(result, copyReceipt(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
