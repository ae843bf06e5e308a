package memory

import (
	"context"
	"sync"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"
)

// AirdropStore is an in-memory implementation of storage.AirdropStore.
type AirdropStore struct {
	mu     sync.RWMutex
	byHash map[string]*domain.AirdropRun
	byID   map[string]*domain.AirdropRun
}

func NewAirdropStore() *AirdropStore {
	return &AirdropStore{
		byHash: make(map[string]*domain.AirdropRun),
		byID:   make(map[string]*domain.AirdropRun),
	}
}

var _ storage.AirdropStore = (*AirdropStore)(nil)

func copyRun(r *domain.AirdropRun) *domain.AirdropRun {
	c := *r
	c.Batches = make([]domain.AirdropBatch, len(r.Batches))
	for i, b := range r.Batches {
		b.Recipients = append([]domain.AirdropRecipient(nil), b.Recipients...)
		c.Batches[i] = b
	}
	return &c
}

func (s *AirdropStore) UpsertRun(_ context.Context, run *domain.AirdropRun) error {
	if run == nil || run.ID == "" || run.PlanHash == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byHash[run.PlanHash]; ok && existing.ID != run.ID {
		return storage.ErrDuplicateKey
	}
	c := copyRun(run)
	s.byHash[run.PlanHash] = c
	s.byID[run.ID] = c
	return nil
}

func (s *AirdropStore) GetRun(_ context.Context, planHash string) (*domain.AirdropRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byHash[planHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

func (s *AirdropStore) MarkBatch(_ context.Context, runID string, index int, digest string, status domain.BatchStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[runID]
	if !ok || index < 0 || index >= len(r.Batches) {
		return storage.ErrNotFound
	}
	r.Batches[index].Status = status
	r.Batches[index].Digest = digest
	r.Batches[index].Error = errMsg
	r.UpdatedAt = time.Now().UTC()
	return nil
}
