package server

import (
	"context"
	"errors"
	"sync"

	"github.com/kmjones1979/ampersend-sdk/types"
)

var ErrRequirementsNotFound = errors.New("payment requirements not found")

// RequirementsStore remembers what was asked of each task until the task is
// paid for.
type RequirementsStore interface {
	Put(ctx context.Context, taskID string, required *types.PaymentRequiredResponse) error
	Get(ctx context.Context, taskID string) (*types.PaymentRequiredResponse, error)
	Delete(ctx context.Context, taskID string) error
}

// MemoryStore keeps requirements in process memory.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*types.PaymentRequiredResponse
}

var _ RequirementsStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]*types.PaymentRequiredResponse{}}
}

func (s *MemoryStore) Put(_ context.Context, taskID string, required *types.PaymentRequiredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[taskID] = required
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*types.PaymentRequiredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[taskID]
	if !ok {
		return nil, ErrRequirementsNotFound
	}
	return r, nil
}

func (s *MemoryStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, taskID)
	return nil
}
