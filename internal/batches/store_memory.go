package batches

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps batches in memory and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*Batch)}
}

// Create stores a new batch.
func (s *MemoryStore) Create(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return fmt.Errorf("batch %s already exists", batch.ID)
	}
	s.batches[batch.ID] = batch.Clone()
	return nil
}

// Get returns a deep copy of the batch.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return batch.Clone(), nil
}

// Update applies fn to the stored batch under the store lock. fn sees the
// live record; returning an error aborts the update.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return ErrNotFound
	}
	return fn(batch)
}

// Delete removes the batch.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return ErrNotFound
	}
	delete(s.batches, id)
	return nil
}

// List returns deep copies of all batches, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Batch, 0, len(s.batches))
	for _, batch := range s.batches {
		out = append(out, batch.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}
