package batches

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a batch id is unknown or already evicted.
var ErrNotFound = errors.New("batch not found")

// Store holds batch records. Get and List return deep copies; mutation goes
// through Update so every change is applied atomically under the store's own
// synchronization.
type Store interface {
	Create(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
	Update(ctx context.Context, id string, fn func(*Batch) error) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Batch, error)
}
