package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a history record does not exist.
var ErrNotFound = errors.New("history record not found")

// Repo persists analysis history records.
type Repo interface {
	Insert(ctx context.Context, record Record) error
	List(ctx context.Context, filter Filter) ([]Record, int, error)
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context, rng DateRange) (Statistics, error)
}
