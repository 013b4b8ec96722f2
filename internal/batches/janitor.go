package batches

import (
	"context"
	"time"

	"adreview-backend/internal/shared/telemetry"
)

// Janitor evicts terminal batches past the retention window from the
// in-memory store, along with their scratch files. Durable snapshots are
// kept so status reads keep working after eviction. Live batches are never
// touched.
type Janitor struct {
	Service   *Service
	Retention time.Duration
	Interval  time.Duration
}

// Start runs the sweep loop until the context is done.
func (j *Janitor) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweep(ctx)
			}
		}
	}()
}

func (j *Janitor) sweep(ctx context.Context) {
	retention := j.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	all, err := j.Service.List(ctx)
	if err != nil {
		telemetry.Error("janitor.list_failed", map[string]any{"error": err.Error()})
		return
	}

	cutoff := time.Now().UTC().Add(-retention)
	evicted := 0
	for _, batch := range all {
		if !batch.IsTerminal() || batch.CompletedAt == nil {
			continue
		}
		if batch.CompletedAt.After(cutoff) {
			continue
		}
		if err := j.Service.Evict(ctx, batch.ID); err != nil {
			telemetry.Error("janitor.evict_failed", map[string]any{"batch_id": batch.ID, "error": err.Error()})
			continue
		}
		evicted++
	}
	if evicted > 0 {
		telemetry.Info("janitor.swept", map[string]any{"evicted": evicted})
	}
}
