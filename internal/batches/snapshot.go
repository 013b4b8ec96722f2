package batches

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// saveSnapshot writes the terminal batch as durable JSON so completed results
// survive a process restart and store eviction.
func (s *Service) saveSnapshot(ctx context.Context, batch *Batch) error {
	payload, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal batch snapshot: %w", err)
	}
	if _, _, _, err := s.Objects.Save(ctx, snapshotRoot, batch.ID+".json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write batch snapshot: %w", err)
	}
	return nil
}

func (s *Service) loadSnapshot(ctx context.Context, batchID string) (*Batch, error) {
	body, err := s.Objects.Open(ctx, snapshotKey(batchID))
	if err != nil {
		return nil, ErrNotFound
	}
	defer body.Close()

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read batch snapshot: %w", err)
	}
	var batch Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("decode batch snapshot: %w", err)
	}
	return &batch, nil
}
