package filing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adreview-backend/internal/batches"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/storage/object"
	"adreview-backend/internal/shared/telemetry"
)

const resultsRoot = "results"

// ErrUnknownBatch is returned when the batch id has no record or snapshot.
var ErrUnknownBatch = errors.New("unknown batch")

// Item is one file to classify into a judgment bucket.
type Item struct {
	Filename string `json:"filename"`
	Category string `json:"category"`
}

// Result aggregates a classify call. Per-item failures never abort the batch
// operation; they are counted and described instead.
type Result struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors"`
}

// Service moves analyzed files from the batch scratch area into one bucket
// per judgment category.
type Service struct {
	Objects object.ObjectStore
	Batches *batches.Service
}

// Classify files each item under results/<category>/<batchID>/. The call is
// idempotent per file: a file already in its target bucket counts as success.
func (s *Service) Classify(ctx context.Context, batchID string, items []Item) (Result, error) {
	if strings.TrimSpace(batchID) == "" {
		return Result{}, errors.New("batch id is required")
	}
	if len(items) == 0 {
		return Result{}, errors.New("at least one item is required")
	}

	batch, err := s.Batches.GetStatus(ctx, batchID)
	if err != nil {
		if errors.Is(err, batches.ErrNotFound) {
			return Result{}, ErrUnknownBatch
		}
		return Result{}, err
	}

	result := Result{Errors: []string{}}
	for _, item := range items {
		if err := s.classifyOne(ctx, batch, item); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", item.Filename, err))
			continue
		}
		result.SuccessCount++
	}

	telemetry.Info("filing.classified", map[string]any{
		"batch_id":  batchID,
		"succeeded": result.SuccessCount,
		"failed":    result.FailedCount,
	})
	return result, nil
}

func (s *Service) classifyOne(ctx context.Context, batch *batches.Batch, item Item) error {
	if !scoring.ValidJudgment(item.Category) {
		return fmt.Errorf("invalid category %q", item.Category)
	}
	if _, ok := batch.FileStates[item.Filename]; !ok {
		return errors.New("filename not part of the batch")
	}

	targetPrefix := bucketKey(item.Category, batch.ID)
	targetKey := targetPrefix + "/" + item.Filename
	if s.exists(ctx, targetKey) {
		return nil
	}

	sourceKey := "temp/" + batch.ID + "/" + item.Filename
	body, err := s.Objects.Open(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("source file missing: %w", err)
	}
	defer body.Close()

	if _, _, _, err := s.Objects.Save(ctx, targetPrefix, item.Filename, body); err != nil {
		return fmt.Errorf("store to bucket: %w", err)
	}
	if err := s.Objects.Delete(ctx, sourceKey); err != nil {
		// The copy landed; a leftover scratch file is the janitor's problem.
		telemetry.Warn("filing.scratch_cleanup_failed", map[string]any{
			"batch_id": batch.ID,
			"file":     item.Filename,
			"error":    err.Error(),
		})
	}
	return nil
}

func (s *Service) exists(ctx context.Context, key string) bool {
	body, err := s.Objects.Open(ctx, key)
	if err != nil {
		return false
	}
	body.Close()
	return true
}

func bucketKey(category, batchID string) string {
	return resultsRoot + "/" + category + "/" + batchID
}

// Buckets lists the destination bucket names, one per judgment.
func Buckets() []string {
	return scoring.Judgments()
}
