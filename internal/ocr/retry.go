package ocr

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"adreview-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingExtractor struct {
	base    Extractor
	batchID string
}

// WithRetry wraps an extractor with a single retry on transient failure.
func WithRetry(base Extractor, batchID string) Extractor {
	if base == nil {
		return nil
	}
	return retryingExtractor{base: base, batchID: batchID}
}

func (r retryingExtractor) Extract(ctx context.Context, image []byte, fileName string) (Result, error) {
	result, err := r.base.Extract(ctx, image, fileName)
	if err == nil || !shouldRetryOCR(err) {
		return result, err
	}

	telemetry.Warn("ocr.retry", map[string]any{
		"batch_id": r.batchID,
		"file":     fileName,
		"error":    err.Error(),
	})
	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	return r.base.Extract(ctx, image, fileName)
}

func shouldRetryOCR(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
