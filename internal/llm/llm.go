package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for advertisement review.
type Client interface {
	// AnalyzeNarrative produces free-form compliance reasoning about the text.
	AnalyzeNarrative(ctx context.Context, input NarrativeInput) (string, error)
	// ExtractVerdict turns the narrative into a strict JSON verdict payload.
	ExtractVerdict(ctx context.Context, input VerdictInput) (json.RawMessage, error)
}

// NarrativeInput captures the inputs for the narrative stage.
type NarrativeInput struct {
	Text     string
	Passages []string
}

// VerdictInput captures the inputs for the verdict extraction stage.
type VerdictInput struct {
	Text      string
	Narrative string
	Schema    map[string]any
}

type fixJSONKey struct{}

// WithFixJSON returns a context signaling a fix-JSON retry with the given raw output.
func WithFixJSON(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, fixJSONKey{}, raw)
}

// FixJSONFromContext returns the raw JSON to repair, if any.
func FixJSONFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(fixJSONKey{})
	raw, ok := val.(string)
	return raw, ok
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM not configured")

// PlaceholderClient is used when no provider credentials are configured; the
// scoring engine then degrades to keyword-only results.
type PlaceholderClient struct{}

// AnalyzeNarrative returns ErrNotConfigured.
func (PlaceholderClient) AnalyzeNarrative(ctx context.Context, input NarrativeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}

// ExtractVerdict returns ErrNotConfigured.
func (PlaceholderClient) ExtractVerdict(ctx context.Context, input VerdictInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotConfigured
}
