package pipeline

import (
	"context"
	"time"

	"adreview-backend/internal/ocr"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/metrics"
	"adreview-backend/internal/shared/telemetry"
)

// Default per-file stage timeouts.
const (
	DefaultOCRTimeout      = 30 * time.Second
	DefaultAnalysisTimeout = 60 * time.Second
)

// Progress reports a file entering a pipeline stage. Implementations must be
// cheap; the runner calls it synchronously.
type Progress func(status string, progress int)

// FileInput is one file handed to the runner.
type FileInput struct {
	BatchID  string
	FileName string
	Image    []byte
	Options  scoring.Options
}

// FileResult is the runner's output for one successfully processed file.
type FileResult struct {
	Extraction ocr.Result
	Outcome    scoring.Outcome
}

// Runner drives a single file through extraction and scoring. Each stage has
// its own file-local timeout; exceeding one never affects sibling files.
type Runner struct {
	Extractor       ocr.Extractor
	Engine          *scoring.Engine
	OCRTimeout      time.Duration
	AnalysisTimeout time.Duration
}

// Process runs the per-file pipeline. A total extraction failure is the only
// error path; analysis failures degrade to a keyword-only outcome instead.
func (r *Runner) Process(ctx context.Context, in FileInput, report Progress) (FileResult, error) {
	if report == nil {
		report = func(string, int) {}
	}

	report("ocr", 10)
	extraction, err := r.extract(ctx, in)
	if err != nil {
		return FileResult{}, err
	}

	report("analyzing", 50)
	outcome, err := r.analyze(ctx, extraction.Text, in.Options)
	if err != nil {
		return FileResult{}, err
	}

	return FileResult{Extraction: extraction, Outcome: outcome}, nil
}

func (r *Runner) extract(ctx context.Context, in FileInput) (ocr.Result, error) {
	timeout := r.OCRTimeout
	if timeout <= 0 {
		timeout = DefaultOCRTimeout
	}
	octx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	extractor := ocr.WithRetry(r.Extractor, in.BatchID)
	startedAt := time.Now()
	result, err := extractor.Extract(octx, in.Image, in.FileName)
	metrics.ObserveOCRDurationMs(float64(time.Since(startedAt).Microseconds()) / 1000.0)
	if err != nil {
		return ocr.Result{}, err
	}
	if result.Text == "" {
		// Empty extraction still proceeds; the scorer will mark it NA.
		telemetry.Info("pipeline.empty_extraction", map[string]any{
			"batch_id": in.BatchID,
			"file":     in.FileName,
		})
	}
	return result, nil
}

func (r *Runner) analyze(ctx context.Context, text string, opts scoring.Options) (scoring.Outcome, error) {
	timeout := r.AnalysisTimeout
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := r.Engine.Analyze(actx, text, opts)
	if err == nil {
		return outcome, nil
	}
	if ctx.Err() != nil {
		return scoring.Outcome{}, ctx.Err()
	}

	// The analysis deadline expired mid-stage. The keyword-only pass is local
	// and cheap, so the file still completes.
	telemetry.Warn("pipeline.analysis_timeout", map[string]any{"error": err.Error()})
	return r.Engine.Analyze(ctx, text, scoring.Options{})
}
