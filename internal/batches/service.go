package batches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"adreview-backend/internal/history"
	"adreview-backend/internal/ocr"
	"adreview-backend/internal/pipeline"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/metrics"
	"adreview-backend/internal/shared/storage/object"
	"adreview-backend/internal/shared/telemetry"
)

const (
	maxFileSizeBytes = 10 << 20
	maxBatchFiles    = 100

	scratchRoot  = "temp"
	snapshotRoot = "batch_results"
	resultsRoot  = "results"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Submission errors surfaced to the HTTP layer as validation failures.
var (
	ErrNoFiles         = errors.New("at least one file is required")
	ErrTooManyFiles    = errors.New("file count exceeds the engine ceiling")
	ErrFileTooLarge    = errors.New("file exceeds the 10MB size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrBatchNotDone    = errors.New("batch is still processing")
)

// FileUpload is one incoming file for a batch submission.
type FileUpload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Service orchestrates batch analysis: validation, scratch storage, the
// bounded worker pool and snapshot persistence.
type Service struct {
	Store      Store
	Objects    object.ObjectStore
	Extractors map[string]ocr.Extractor
	Engine     *scoring.Engine

	// History receives one record per successfully analyzed file when set.
	// Recording is best effort and never fails the file.
	History history.Repo

	OCRTimeout      time.Duration
	AnalysisTimeout time.Duration
}

// Submit validates the request, stores the files to the batch scratch area
// and launches processing. It returns as soon as the batch record exists;
// analysis always runs in the background.
func (s *Service) Submit(ctx context.Context, engine string, files []FileUpload, opts scoring.Options) (*Batch, error) {
	limit, err := ocr.EngineLimit(engine)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > maxBatchFiles {
		return nil, fmt.Errorf("%w: %d files, ceiling %d", ErrTooManyFiles, len(files), maxBatchFiles)
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		if !allowedImageExts[ext] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Name)
		}
		if f.Size > maxFileSizeBytes {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, f.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate filename: %s", f.Name)
		}
		seen[f.Name] = true
	}
	if _, ok := s.Extractors[strings.ToLower(engine)]; !ok {
		return nil, fmt.Errorf("%w: %q", ocr.ErrUnsupportedEngine, engine)
	}

	batch := &Batch{
		ID:         newBatchID(),
		Status:     StatusUploading,
		Engine:     strings.ToLower(engine),
		Options:    opts,
		TotalFiles: len(files),
		StartTime:  time.Now().UTC(),
		FileStates: make(map[string]*FileState, len(files)),
		Results:    []Outcome{},
	}
	for _, f := range files {
		batch.FileOrder = append(batch.FileOrder, f.Name)
		batch.FileStates[f.Name] = &FileState{Filename: f.Name, Status: FileStatusUploading}
	}
	if err := s.Store.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch record: %w", err)
	}

	for _, f := range files {
		if _, _, _, err := s.Objects.Save(ctx, scratchKey(batch.ID), f.Name, f.Reader); err != nil {
			saveErr := fmt.Errorf("store file %s: %w", f.Name, err)
			s.failBatch(ctx, batch.ID, saveErr)
			return nil, saveErr
		}
		_ = s.Store.Update(ctx, batch.ID, func(b *Batch) error {
			advanceFile(b, f.Name, FileStatusPending, 0, "")
			return nil
		})
	}

	if err := s.Store.Update(ctx, batch.ID, func(b *Batch) error {
		b.Status = StatusProcessing
		return nil
	}); err != nil {
		return nil, err
	}
	metrics.IncBatchStarted()
	telemetry.Info("batch.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"batch_id":          batch.ID,
		"engine":            batch.Engine,
		"file_count":        batch.TotalFiles,
		"status":            StatusProcessing,
		"status_transition": "uploading->processing",
	})

	go s.processAsync(backgroundWithRequestID(ctx), batch.ID, limit)

	return s.Store.Get(ctx, batch.ID)
}

// GetStatus returns a point-in-time snapshot. Batches evicted from the store
// are served from their durable snapshot when one exists.
func (s *Service) GetStatus(ctx context.Context, batchID string) (*Batch, error) {
	batch, err := s.Store.Get(ctx, batchID)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.loadSnapshot(ctx, batchID)
}

// Delete evicts a terminal batch with its snapshot and scratch files.
func (s *Service) Delete(ctx context.Context, batchID string) error {
	batch, err := s.Store.Get(ctx, batchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Store entry already evicted; still clear durable leftovers.
			return s.deleteArtifacts(ctx, batchID)
		}
		return err
	}
	if !batch.IsTerminal() {
		return ErrBatchNotDone
	}
	if err := s.Store.Delete(ctx, batchID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.deleteArtifacts(ctx, batchID)
}

// Evict drops a batch from the in-memory store and clears its scratch files.
// The durable snapshot stays behind so GetStatus keeps serving the batch;
// only an explicit Delete removes it.
func (s *Service) Evict(ctx context.Context, batchID string) error {
	if err := s.Store.Delete(ctx, batchID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	keys, err := s.Objects.List(ctx, scratchKey(batchID))
	if err != nil {
		return nil
	}
	for _, key := range keys {
		_ = s.Objects.Delete(ctx, key)
	}
	return nil
}

// List returns snapshots of all known batches, newest first.
func (s *Service) List(ctx context.Context) ([]*Batch, error) {
	return s.Store.List(ctx)
}

// OpenFile streams a batch image for result review. Files still in the
// scratch area are served from there; files already filed into a judgment
// bucket are found by probing the buckets.
func (s *Service) OpenFile(ctx context.Context, batchID, fileName string) (io.ReadCloser, error) {
	if _, err := s.Store.Get(ctx, batchID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	body, err := s.Objects.Open(ctx, scratchKey(batchID)+"/"+fileName)
	if err == nil {
		return body, nil
	}
	for _, judgment := range scoring.Judgments() {
		if filed, bucketErr := s.Objects.Open(ctx, resultsRoot+"/"+judgment+"/"+batchID+"/"+fileName); bucketErr == nil {
			return filed, nil
		}
	}
	return nil, err
}

func (s *Service) processAsync(ctx context.Context, batchID string, limit int) {
	defer func() {
		if r := recover(); r != nil {
			s.failBatch(ctx, batchID, fmt.Errorf("panic: %v", r))
		}
	}()

	batch, err := s.Store.Get(ctx, batchID)
	if err != nil {
		telemetry.Error("batch.lookup_failed", map[string]any{"batch_id": batchID, "error": err.Error()})
		return
	}

	extractor := s.Extractors[batch.Engine]
	if extractor == nil {
		s.failBatch(ctx, batchID, fmt.Errorf("no extractor for engine %q", batch.Engine))
		return
	}
	runner := &pipeline.Runner{
		Extractor:       extractor,
		Engine:          s.Engine,
		OCRTimeout:      s.OCRTimeout,
		AnalysisTimeout: s.AnalysisTimeout,
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, fileName := range batch.FileOrder {
		wg.Add(1)
		go func(fileName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.processFile(ctx, runner, batchID, fileName, batch.Engine, batch.Options)
		}(fileName)
	}
	wg.Wait()

	s.finishBatch(ctx, batchID)
}

// processFile runs one file's pipeline and records its terminal outcome. The
// file is owned by this worker for its whole lifetime; every store mutation
// is a single atomic update.
func (s *Service) processFile(ctx context.Context, runner *pipeline.Runner, batchID, fileName, engine string, opts scoring.Options) {
	body, err := s.Objects.Open(ctx, scratchKey(batchID)+"/"+fileName)
	if err != nil {
		s.failFile(ctx, batchID, fileName, fmt.Errorf("open scratch file: %w", err))
		return
	}
	image, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		s.failFile(ctx, batchID, fileName, fmt.Errorf("read scratch file: %w", err))
		return
	}

	startedAt := time.Now()
	report := func(status string, progress int) {
		_ = s.Store.Update(ctx, batchID, func(b *Batch) error {
			advanceFile(b, fileName, status, progress, "")
			return nil
		})
	}

	result, err := runner.Process(ctx, pipeline.FileInput{
		BatchID:  batchID,
		FileName: fileName,
		Image:    image,
		Options:  opts,
	}, report)
	if err != nil {
		s.failFile(ctx, batchID, fileName, err)
		return
	}

	extraction := result.Extraction
	outcome := result.Outcome
	_ = s.Store.Update(ctx, batchID, func(b *Batch) error {
		advanceFile(b, fileName, FileStatusCompleted, 100, "")
		b.Results = append(b.Results, Outcome{
			Filename:   fileName,
			Success:    true,
			Extraction: &extraction,
			Analysis:   &outcome,
		})
		b.ProcessedFiles++
		return nil
	})
	metrics.IncFileProcessed()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(startedAt).Microseconds()) / 1000.0)
	s.recordHistory(ctx, batchID, fileName, engine, extraction, outcome)
	telemetry.Info("file.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"batch_id":   batchID,
		"file":       fileName,
		"status":     FileStatusCompleted,
		"risk_score": outcome.RiskScore,
		"judgment":   outcome.Judgment,
	})
}

// recordHistory persists one analysis record for later querying. History
// storage is optional and failures are logged, never propagated.
func (s *Service) recordHistory(ctx context.Context, batchID, fileName, engine string, extraction ocr.Result, outcome scoring.Outcome) {
	if s.History == nil {
		return
	}

	categories := make([]string, 0, len(outcome.KeywordMatches))
	keywords := make([]string, 0, len(outcome.KeywordMatches))
	seenCategory := make(map[string]bool)
	seenKeyword := make(map[string]bool)
	for _, match := range outcome.KeywordMatches {
		if !seenCategory[match.Category] {
			seenCategory[match.Category] = true
			categories = append(categories, match.Category)
		}
		if !seenKeyword[match.Term] {
			seenKeyword[match.Term] = true
			keywords = append(keywords, match.Term)
		}
	}
	for _, violation := range outcome.Violations {
		if violation.Category != "" && !seenCategory[violation.Category] {
			seenCategory[violation.Category] = true
			categories = append(categories, violation.Category)
		}
	}

	record := history.Record{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		Filename:       fileName,
		Engine:         engine,
		RiskScore:      outcome.RiskScore,
		RiskLevel:      outcome.RiskLevel,
		Judgment:       outcome.Judgment,
		KeywordScore:   outcome.KeywordScore,
		AIContribution: outcome.AIContribution,
		UsedAI:         outcome.UsedAI,
		UsedRAG:        outcome.UsedRAG,
		Confidence:     extraction.Confidence,
		Summary:        outcome.Summary,
		Categories:     categories,
		Keywords:       keywords,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.History.Insert(ctx, record); err != nil {
		telemetry.Warn("history.insert_failed", map[string]any{
			"batch_id": batchID,
			"file":     fileName,
			"error":    err.Error(),
		})
	}
}

func (s *Service) failFile(ctx context.Context, batchID, fileName string, err error) {
	msg := sanitizeError(err)
	_ = s.Store.Update(ctx, batchID, func(b *Batch) error {
		advanceFile(b, fileName, FileStatusFailed, 100, msg)
		b.Results = append(b.Results, Outcome{Filename: fileName, Error: msg})
		b.ProcessedFiles++
		return nil
	})
	metrics.IncFileFailed()
	telemetry.Info("file.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"batch_id":   batchID,
		"file":       fileName,
		"status":     FileStatusFailed,
		"error":      msg,
	})
}

// finishBatch derives the terminal batch status and persists the snapshot.
// The batch completes when at least one file succeeded; an all-failure batch
// is a batch-level failure.
func (s *Service) finishBatch(ctx context.Context, batchID string) {
	var terminal *Batch
	err := s.Store.Update(ctx, batchID, func(b *Batch) error {
		succeeded := 0
		for _, result := range b.Results {
			if result.Success {
				succeeded++
			}
		}
		if succeeded > 0 {
			b.MarkTerminal(StatusCompleted)
		} else {
			b.MarkTerminal(StatusFailed)
		}
		terminal = b.Clone()
		return nil
	})
	if err != nil {
		telemetry.Error("batch.finish_failed", map[string]any{"batch_id": batchID, "error": err.Error()})
		return
	}

	if terminal.Status == StatusCompleted {
		metrics.IncBatchCompleted()
	} else {
		metrics.IncBatchFailed()
	}
	metrics.ObserveBatchDurationMs(float64(terminal.ElapsedMs))

	if err := s.saveSnapshot(ctx, terminal); err != nil {
		telemetry.Error("batch.snapshot_failed", map[string]any{"batch_id": batchID, "error": err.Error()})
	}

	telemetry.Info("batch.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"batch_id":          batchID,
		"status":            terminal.Status,
		"status_transition": "processing->" + terminal.Status,
		"processed_files":   terminal.ProcessedFiles,
		"duration_ms":       terminal.ElapsedMs,
	})
}

// failBatch marks a batch failed before or outside its workers. Used for
// fatal infrastructure failures only; file-level errors go through failFile.
func (s *Service) failBatch(ctx context.Context, batchID string, cause error) {
	msg := sanitizeError(cause)
	updateErr := s.Store.Update(context.Background(), batchID, func(b *Batch) error {
		b.Errors = append(b.Errors, msg)
		for _, state := range b.FileStates {
			if state.Status != FileStatusCompleted && state.Status != FileStatusFailed {
				state.Status = FileStatusFailed
				state.Progress = 100
				state.Error = msg
			}
		}
		b.MarkTerminal(StatusFailed)
		return nil
	})
	if updateErr != nil {
		telemetry.Error("batch.fail_update_failed", map[string]any{"batch_id": batchID, "error": updateErr.Error()})
	}
	metrics.IncBatchFailed()
	telemetry.Info("batch.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"batch_id":   batchID,
		"status":     StatusFailed,
		"error":      msg,
	})
}

// advanceFile applies a monotonic file-state transition: terminal states are
// never overwritten and progress never decreases.
func advanceFile(b *Batch, fileName, status string, progress int, errMsg string) {
	state, ok := b.FileStates[fileName]
	if !ok {
		return
	}
	if state.Status == FileStatusCompleted || state.Status == FileStatusFailed {
		return
	}
	state.Status = status
	if progress > state.Progress {
		state.Progress = progress
	}
	if errMsg != "" {
		state.Error = errMsg
	}
}

func (s *Service) deleteArtifacts(ctx context.Context, batchID string) error {
	keys, err := s.Objects.List(ctx, scratchKey(batchID))
	if err == nil {
		for _, key := range keys {
			_ = s.Objects.Delete(ctx, key)
		}
	}
	return s.Objects.Delete(ctx, snapshotKey(batchID))
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

func scratchKey(batchID string) string {
	return scratchRoot + "/" + batchID
}

func snapshotKey(batchID string) string {
	return snapshotRoot + "/" + batchID + ".json"
}

func newBatchID() string {
	stamp := time.Now().UTC().Format("20060102_150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("batch_%s_%s", stamp, suffix)
}
