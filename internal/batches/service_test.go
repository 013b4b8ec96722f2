package batches

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"adreview-backend/internal/history"
	"adreview-backend/internal/ocr"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/shared/storage/object/local"
)

type fakeExtractor struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int

	failFor map[string]bool
	delay   time.Duration
	text    string
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte, fileName string) (ocr.Result, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ocr.Result{}, ctx.Err()
		}
	}
	if f.failFor[fileName] {
		return ocr.Result{}, errors.New("ocr api error: http status 400: unreadable image")
	}
	text := f.text
	if text == "" {
		text = "we promise 100% guaranteed outcomes"
	}
	return ocr.Result{Text: text, Confidence: 0.97, FieldsCount: 3}, nil
}

func newTestService(t *testing.T, extractor ocr.Extractor) *Service {
	t.Helper()
	return &Service{
		Store:      NewMemoryStore(),
		Objects:    local.New(t.TempDir()),
		Extractors: map[string]ocr.Extractor{"naver": extractor, "paddle": extractor},
		Engine:     &scoring.Engine{},
	}
}

func uploads(names ...string) []FileUpload {
	out := make([]FileUpload, 0, len(names))
	for _, name := range names {
		out = append(out, FileUpload{
			Name:   name,
			Size:   16,
			Reader: bytes.NewReader([]byte("image bytes here")),
		})
	}
	return out
}

func waitTerminal(t *testing.T, svc *Service, batchID string) *Batch {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		batch, err := svc.GetStatus(context.Background(), batchID)
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		if batch.IsTerminal() {
			return batch
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("batch never reached a terminal state")
	return nil
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "naver", nil, scoring.Options{}); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("empty submission: %v", err)
	}
	if _, err := svc.Submit(ctx, "naver", uploads("a.gif"), scoring.Options{}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("gif submission: %v", err)
	}
	if _, err := svc.Submit(ctx, "tesseract", uploads("a.png"), scoring.Options{}); !errors.Is(err, ocr.ErrUnsupportedEngine) {
		t.Fatalf("unknown engine: %v", err)
	}

	big := uploads("big.png")
	big[0].Size = maxFileSizeBytes + 1
	if _, err := svc.Submit(ctx, "naver", big, scoring.Options{}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversized file: %v", err)
	}

	var tooMany []FileUpload
	for i := 0; i <= maxBatchFiles; i++ {
		tooMany = append(tooMany, uploads(fmt.Sprintf("f%d.png", i))...)
	}
	if _, err := svc.Submit(ctx, "paddle", tooMany, scoring.Options{}); !errors.Is(err, ErrTooManyFiles) {
		t.Fatalf("over ceiling: %v", err)
	}

	// No batch record may exist after rejected submissions.
	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("rejected submissions left %d batches behind", len(all))
	}
}

func TestSubmitProcessesBatch(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})

	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png", "b.jpg"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(batch.ID, "batch_") {
		t.Fatalf("unexpected batch id %q", batch.ID)
	}

	final := waitTerminal(t, svc, batch.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", final.Status, final.Errors)
	}
	if final.ProcessedFiles != 2 || len(final.Results) != 2 {
		t.Fatalf("processed=%d results=%d", final.ProcessedFiles, len(final.Results))
	}
	for _, result := range final.Results {
		if !result.Success || result.Analysis == nil {
			t.Fatalf("unexpected result: %+v", result)
		}
		if result.Analysis.RiskScore != 30 {
			t.Fatalf("risk score = %d", result.Analysis.RiskScore)
		}
	}
	for _, state := range final.FileStates {
		if state.Status != FileStatusCompleted || state.Progress != 100 {
			t.Fatalf("unexpected file state: %+v", state)
		}
	}
}

func TestPartialFailureCompletesBatch(t *testing.T) {
	extractor := &fakeExtractor{failFor: map[string]bool{"3.png": true}}
	svc := newTestService(t, extractor)

	batch, err := svc.Submit(context.Background(), "naver",
		uploads("1.png", "2.png", "3.png", "4.png", "5.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitTerminal(t, svc, batch.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed on partial failure", final.Status)
	}

	succeeded, failed := 0, 0
	for _, result := range final.Results {
		if result.Success {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 4 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d", succeeded, failed)
	}

	state := final.FileStates["3.png"]
	if state.Status != FileStatusFailed || state.Error == "" {
		t.Fatalf("failed file state: %+v", state)
	}
	for _, name := range []string{"1.png", "2.png", "4.png", "5.png"} {
		if final.FileStates[name].Status != FileStatusCompleted {
			t.Fatalf("sibling %s affected: %+v", name, final.FileStates[name])
		}
	}
}

func TestAllFilesFailedFailsBatch(t *testing.T) {
	extractor := &fakeExtractor{failFor: map[string]bool{"1.png": true, "2.png": true}}
	svc := newTestService(t, extractor)

	batch, err := svc.Submit(context.Background(), "naver", uploads("1.png", "2.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	final := waitTerminal(t, svc, batch.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want failed when nothing succeeded", final.Status)
	}
}

func TestConcurrencyBound(t *testing.T) {
	extractor := &fakeExtractor{delay: 30 * time.Millisecond}
	svc := newTestService(t, extractor)

	var names []string
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("f%d.png", i))
	}
	batch, err := svc.Submit(context.Background(), "naver", uploads(names...), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	limit, _ := ocr.EngineLimit("naver")
	extractor.mu.Lock()
	maxSeen := extractor.maxSeen
	extractor.mu.Unlock()
	if maxSeen > limit {
		t.Fatalf("saw %d concurrent extractions, ceiling %d", maxSeen, limit)
	}
	if maxSeen == 0 {
		t.Fatal("extractor never ran")
	}
}

func TestGetStatusTerminalIsIdempotent(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	first, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	second, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("terminal snapshots differ:\n%s\n%s", a, b)
	}
}

func TestGetStatusReturnsCopies(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	snapshot, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	snapshot.FileStates["a.png"].Status = "tampered"
	snapshot.Results[0].Analysis.RiskScore = -42

	fresh, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if fresh.FileStates["a.png"].Status != FileStatusCompleted {
		t.Fatal("reader mutation leaked into the store")
	}
	if fresh.Results[0].Analysis.RiskScore == -42 {
		t.Fatal("result mutation leaked into the store")
	}
}

func TestGetStatusFallsBackToSnapshot(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	final := waitTerminal(t, svc, batch.ID)

	// The snapshot is written just after the terminal transition.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if body, err := svc.Objects.Open(context.Background(), snapshotKey(batch.ID)); err == nil {
			body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := svc.Store.Delete(context.Background(), batch.ID); err != nil {
		t.Fatalf("evict: %v", err)
	}

	fromSnapshot, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("snapshot fallback: %v", err)
	}
	if fromSnapshot.ID != final.ID || fromSnapshot.Status != final.Status {
		t.Fatalf("snapshot mismatch: %+v", fromSnapshot)
	}
	if len(fromSnapshot.Results) != len(final.Results) {
		t.Fatalf("snapshot lost results: %d vs %d", len(fromSnapshot.Results), len(final.Results))
	}
}

func TestDeleteBatch(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	// Wait for the snapshot so the delete covers every artifact.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if body, err := svc.Objects.Open(context.Background(), snapshotKey(batch.ID)); err == nil {
			body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := svc.Delete(context.Background(), batch.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetStatus(context.Background(), batch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	keys, err := svc.Objects.List(context.Background(), scratchKey(batch.ID))
	if err != nil {
		t.Fatalf("list scratch: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("scratch files remain: %v", keys)
	}
}

func TestJanitorEvictsExpiredBatches(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{})
	batch, err := svc.Submit(context.Background(), "naver", uploads("a.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	// Wait for the snapshot so eviction has something to fall back to.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if body, err := svc.Objects.Open(context.Background(), snapshotKey(batch.ID)); err == nil {
			body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Backdate the completion time past the retention window.
	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := svc.Store.Update(context.Background(), batch.ID, func(b *Batch) error {
		b.CompletedAt = &old
		return nil
	}); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	janitor := &Janitor{Service: svc, Retention: 24 * time.Hour}
	janitor.sweep(context.Background())

	if _, err := svc.Store.Get(context.Background(), batch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected store eviction, got %v", err)
	}
	keys, err := svc.Objects.List(context.Background(), scratchKey(batch.ID))
	if err != nil {
		t.Fatalf("list scratch: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("scratch files remain: %v", keys)
	}

	// Status reads survive eviction via the durable snapshot.
	evicted, err := svc.GetStatus(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("status after eviction: %v", err)
	}
	if evicted.ID != batch.ID || evicted.Status != StatusCompleted {
		t.Fatalf("snapshot fallback returned %+v", evicted)
	}

	// An explicit delete still removes the snapshot.
	if err := svc.Delete(context.Background(), batch.ID); err != nil {
		t.Fatalf("delete after eviction: %v", err)
	}
	if _, err := svc.GetStatus(context.Background(), batch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSanitizeErrorTruncatesOnRuneBoundary(t *testing.T) {
	// 200 three-byte runes put the 500-byte cut in the middle of one.
	err := errors.New(strings.Repeat("오", 200))
	msg := sanitizeError(err)
	if len(msg) > 500 {
		t.Fatalf("message length %d exceeds cap", len(msg))
	}
	if !utf8.ValidString(msg) {
		t.Fatalf("truncated message is not valid UTF-8: %q", msg)
	}

	if got := sanitizeError(errors.New("line one\r\nline two")); got != "line one  line two" {
		t.Fatalf("newline handling: %q", got)
	}
}

func TestSuccessfulFilesAreRecordedToHistory(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{failFor: map[string]bool{"bad.png": true}})
	repo := history.NewMemoryRepo()
	svc.History = repo

	batch, err := svc.Submit(context.Background(), "naver", uploads("good.png", "bad.png"), scoring.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, svc, batch.ID)

	records, total, err := repo.List(context.Background(), history.Filter{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("expected one history record, got total=%d len=%d", total, len(records))
	}
	record := records[0]
	if record.Filename != "good.png" || record.Engine != "naver" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.RiskScore != 30 || record.Judgment != "caution" {
		t.Fatalf("score fields: %+v", record)
	}
	if record.Confidence != 0.97 {
		t.Fatalf("confidence=%v", record.Confidence)
	}
	if len(record.Keywords) == 0 || len(record.Categories) == 0 {
		t.Fatalf("catalogue fields empty: %+v", record)
	}
}
