package batches

import (
	"time"

	"adreview-backend/internal/ocr"
	"adreview-backend/internal/scoring"
)

// Batch statuses.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Per-file statuses.
const (
	FileStatusUploading = "uploading"
	FileStatusPending   = "pending"
	FileStatusOCR       = "ocr"
	FileStatusAnalyzing = "analyzing"
	FileStatusCompleted = "completed"
	FileStatusFailed    = "failed"
)

// FileState tracks one file's progress through the pipeline.
type FileState struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Outcome is the immutable per-file result appended once the file reaches a
// terminal state.
type Outcome struct {
	Filename   string           `json:"filename"`
	Success    bool             `json:"success"`
	Extraction *ocr.Result      `json:"extraction,omitempty"`
	Analysis   *scoring.Outcome `json:"analysis,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Batch is one submitted analysis request. FileOrder preserves submission
// order; Results is append-only and unordered relative to FileOrder.
type Batch struct {
	ID             string                `json:"id"`
	Status         string                `json:"status"`
	Engine         string                `json:"engine"`
	Options        scoring.Options       `json:"options"`
	TotalFiles     int                   `json:"totalFiles"`
	ProcessedFiles int                   `json:"processedFiles"`
	StartTime      time.Time             `json:"startTime"`
	CompletedAt    *time.Time            `json:"completedAt,omitempty"`
	ElapsedMs      int64                 `json:"elapsedMs"`
	FileOrder      []string              `json:"fileOrder"`
	FileStates     map[string]*FileState `json:"fileStates"`
	Results        []Outcome             `json:"results"`
	Errors         []string              `json:"errors,omitempty"`
}

// IsTerminal reports whether the batch can no longer change.
func (b *Batch) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusFailed
}

// Clone returns a deep copy safe to hand to readers while workers keep
// mutating the original. ElapsedMs is refreshed on every clone of a live
// batch and frozen once the batch is terminal.
func (b *Batch) Clone() *Batch {
	out := *b

	out.FileOrder = append([]string(nil), b.FileOrder...)

	out.FileStates = make(map[string]*FileState, len(b.FileStates))
	for name, state := range b.FileStates {
		copied := *state
		out.FileStates[name] = &copied
	}

	out.Results = make([]Outcome, len(b.Results))
	for i, result := range b.Results {
		out.Results[i] = result
		if result.Extraction != nil {
			extraction := *result.Extraction
			out.Results[i].Extraction = &extraction
		}
		if result.Analysis != nil {
			analysis := *result.Analysis
			analysis.KeywordMatches = append([]scoring.KeywordMatch(nil), result.Analysis.KeywordMatches...)
			analysis.Violations = append([]scoring.Violation(nil), result.Analysis.Violations...)
			out.Results[i].Analysis = &analysis
		}
	}

	out.Errors = append([]string(nil), b.Errors...)

	if b.CompletedAt != nil {
		completed := *b.CompletedAt
		out.CompletedAt = &completed
		out.ElapsedMs = completed.Sub(b.StartTime).Milliseconds()
	} else if !b.StartTime.IsZero() {
		out.ElapsedMs = time.Since(b.StartTime).Milliseconds()
	}

	return &out
}

// MarkTerminal pins the terminal status, completion time and elapsed figure.
func (b *Batch) MarkTerminal(status string) {
	if b.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	b.Status = status
	b.CompletedAt = &now
	b.ElapsedMs = now.Sub(b.StartTime).Milliseconds()
}
