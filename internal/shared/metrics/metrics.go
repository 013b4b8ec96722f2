package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	batchStartedTotal   atomic.Uint64
	batchCompletedTotal atomic.Uint64
	batchFailedTotal    atomic.Uint64
	fileProcessedTotal  atomic.Uint64
	fileFailedTotal     atomic.Uint64

	ocrDuration      = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	batchDuration    = newHistogram([]float64{500, 1000, 5000, 10000, 30000, 60000, 120000, 300000})
)

// IncBatchStarted increments the batch started counter.
func IncBatchStarted() {
	batchStartedTotal.Add(1)
}

// IncBatchCompleted increments the batch completed counter.
func IncBatchCompleted() {
	batchCompletedTotal.Add(1)
}

// IncBatchFailed increments the batch failed counter.
func IncBatchFailed() {
	batchFailedTotal.Add(1)
}

// IncFileProcessed increments the per-file processed counter.
func IncFileProcessed() {
	fileProcessedTotal.Add(1)
}

// IncFileFailed increments the per-file failed counter.
func IncFileFailed() {
	fileFailedTotal.Add(1)
}

// ObserveOCRDurationMs records a single OCR call duration in milliseconds.
func ObserveOCRDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ocrDuration.Observe(value)
}

// ObserveAnalysisDurationMs records a per-file analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// ObserveBatchDurationMs records an end-to-end batch duration in milliseconds.
func ObserveBatchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	batchDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "batch_started_total", "Total batches started", batchStartedTotal.Load())
	writeCounter(&buf, "batch_completed_total", "Total batches completed", batchCompletedTotal.Load())
	writeCounter(&buf, "batch_failed_total", "Total batches failed", batchFailedTotal.Load())
	writeCounter(&buf, "file_processed_total", "Total files processed", fileProcessedTotal.Load())
	writeCounter(&buf, "file_failed_total", "Total files failed", fileFailedTotal.Load())
	writeHistogram(&buf, "ocr_duration_ms", "OCR call duration in milliseconds", ocrDuration.Snapshot())
	writeHistogram(&buf, "analysis_duration_ms", "Per-file analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "batch_duration_ms", "Batch duration in milliseconds", batchDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
