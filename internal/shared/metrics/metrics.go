package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	chatTurnsStartedTotal   atomic.Uint64
	chatTurnsCompletedTotal atomic.Uint64
	chatTurnsFailedTotal    atomic.Uint64
	retrievalDegradedTotal  atomic.Uint64

	ingestJobsReceivedTotal  atomic.Uint64
	ingestJobsCompletedTotal atomic.Uint64
	ingestJobsFailedTotal    atomic.Uint64

	chatTurnDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	ingestDuration   = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncChatTurnStarted increments the started chat-turn counter.
func IncChatTurnStarted() {
	chatTurnsStartedTotal.Add(1)
}

// IncChatTurnCompleted increments the completed chat-turn counter.
func IncChatTurnCompleted() {
	chatTurnsCompletedTotal.Add(1)
}

// IncChatTurnFailed increments the failed chat-turn counter.
func IncChatTurnFailed() {
	chatTurnsFailedTotal.Add(1)
}

// IncRetrievalDegraded counts turns answered without retrieved context.
func IncRetrievalDegraded() {
	retrievalDegradedTotal.Add(1)
}

// IncIngestJobsReceived increments the received ingestion-job counter.
func IncIngestJobsReceived() {
	ingestJobsReceivedTotal.Add(1)
}

// IncIngestJobsCompleted increments the completed ingestion-job counter.
func IncIngestJobsCompleted() {
	ingestJobsCompletedTotal.Add(1)
}

// IncIngestJobsFailed increments the failed ingestion-job counter.
func IncIngestJobsFailed() {
	ingestJobsFailedTotal.Add(1)
}

// ObserveChatTurnDurationMs records a chat turn duration in milliseconds.
func ObserveChatTurnDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	chatTurnDuration.Observe(value)
}

// ObserveIngestDurationMs records an ingestion duration in milliseconds.
func ObserveIngestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ingestDuration.Observe(value)
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
	writeCounter(&buf, "chat_turns_started_total", "Total chat turns started", chatTurnsStartedTotal.Load())
	writeCounter(&buf, "chat_turns_completed_total", "Total chat turns completed", chatTurnsCompletedTotal.Load())
	writeCounter(&buf, "chat_turns_failed_total", "Total chat turns failed", chatTurnsFailedTotal.Load())
	writeCounter(&buf, "chat_retrieval_degraded_total", "Total chat turns answered without retrieved context", retrievalDegradedTotal.Load())
	writeCounter(&buf, "ingest_jobs_received_total", "Total ingestion jobs received", ingestJobsReceivedTotal.Load())
	writeCounter(&buf, "ingest_jobs_completed_total", "Total ingestion jobs completed", ingestJobsCompletedTotal.Load())
	writeCounter(&buf, "ingest_jobs_failed_total", "Total ingestion jobs failed", ingestJobsFailedTotal.Load())
	writeHistogram(&buf, "chat_turn_duration_ms", "Chat turn duration in milliseconds", chatTurnDuration.Snapshot())
	writeHistogram(&buf, "ingest_duration_ms", "Document ingestion duration in milliseconds", ingestDuration.Snapshot())
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
