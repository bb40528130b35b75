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
	dispatchPassesTotal        atomic.Uint64
	dispatchPassesSkippedTotal atomic.Uint64
	attemptsSentTotal          atomic.Uint64
	attemptsFailedTotal        atomic.Uint64
	attemptsDeferredTotal      atomic.Uint64
	generationFallbacksTotal   atomic.Uint64
	emailsSentToday            atomic.Int64

	passDuration = newHistogram([]float64{10, 50, 100, 250, 500, 1000, 5000, 15000, 60000})
)

// IncPass increments the completed dispatch pass counter.
func IncPass() {
	dispatchPassesTotal.Add(1)
}

// IncPassSkipped increments the counter of triggers dropped by the single-flight guard.
func IncPassSkipped() {
	dispatchPassesSkippedTotal.Add(1)
}

// IncAttemptSent increments the sent attempt counter.
func IncAttemptSent() {
	attemptsSentTotal.Add(1)
}

// IncAttemptFailed increments the failed send counter.
func IncAttemptFailed() {
	attemptsFailedTotal.Add(1)
}

// IncAttemptDeferred increments the counter of follow-ups postponed for an unresolved predecessor.
func IncAttemptDeferred() {
	attemptsDeferredTotal.Add(1)
}

// IncGenerationFallback increments the counter of generative content failures.
func IncGenerationFallback() {
	generationFallbacksTotal.Add(1)
}

// SetEmailsSentToday records the current value of the daily send counter.
func SetEmailsSentToday(n int64) {
	emailsSentToday.Store(n)
}

// ObservePassDurationMs records a dispatch pass duration in milliseconds.
func ObservePassDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	passDuration.Observe(value)
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
	writeCounter(&buf, "dispatch_passes_total", "Total dispatch passes completed", dispatchPassesTotal.Load())
	writeCounter(&buf, "dispatch_passes_skipped_total", "Dispatch triggers dropped while a pass was running", dispatchPassesSkippedTotal.Load())
	writeCounter(&buf, "attempts_sent_total", "Outreach attempts sent", attemptsSentTotal.Load())
	writeCounter(&buf, "attempts_failed_total", "Outreach attempt send failures", attemptsFailedTotal.Load())
	writeCounter(&buf, "attempts_deferred_total", "Follow-up attempts deferred until their predecessor resolves", attemptsDeferredTotal.Load())
	writeCounter(&buf, "content_generation_fallbacks_total", "Generative content failures recovered by templates", generationFallbacksTotal.Load())
	writeGauge(&buf, "emails_sent_today", "Emails sent since the last daily reset", emailsSentToday.Load())
	writeHistogram(&buf, "dispatch_pass_duration_ms", "Dispatch pass duration in milliseconds", passDuration.Snapshot())
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

// Observe places value in the first bucket whose bound is not below it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
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
