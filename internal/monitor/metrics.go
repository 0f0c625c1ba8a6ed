// Package monitor collects in-process execution metrics exposed over the API.
package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionMetrics tracks engine activity counters and venue latency.
type ExecutionMetrics struct {
	submits     uint64
	fills       uint64
	cancels     uint64
	chases      uint64
	cancelRaces uint64
	rejections  uint64
	exhausted   uint64
	errors      uint64

	// Latency of full Execute calls and of individual venue round-trips.
	ExecuteLatency *LatencyHistogram
	VenueLatency   *LatencyHistogram

	mu         sync.RWMutex
	lastUpdate time.Time
}

// NewExecutionMetrics creates a metrics instance.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{
		ExecuteLatency: NewLatencyHistogram(1000),
		VenueLatency:   NewLatencyHistogram(1000),
		lastUpdate:     time.Now(),
	}
}

func (m *ExecutionMetrics) IncSubmits()     { atomic.AddUint64(&m.submits, 1) }
func (m *ExecutionMetrics) IncFills()       { atomic.AddUint64(&m.fills, 1) }
func (m *ExecutionMetrics) IncCancels()     { atomic.AddUint64(&m.cancels, 1) }
func (m *ExecutionMetrics) IncChases()      { atomic.AddUint64(&m.chases, 1) }
func (m *ExecutionMetrics) IncCancelRaces() { atomic.AddUint64(&m.cancelRaces, 1) }
func (m *ExecutionMetrics) IncRejections()  { atomic.AddUint64(&m.rejections, 1) }
func (m *ExecutionMetrics) IncExhausted()   { atomic.AddUint64(&m.exhausted, 1) }
func (m *ExecutionMetrics) IncErrors()      { atomic.AddUint64(&m.errors, 1) }

// Snapshot is a point-in-time copy of all counters and latency stats.
type Snapshot struct {
	Submits        uint64       `json:"submits"`
	Fills          uint64       `json:"fills"`
	Cancels        uint64       `json:"cancels"`
	Chases         uint64       `json:"chases"`
	CancelRaces    uint64       `json:"cancel_races"`
	Rejections     uint64       `json:"rejections"`
	Exhausted      uint64       `json:"exhausted"`
	Errors         uint64       `json:"errors"`
	ExecuteLatency LatencyStats `json:"execute_latency_ms"`
	VenueLatency   LatencyStats `json:"venue_latency_ms"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns the current metric values.
func (m *ExecutionMetrics) GetSnapshot() Snapshot {
	return Snapshot{
		Submits:        atomic.LoadUint64(&m.submits),
		Fills:          atomic.LoadUint64(&m.fills),
		Cancels:        atomic.LoadUint64(&m.cancels),
		Chases:         atomic.LoadUint64(&m.chases),
		CancelRaces:    atomic.LoadUint64(&m.cancelRaces),
		Rejections:     atomic.LoadUint64(&m.rejections),
		Exhausted:      atomic.LoadUint64(&m.exhausted),
		Errors:         atomic.LoadUint64(&m.errors),
		ExecuteLatency: m.ExecuteLatency.Stats(),
		VenueLatency:   m.VenueLatency.Stats(),
		Timestamp:      time.Now(),
	}
}

// LatencyHistogram tracks latency samples in a sliding window. Stats are
// computed lazily and cached until new samples arrive.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// LatencyStats summarizes a histogram window.
type LatencyStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts the duration to ms and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99 over the current window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	percentile := func(p float64) float64 {
		idx := int(p * float64(n-1))
		return sorted[idx]
	}

	h.cachedStats = LatencyStats{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   percentile(0.50),
		P95:   percentile(0.95),
		P99:   percentile(0.99),
	}
	h.dirty = false
	return h.cachedStats
}
