// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lsv2

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a simple atomic counter.
type Counter struct {
	value int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to zero.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// LatencyHistogram tracks latency distribution.
type LatencyHistogram struct {
	mu      sync.Mutex
	buckets []int64    // count per bucket
	bounds  []float64  // upper bounds in ms
	sum     float64    // sum of all observations
	count   int64      // total count
	min     float64    // minimum observed value
	max     float64    // maximum observed value
}

// NewLatencyHistogram creates a new latency histogram with default buckets.
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		buckets: make([]int64, 10),
		bounds:  []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}, // ms
		min:     -1,
		max:     -1,
	}
}

// Observe records a latency observation.
func (h *LatencyHistogram) Observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += ms
	h.count++

	if h.min < 0 || ms < h.min {
		h.min = ms
	}
	if ms > h.max {
		h.max = ms
	}

	for i, bound := range h.bounds {
		if ms <= bound {
			h.buckets[i]++
			return
		}
	}
	// Greater than all bounds
	h.buckets[len(h.buckets)-1]++
}

// Stats returns histogram statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make(map[string]int64),
	}

	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
		stats.Min = h.min
		stats.Max = h.max
	}

	// Copy bucket counts
	labels := []string{"1ms", "5ms", "10ms", "25ms", "50ms", "100ms", "250ms", "500ms", "1s", "5s+"}
	for i, count := range h.buckets {
		if i < len(labels) {
			stats.Buckets[labels[i]] = count
		}
	}

	return stats
}

// Reset resets the histogram.
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.buckets {
		h.buckets[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = -1
	h.max = -1
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int64
	Sum     float64
	Avg     float64
	Min     float64
	Max     float64
	Buckets map[string]int64
}

// Metrics holds all client metrics.
type Metrics struct {
	RequestsTotal   Counter
	RequestsSuccess Counter
	RequestsErrors  Counter
	BytesSent       Counter
	BytesReceived   Counter
	ActiveConns     Counter
	Latency         *LatencyHistogram

	// File transfers and scope streaming
	Uploads       TransferMetrics
	Downloads     TransferMetrics
	ScopeReadings Counter

	// T_ER and T_BD telegrams received from the controller
	ErrorTelegrams Counter

	// Per-command metrics
	cmdMetrics sync.Map // Code -> *CommandMetrics
}

// TransferMetrics counts file transfers in one direction. Bytes are file
// content bytes as sent or received on the wire.
type TransferMetrics struct {
	Files  Counter
	Bytes  Counter
	Errors Counter
}

func (t *TransferMetrics) collect() map[string]interface{} {
	return map[string]interface{}{
		"files":  t.Files.Value(),
		"bytes":  t.Bytes.Value(),
		"errors": t.Errors.Value(),
	}
}

func (t *TransferMetrics) reset() {
	t.Files.Reset()
	t.Bytes.Reset()
	t.Errors.Reset()
}

// CommandMetrics holds metrics for a specific command telegram.
type CommandMetrics struct {
	Requests Counter
	Errors   Counter
	Latency  *LatencyHistogram
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		Latency: NewLatencyHistogram(),
	}
}

// ForCommand returns metrics for a specific command code.
func (m *Metrics) ForCommand(code Code) *CommandMetrics {
	if val, ok := m.cmdMetrics.Load(code); ok {
		return val.(*CommandMetrics)
	}

	cm := &CommandMetrics{
		Latency: NewLatencyHistogram(),
	}
	actual, _ := m.cmdMetrics.LoadOrStore(code, cm)
	return actual.(*CommandMetrics)
}

// Collect returns all metrics as a map (compatible with expvar/prometheus).
func (m *Metrics) Collect() map[string]interface{} {
	result := map[string]interface{}{
		"requests_total":   m.RequestsTotal.Value(),
		"requests_success": m.RequestsSuccess.Value(),
		"requests_errors":  m.RequestsErrors.Value(),
		"bytes_sent":       m.BytesSent.Value(),
		"bytes_received":   m.BytesReceived.Value(),
		"active_conns":     m.ActiveConns.Value(),
		"latency":          m.Latency.Stats(),
		"uploads":          m.Uploads.collect(),
		"downloads":        m.Downloads.collect(),
		"scope_readings":   m.ScopeReadings.Value(),
		"error_telegrams":  m.ErrorTelegrams.Value(),
	}

	cmdStats := make(map[string]interface{})
	m.cmdMetrics.Range(func(key, value interface{}) bool {
		code := key.(Code)
		cm := value.(*CommandMetrics)
		cmdStats[code.String()] = map[string]interface{}{
			"requests": cm.Requests.Value(),
			"errors":   cm.Errors.Value(),
			"latency":  cm.Latency.Stats(),
		}
		return true
	})
	if len(cmdStats) > 0 {
		result["commands"] = cmdStats
	}

	return result
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.RequestsTotal.Reset()
	m.RequestsSuccess.Reset()
	m.RequestsErrors.Reset()
	m.BytesSent.Reset()
	m.BytesReceived.Reset()
	m.Latency.Reset()
	m.Uploads.reset()
	m.Downloads.reset()
	m.ScopeReadings.Reset()
	m.ErrorTelegrams.Reset()

	m.cmdMetrics.Range(func(key, value interface{}) bool {
		cm := value.(*CommandMetrics)
		cm.Requests.Reset()
		cm.Errors.Reset()
		cm.Latency.Reset()
		return true
	})
}
