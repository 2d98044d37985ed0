package search

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTraceCapacity bounds the in-memory trace ring.
const DefaultTraceCapacity = 256

// Trace records one executed query for inspection.
type Trace struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Kind           Kind      `json:"kind"`
	Analysis       *Analysis `json:"analysis,omitempty"`
	Plan           *Plan     `json:"plan,omitempty"`
	ExecutedLayers []Layer   `json:"executedLayers,omitempty"`
	Adequacy       *Adequacy `json:"adequacy,omitempty"`
	DurationMs     int64     `json:"durationMs"`
	Timestamp      time.Time `json:"timestamp"`
}

// TraceLog is a bounded ring of query traces. Disabled by default;
// Add is a no-op until Enable.
type TraceLog struct {
	mu       sync.Mutex
	enabled  bool
	capacity int
	entries  []*Trace
}

// NewTraceLog creates a trace log with the given capacity.
func NewTraceLog(capacity int) *TraceLog {
	if capacity <= 0 {
		capacity = DefaultTraceCapacity
	}
	return &TraceLog{capacity: capacity}
}

// Enable turns tracing on.
func (t *TraceLog) Enable() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

// Disable turns tracing off.
func (t *TraceLog) Disable() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
}

// Enabled reports whether tracing is on.
func (t *TraceLog) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Add records a trace, stamping id and timestamp. Oldest entries are
// dropped at capacity.
func (t *TraceLog) Add(trace *Trace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	trace.ID = uuid.NewString()
	trace.Timestamp = time.Now()

	t.entries = append(t.entries, trace)
	if len(t.entries) > t.capacity {
		t.entries = t.entries[len(t.entries)-t.capacity:]
	}
}

// List returns the retained traces, oldest first.
func (t *TraceLog) List() []*Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Trace(nil), t.entries...)
}

// Clear drops all traces.
func (t *TraceLog) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
