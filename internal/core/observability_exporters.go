package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation call counts and cumulative
// latency through an expvar.Map:
//
//	<name>.<operation>.success      int
//	<name>.<operation>.error        int
//	<name>.<operation>.duration_ms  float
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  *expvar.Map
}

// ExpvarOperationStats is the snapshot of a single operation.
type ExpvarOperationStats struct {
	Success    int64   `json:"success"`
	Error      int64   `json:"error"`
	DurationMS float64 `json:"duration_ms"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. Publishing the same name twice
// panics, as with expvar.Publish.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("songstore_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	return &ExpvarMetricsRecorder{name: name, ops: expvar.NewMap(name)}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe records an operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	op := r.operation(operation)
	if success {
		op.Add("success", 1)
	} else {
		op.Add("error", 1)
	}
	op.AddFloat("duration_ms", float64(duration)/float64(time.Millisecond))
}

func (r *ExpvarMetricsRecorder) operation(name string) *expvar.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.ops.Get(name).(*expvar.Map); ok {
		return v
	}
	m := new(expvar.Map).Init()
	m.Add("success", 0)
	m.Add("error", 0)
	m.AddFloat("duration_ms", 0)
	r.ops.Set(name, m)
	return m
}

// Snapshot decodes the published map.
func (r *ExpvarMetricsRecorder) Snapshot() map[string]ExpvarOperationStats {
	out := make(map[string]ExpvarOperationStats)
	_ = json.Unmarshal([]byte(r.ops.String()), &out)
	return out
}

// JSONTraceEntry is a finished span as written by JSONTraceTracer.
type JSONTraceEntry struct {
	SpanID     uint64    `json:"span_id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps the most
// recent ones for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	seq     uint64
	keep    int
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// DefaultTraceRetention bounds the spans kept by NewJSONTracer.
const DefaultTraceRetention = 1024

// NewJSONTracer writes spans to w (which may be nil) and retains the last
// DefaultTraceRetention of them.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{keep: DefaultTraceRetention, now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the retained spans, oldest first.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer:    t,
		id:        atomic.AddUint64(&t.seq, 1),
		operation: operation,
		started:   t.now(),
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	id        uint64
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *jsonTraceSpan) End(err error) {
	if s.ended.Swap(true) {
		return
	}
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		SpanID:     s.id,
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	t := s.tracer
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if over := len(t.entries) - t.keep; over > 0 {
		t.entries = append(t.entries[:0], t.entries[over:]...)
	}
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
}
