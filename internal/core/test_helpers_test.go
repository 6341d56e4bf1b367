package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"songstore/pkg/domain"
)

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status && (predicate == nil || predicate(entry)) {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.ended {
		if r.op == op && (r.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}

func noteInput(track string, ticks, duration uint32, key uint8) domain.EventInputRecord {
	return domain.EventInputRecord{Kind: "Note", TrackID: track, Ticks: ticks, Duration: duration, Velocity: 100, NoteNumber: key}
}

// newSongWithTracks creates a song with n empty tracks.
func newSongWithTracks(t *testing.T, svc *Service, n int) []string {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateSong(ctx, "test", 480); err != nil {
		t.Fatalf("create song: %v", err)
	}
	ids := make([]string, 0, n)
	for range n {
		tr, err := svc.AddTrack(ctx)
		if err != nil {
			t.Fatalf("add track: %v", err)
		}
		ids = append(ids, tr.ID)
	}
	return ids
}

func mustAddEvent(t *testing.T, svc *Service, in domain.EventInputRecord) domain.EventRecord {
	t.Helper()
	rec, err := svc.AddEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	return rec
}

func ticksOf(events []domain.EventRecord) []uint32 {
	out := make([]uint32, 0, len(events))
	for _, e := range events {
		out = append(out, e.Ticks)
	}
	return out
}
