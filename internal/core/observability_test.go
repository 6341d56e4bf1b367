package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"songstore/pkg/domain"
)

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewService(WithLogger(logger), WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))

	tracks := newSongWithTracks(t, svc, 1)
	if err := svc.RemoveTrack(ctx, domain.NewID().String()); err == nil {
		t.Fatalf("expected remove_track error")
	}
	if _, err := svc.GetEvents(ctx, nil); err != nil {
		t.Fatalf("get events: %v", err)
	}

	if !audit.has("add_track", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.EntityID == tracks[0] && e.Entity == domain.EntityTrack && !e.Timestamp.IsZero()
	}) {
		t.Fatalf("expected audit entry for add_track")
	}
	if !audit.has("remove_track", AuditStatusError, func(e AuditEntry) bool { return strings.Contains(e.Error, "not found") }) {
		t.Fatalf("expected audit error for remove_track")
	}
	if audit.has("get_events", AuditStatusSuccess, nil) {
		t.Fatalf("queries must not be audited")
	}
	if !metrics.has("create_song", true) || !metrics.has("remove_track", false) || !metrics.has("get_events", true) {
		t.Fatalf("missing metrics: %+v", metrics.calls)
	}
	if !tracer.has("add_track", true) || !tracer.has("remove_track", false) {
		t.Fatalf("missing spans: %+v", tracer.ended)
	}
	var sawError, sawDebug bool
	for _, c := range logger.calls {
		sawError = sawError || c == "e:songstore operation failed"
		sawDebug = sawDebug || c == "d:songstore operation completed"
	}
	if !sawError || !sawDebug {
		t.Fatalf("unexpected log calls %v", logger.calls)
	}
}

func TestServiceUsesClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	audit := &captureAuditRecorder{}
	svc := NewService(WithClock(ClockFunc(func() time.Time { return fixed })), WithAuditRecorder(audit))
	if _, err := svc.CreateSong(context.Background(), "t", 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !audit.has("create_song", AuditStatusSuccess, func(e AuditEntry) bool { return e.Timestamp.Equal(fixed) && e.Timestamp.Location() == time.UTC }) {
		t.Fatalf("audit timestamp should come from the clock in UTC: %+v", audit.entries)
	}
}

func TestDefaultServiceOptions(t *testing.T) {
	opts := defaultServiceOptions()
	if opts.clock == nil || opts.logger == nil || opts.audit == nil || opts.metrics == nil || opts.tracer == nil {
		t.Fatalf("expected defaults populated")
	}
	if opts.archive != nil {
		t.Fatalf("archive default is chosen by NewService")
	}
	ctx := context.Background()
	opts.audit.Record(ctx, AuditEntry{})
	opts.metrics.Observe(ctx, "noop", true, 0)
	_, span := opts.tracer.Start(ctx, "noop")
	span.End(nil)
	var l noopLogger
	l.Debug("d", "k", 1)
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	// nil options are ignored rather than clobbering defaults
	svc := NewService(nil, WithLogger(nil), WithClock(nil), WithTracer(nil), WithMetricsRecorder(nil), WithAuditRecorder(nil), WithArchive(nil))
	if svc.logger == nil || svc.clock == nil || svc.tracer == nil || svc.metrics == nil || svc.audit == nil || svc.archive == nil {
		t.Fatalf("nil options must keep defaults")
	}
}

func TestClockFunc(t *testing.T) {
	if got := ClockFunc(nil).Now(); got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("nil clock: %v", got)
	}
	want := time.Date(2024, 7, 4, 12, 34, 56, 0, time.FixedZone("offset", -5*3600))
	if got := ClockFunc(func() time.Time { return want }).Now(); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("clock func: %v", got)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "songstore_service_metrics_") {
		t.Fatalf("unexpected name %s", rec.Name())
	}
	ctx := context.Background()
	rec.Observe(ctx, "add_event", true, 2*time.Millisecond)
	rec.Observe(ctx, "add_event", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)
	snap := rec.Snapshot()
	st, ok := snap["add_event"]
	if !ok || st.Success != 1 || st.Error != 1 || st.DurationMS != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap) != 1 {
		t.Fatalf("empty operation must be ignored: %+v", snap)
	}
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("recorder not published")
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tr := NewJSONTracer(&buf)
	ctx := context.Background()
	_, ok := tr.Start(ctx, "add_track")
	_, bad := tr.Start(ctx, "remove_track")
	ok.End(nil)
	bad.End(errors.New("boom"))
	bad.End(nil)

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %+v", entries)
	}
	if entries[0].Operation != "add_track" || entries[0].Status != "success" || entries[0].SpanID != 1 {
		t.Fatalf("unexpected first span %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" || entries[1].SpanID != 2 {
		t.Fatalf("unexpected second span %+v", entries[1])
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %q", buf.String())
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil || decoded.Operation != "remove_track" {
		t.Fatalf("decode: %+v %v", decoded, err)
	}
}

func TestJSONTracerRetention(t *testing.T) {
	tr := NewJSONTracer(nil)
	tr.keep = 3
	for range 5 {
		_, span := tr.Start(context.Background(), "op")
		span.End(nil)
	}
	entries := tr.Entries()
	if len(entries) != 3 || entries[0].SpanID != 3 || entries[2].SpanID != 5 {
		t.Fatalf("unexpected retained spans %+v", entries)
	}
}
