package core

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"songstore/pkg/domain"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	svc := NewService(WithMetricsRecorder(rec))
	newSongWithTracks(t, svc, 2)
	_ = svc.RemoveTrack(ctx, domain.NewID().String())

	if got := testutil.ToFloat64(rec.results.WithLabelValues("add_track", "success")); got != 2 {
		t.Fatalf("add_track success = %v", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("remove_track", "error")); got != 1 {
		t.Fatalf("remove_track error = %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 3 {
		t.Fatalf("expected histograms for 3 operations, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
