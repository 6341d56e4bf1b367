package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"songstore/pkg/domain"
)

func TestServiceRequiresActiveSong(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	id := domain.NewID().String()
	checks := map[string]error{}
	_, checks["add_track"] = svc.AddTrack(ctx)
	checks["remove_track"] = svc.RemoveTrack(ctx, id)
	_, _, checks["get_track"] = svc.GetTrack(ctx, id)
	_, checks["get_tracks"] = svc.GetTracks(ctx)
	_, checks["add_event"] = svc.AddEvent(ctx, noteInput(id, 0, 1, 60))
	_, checks["update_event"] = svc.UpdateEvent(ctx, domain.EventUpdaterRecord{ID: id, Kind: "Note"})
	checks["remove_event"] = svc.RemoveEvent(ctx, id)
	_, _, checks["get_event"] = svc.GetEvent(ctx, id)
	_, checks["get_events"] = svc.GetEvents(ctx, nil)
	_, checks["get_events_in_range"] = svc.GetEventsInRange(ctx, 0, 10, true, nil)
	_, checks["update_song"] = svc.UpdateSong(ctx, domain.SongUpdater{Title: domain.Ptr("x")})
	checks["save_song"] = svc.SaveSong(ctx, "x")
	for op, err := range checks {
		if !errors.Is(err, domain.ErrSongNotSet) {
			t.Fatalf("%s: expected ErrSongNotSet, got %v", op, err)
		}
	}
	if _, ok := svc.GetSong(ctx); ok {
		t.Fatalf("expected no active song")
	}
}

func TestServiceCreateAndUpdateSong(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	var verr domain.ErrValidation
	if _, err := svc.CreateSong(ctx, "bad", 0); !errors.As(err, &verr) || verr.Field != "ppq" {
		t.Fatalf("expected ppq validation error, got %v", err)
	}
	rec, err := svc.CreateSong(ctx, "Prelude", 96)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Title != "Prelude" || rec.PPQ != 96 || rec.EndOfSong != 0 || len(rec.Tracks) != 0 {
		t.Fatalf("unexpected song %+v", rec)
	}
	h, err := svc.UpdateSong(ctx, domain.SongUpdater{Title: domain.Ptr("Fugue"), EndOfSong: domain.Ptr(domain.Ticks(384))})
	if err != nil || h.Title != "Fugue" || h.PPQ != 96 || h.EndOfSong != 384 {
		t.Fatalf("update: %+v %v", h, err)
	}
	if _, err := svc.UpdateSong(ctx, domain.SongUpdater{PPQ: domain.Ptr(uint32(0))}); !errors.As(err, &verr) {
		t.Fatalf("expected ppq validation error, got %v", err)
	}
	got, ok := svc.GetSong(ctx)
	if !ok || got.Title != "Fugue" || got.PPQ != 96 {
		t.Fatalf("get song: %+v %v", got, ok)
	}
	if err := svc.ClearSong(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := svc.GetSong(ctx); ok {
		t.Fatalf("song should be cleared")
	}
}

func TestServiceTracksAndEvents(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	tracks := newSongWithTracks(t, svc, 2)
	a, b := tracks[0], tracks[1]

	e1 := mustAddEvent(t, svc, noteInput(a, 0, 480, 60))
	e2 := mustAddEvent(t, svc, noteInput(b, 240, 480, 64))
	e3 := mustAddEvent(t, svc, noteInput(a, 960, 240, 67))
	if e1.TrackID != a || e1.Kind != "Note" || e1.Duration != 480 {
		t.Fatalf("unexpected event %+v", e1)
	}

	all, err := svc.GetEvents(ctx, nil)
	if err != nil || !slices.Equal(ticksOf(all), []uint32{0, 240, 960}) {
		t.Fatalf("get events: %v %v", ticksOf(all), err)
	}
	onlyA, err := svc.GetEvents(ctx, []string{a})
	if err != nil || !slices.Equal(ticksOf(onlyA), []uint32{0, 960}) {
		t.Fatalf("filtered events: %v %v", ticksOf(onlyA), err)
	}
	none, err := svc.GetEvents(ctx, []string{})
	if err != nil || len(none) != 0 {
		t.Fatalf("empty filter: %v %v", none, err)
	}

	sounding, err := svc.GetEventsInRange(ctx, 300, 1000, true, nil)
	if err != nil || !slices.Equal(ticksOf(sounding), []uint32{0, 240, 960}) {
		t.Fatalf("range within: %v %v", ticksOf(sounding), err)
	}
	starting, err := svc.GetEventsInRange(ctx, 300, 1000, false, nil)
	if err != nil || !slices.Equal(ticksOf(starting), []uint32{960}) {
		t.Fatalf("range direct: %v %v", ticksOf(starting), err)
	}
	if empty, err := svc.GetEventsInRange(ctx, 500, 500, true, nil); err != nil || len(empty) != 0 {
		t.Fatalf("empty range: %v %v", empty, err)
	}
	if filtered, err := svc.GetEventsInRange(ctx, 300, 1000, true, []string{b}); err != nil || len(filtered) != 1 || filtered[0].ID != e2.ID {
		t.Fatalf("filtered range: %+v %v", filtered, err)
	}

	moved, err := svc.UpdateEvent(ctx, domain.EventUpdaterRecord{ID: e3.ID, Kind: "Note", TrackID: &b, Velocity: domain.Ptr(uint8(5))})
	if err != nil || moved.TrackID != b || moved.Velocity != 5 || moved.Ticks != 960 {
		t.Fatalf("move: %+v %v", moved, err)
	}
	trackB, ok, err := svc.GetTrack(ctx, b)
	if err != nil || !ok || len(trackB.Events) != 2 {
		t.Fatalf("track b after move: %+v %v %v", trackB, ok, err)
	}

	got, ok, err := svc.GetEvent(ctx, e1.ID)
	if err != nil || !ok || got != e1 {
		t.Fatalf("get event: %+v %v %v", got, ok, err)
	}
	if err := svc.RemoveEvent(ctx, e1.ID); err != nil {
		t.Fatalf("remove event: %v", err)
	}
	if _, ok, err := svc.GetEvent(ctx, e1.ID); err != nil || ok {
		t.Fatalf("removed event still visible: %v %v", ok, err)
	}
	if err := svc.RemoveEvent(ctx, e1.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.RemoveTrack(ctx, b); err != nil {
		t.Fatalf("remove track: %v", err)
	}
	if rest, _ := svc.GetEvents(ctx, nil); len(rest) != 0 {
		t.Fatalf("track removal should cascade, left %+v", rest)
	}
	if _, ok, err := svc.GetTrack(ctx, b); err != nil || ok {
		t.Fatalf("removed track visible: %v %v", ok, err)
	}
	trs, err := svc.GetTracks(ctx)
	if err != nil || len(trs) != 1 || trs[0].ID != a {
		t.Fatalf("tracks: %+v %v", trs, err)
	}
}

func TestServiceRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	tracks := newSongWithTracks(t, svc, 1)
	e := mustAddEvent(t, svc, noteInput(tracks[0], 10, 10, 60))

	var idErr domain.ErrInvalidIdentifier
	if _, _, err := svc.GetTrack(ctx, "not-a-uuid"); !errors.As(err, &idErr) {
		t.Fatalf("expected invalid identifier, got %v", err)
	}
	if _, err := svc.GetEvents(ctx, []string{"nope"}); !errors.As(err, &idErr) {
		t.Fatalf("expected invalid identifier in filter, got %v", err)
	}
	if _, err := svc.GetEvents(ctx, []string{domain.NewID().String()}); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown track in filter to be not found, got %v", err)
	}
	if _, err := svc.AddEvent(ctx, noteInput(domain.NewID().String(), 0, 1, 60)); !domain.IsNotFound(err) {
		t.Fatalf("expected missing track, got %v", err)
	}
	var verr domain.ErrValidation
	if _, err := svc.AddEvent(ctx, domain.EventInputRecord{Kind: "Chord", TrackID: tracks[0]}); !errors.As(err, &verr) || verr.Field != "kind" {
		t.Fatalf("expected kind validation, got %v", err)
	}
	if _, err := svc.AddEvent(ctx, noteInput(tracks[0], uint32(domain.MaxTicks), 1, 60)); !errors.As(err, &verr) || verr.Field != "duration" {
		t.Fatalf("expected overflow validation, got %v", err)
	}
	if _, err := svc.UpdateEvent(ctx, domain.EventUpdaterRecord{ID: e.ID, Kind: "Note", Ticks: domain.Ptr(uint32(domain.MaxTicks))}); !errors.As(err, &verr) {
		t.Fatalf("expected overflow validation on update, got %v", err)
	}
	if _, err := svc.UpdateEvent(ctx, domain.EventUpdaterRecord{ID: domain.NewID().String(), Kind: "Note"}); !domain.IsNotFound(err) {
		t.Fatalf("expected missing event, got %v", err)
	}
	missing := domain.NewID().String()
	if _, err := svc.UpdateEvent(ctx, domain.EventUpdaterRecord{ID: e.ID, Kind: "Note", TrackID: &missing}); !domain.IsNotFound(err) {
		t.Fatalf("expected missing target track, got %v", err)
	}
	unchanged, _, _ := svc.GetEvent(ctx, e.ID)
	if unchanged != e {
		t.Fatalf("rejected updates must leave the event intact: %+v", unchanged)
	}
}

func TestServiceSetSongKeepsIdentifiers(t *testing.T) {
	ctx := context.Background()
	src := NewService()
	tracks := newSongWithTracks(t, src, 2)
	mustAddEvent(t, src, noteInput(tracks[0], 0, 10, 60))
	mustAddEvent(t, src, noteInput(tracks[1], 5, 10, 62))
	rec, _ := src.GetSong(ctx)

	dst := NewService()
	got, err := dst.SetSong(ctx, rec)
	if err != nil {
		t.Fatalf("set song: %v", err)
	}
	if got.Tracks[0].ID != tracks[0] || got.Tracks[1].ID != tracks[1] || got.EventCount() != 2 {
		t.Fatalf("ids not kept: %+v", got)
	}
	srcEvents, _ := src.GetEvents(ctx, nil)
	dstEvents, _ := dst.GetEvents(ctx, nil)
	if !slices.Equal(srcEvents, dstEvents) {
		t.Fatalf("events differ after round trip")
	}

	bad := rec.Clone()
	bad.Tracks[0].Events = append(bad.Tracks[0].Events, bad.Tracks[1].Events[0])
	if _, err := dst.SetSong(ctx, bad); err == nil {
		t.Fatalf("expected record with misplaced event to be rejected")
	}
	if cur, _ := dst.GetSong(ctx); cur.EventCount() != 2 {
		t.Fatalf("failed SetSong must keep the previous song")
	}
}

func TestServiceConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	tracks := newSongWithTracks(t, svc, 4)
	var wg sync.WaitGroup
	for i, tr := range tracks {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 50 {
				if _, err := svc.AddEvent(ctx, noteInput(tr, uint32(j*10+i), 5, 60)); err != nil {
					t.Errorf("add: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				events, err := svc.GetEventsInRange(ctx, 0, 1000, true, nil)
				if err != nil {
					t.Errorf("query: %v", err)
					return
				}
				if !slices.IsSortedFunc(events, func(x, y domain.EventRecord) int { return int(x.Ticks) - int(y.Ticks) }) {
					t.Errorf("unsorted result")
					return
				}
			}
		}()
	}
	wg.Wait()
	all, _ := svc.GetEvents(ctx, nil)
	if len(all) != 200 {
		t.Fatalf("expected 200 events, got %d", len(all))
	}
}
