// Package midifile converts song records to and from Standard MIDI Files.
//
// Export writes a format 1 file with one MIDI track per song track. Notes
// are written on channel 0 and each MIDI track is named after its track id,
// so a file produced by Export imports back onto the same track ids.
package midifile

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"songstore/pkg/domain"
)

// MaxPPQ is the largest resolution expressible as SMF metric ticks.
const MaxPPQ = 0x7FFF

// phases order MIDI messages that share a tick.
const (
	phaseRelease = iota // note-off of a note that started earlier
	phaseStart
	phaseZeroLength // note-off of a note that started on this tick
)

type point struct {
	at       uint32
	phase    int
	seq      int
	key, vel uint8
}

// Export writes rec as a Standard MIDI File.
func Export(w io.Writer, rec domain.SongRecord) error {
	if rec.PPQ == 0 || rec.PPQ > MaxPPQ {
		return domain.ErrValidation{Field: "ppq", Reason: fmt.Sprintf("%d does not fit SMF metric ticks", rec.PPQ)}
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(rec.PPQ)
	for _, tr := range rec.Tracks {
		track, err := exportTrack(tr)
		if err != nil {
			return err
		}
		if err := s.Add(track); err != nil {
			return fmt.Errorf("add track %s: %w", tr.ID, err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

func exportTrack(tr domain.TrackRecord) (smf.Track, error) {
	points := make([]point, 0, 2*len(tr.Events))
	for i, ev := range tr.Events {
		if ev.Kind != string(domain.EventKindNote) {
			continue
		}
		if ev.NoteNumber > 127 || ev.Velocity > 127 {
			return nil, domain.ErrValidation{Field: "event", Reason: fmt.Sprintf("%s has a note or velocity outside 0..127", ev.ID)}
		}
		end, ok := domain.Ticks(ev.Ticks).CheckedAdd(domain.Ticks(ev.Duration))
		if !ok {
			return nil, domain.ErrValidation{Field: "event", Reason: fmt.Sprintf("%s ends past the tick domain", ev.ID)}
		}
		// a zero velocity note-on reads back as a note-off
		vel := max(ev.Velocity, 1)
		off := phaseRelease
		if ev.Duration == 0 {
			off = phaseZeroLength
		}
		points = append(points,
			point{at: ev.Ticks, phase: phaseStart, seq: i, key: ev.NoteNumber, vel: vel},
			point{at: end.Uint32(), phase: off, seq: i, key: ev.NoteNumber},
		)
	}
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.at != b.at {
			return a.at < b.at
		}
		if a.phase != b.phase {
			return a.phase < b.phase
		}
		return a.seq < b.seq
	})

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(tr.ID))
	var last uint32
	for _, p := range points {
		delta := p.at - last
		last = p.at
		if p.phase == phaseStart {
			track.Add(delta, midi.NoteOn(0, p.key, p.vel))
		} else {
			track.Add(delta, midi.NoteOff(0, p.key))
		}
	}
	track.Close(0)
	return track, nil
}

type pending struct {
	at  uint64
	vel uint8
}

type noteKey struct{ channel, key uint8 }

// Import reads a Standard MIDI File into a song record titled title. Each
// MIDI track containing at least one note becomes a track; note on/off pairs
// become Note events, matched first-in first-out per channel and key. Notes
// still sounding at the end of a track are closed there.
func Import(r io.Reader, title string) (domain.SongRecord, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return domain.SongRecord{}, fmt.Errorf("read smf: %w", err)
	}
	tf, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return domain.SongRecord{}, domain.ErrValidation{Field: "timeFormat", Reason: fmt.Sprintf("unsupported %v", s.TimeFormat)}
	}
	rec := domain.SongRecord{Title: title, PPQ: uint32(tf), Tracks: []domain.TrackRecord{}}
	used := make(map[string]bool)
	for _, track := range s.Tracks {
		tr, end, err := importTrack(track, used)
		if err != nil {
			return domain.SongRecord{}, err
		}
		if len(tr.Events) == 0 {
			continue
		}
		used[tr.ID] = true
		rec.Tracks = append(rec.Tracks, tr)
		rec.EndOfSong = max(rec.EndOfSong, end)
	}
	return rec, nil
}

func importTrack(track smf.Track, used map[string]bool) (domain.TrackRecord, uint32, error) {
	var (
		name  string
		now   uint64
		end   uint64
		open  = make(map[noteKey][]pending)
		notes []domain.EventRecord
	)
	emit := func(k noteKey, p pending, stop uint64) {
		notes = append(notes, domain.EventRecord{
			Kind:       string(domain.EventKindNote),
			Ticks:      uint32(p.at),
			Duration:   uint32(stop - p.at),
			Velocity:   p.vel,
			NoteNumber: k.key,
		})
		end = max(end, stop)
	}
	for _, ev := range track {
		now += uint64(ev.Delta)
		if now > uint64(domain.MaxTicks) {
			return domain.TrackRecord{}, 0, domain.ErrValidation{Field: "ticks", Reason: "track is longer than the tick domain"}
		}
		var channel, key, vel uint8
		var text string
		switch {
		case ev.Message.GetNoteOn(&channel, &key, &vel) && vel > 0:
			k := noteKey{channel, key}
			open[k] = append(open[k], pending{at: now, vel: vel})
		case ev.Message.GetNoteOn(&channel, &key, &vel), ev.Message.GetNoteOff(&channel, &key, &vel):
			k := noteKey{channel, key}
			if q := open[k]; len(q) > 0 {
				emit(k, q[0], now)
				open[k] = q[1:]
			}
		case name == "" && ev.Message.GetMetaTrackName(&text):
			name = text
		}
	}
	keys := make([]noteKey, 0, len(open))
	for k := range open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].channel != keys[j].channel {
			return keys[i].channel < keys[j].channel
		}
		return keys[i].key < keys[j].key
	})
	for _, k := range keys {
		for _, p := range open[k] {
			emit(k, p, now)
		}
	}

	id := trackID(name, used)
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Ticks != notes[j].Ticks {
			return notes[i].Ticks < notes[j].Ticks
		}
		return notes[i].NoteNumber < notes[j].NoteNumber
	})
	for i := range notes {
		notes[i].ID = domain.NewID().String()
		notes[i].TrackID = id
	}
	return domain.TrackRecord{ID: id, Events: notes}, uint32(end), nil
}

// trackID reuses the track name when it is an unused identifier.
func trackID(name string, used map[string]bool) string {
	if id, err := domain.ParseID(name); err == nil && !used[id.String()] {
		return id.String()
	}
	return domain.NewID().String()
}
