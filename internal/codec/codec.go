// Package codec reads and writes song documents as JSON or YAML.
package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"songstore/pkg/domain"
)

// Format selects a document encoding.
type Format string

const (
	// FormatJSON encodes documents as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML encodes documents as YAML.
	FormatYAML Format = "yaml"
	// FormatAuto decodes JSON first and falls back to YAML. Not valid for Encode.
	FormatAuto Format = "auto"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("codec: unsupported document extension %q", filepath.Ext(path))
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// Encode writes rec to w.
func Encode(w io.Writer, rec domain.SongRecord, f Format) error {
	b, err := Marshal(rec, f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Marshal renders rec in format f.
func Marshal(rec domain.SongRecord, f Format) ([]byte, error) {
	rec = normalize(rec)
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("codec: marshal json: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		b, err := yaml.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("codec: marshal yaml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("codec: cannot encode format %q", f)
	}
}

// Decode reads a song document from r.
func Decode(r io.Reader, f Format) (domain.SongRecord, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.SongRecord{}, err
	}
	return Unmarshal(b, f)
}

// Unmarshal parses a song document.
func Unmarshal(b []byte, f Format) (domain.SongRecord, error) {
	var rec domain.SongRecord
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(b, &rec); err != nil {
			return domain.SongRecord{}, fmt.Errorf("codec: unmarshal json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(b, &rec); err != nil {
			return domain.SongRecord{}, fmt.Errorf("codec: unmarshal yaml: %w", err)
		}
	case FormatAuto:
		if errJSON := json.Unmarshal(b, &rec); errJSON != nil {
			rec = domain.SongRecord{}
			if errYAML := yaml.Unmarshal(b, &rec); errYAML != nil {
				return domain.SongRecord{}, fmt.Errorf("codec: not a song document: %v / %v", errJSON, errYAML)
			}
		}
	default:
		return domain.SongRecord{}, fmt.Errorf("codec: cannot decode format %q", f)
	}
	return normalize(rec), nil
}

// normalize replaces nil slices so empty songs and tracks encode as [].
func normalize(rec domain.SongRecord) domain.SongRecord {
	tracks := make([]domain.TrackRecord, len(rec.Tracks))
	copy(tracks, rec.Tracks)
	for i := range tracks {
		if tracks[i].Events == nil {
			tracks[i].Events = []domain.EventRecord{}
		}
	}
	rec.Tracks = tracks
	return rec
}
