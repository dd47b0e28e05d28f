// Package cache persists the parsed state of a bundle so it can be
// restored without re-reading its trace files.
package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/ivcurve/internal/iv/trace"
	"github.com/banshee-data/ivcurve/internal/version"
)

// SchemaVersion is bumped whenever the Snapshot layout changes.
const SchemaVersion = 1

// ErrInvalid marks a snapshot that must not be trusted. It is never
// surfaced to users; callers rebuild from the trace files instead.
var ErrInvalid = errors.New("cache: invalid snapshot")

// ErrNotFound is returned by a Store that holds no snapshot for a key.
var ErrNotFound = errors.New("cache: snapshot not found")

// Snapshot is the full persisted state of one bundle. TraceCount is the
// number of trace files the bundle was built from and LegacyCount how many
// of those were in the legacy layout; Traces may hold fewer when
// unreadable files were skipped.
type Snapshot struct {
	Schema  int
	Version string

	Kind string
	Path string
	Name string

	Created       string
	FilmThickness float64
	FilmArea      float64

	TraceCount  int
	LegacyCount int
	Traces      []trace.Trace

	Values trace.Characteristics
	Fitted trace.Characteristics
	Curve  trace.Table

	ReferencePath      string
	Efficiencies       trace.Characteristics
	FittedEfficiencies trace.Characteristics
}

// Expectation is what a snapshot must match to be trusted. A negative
// TraceCount means the stored counts are trusted as-is.
type Expectation struct {
	Kind        string
	Path        string
	TraceCount  int
	LegacyCount int
}

// Validate fails closed: any mismatch yields an error wrapping ErrInvalid.
func (s *Snapshot) Validate(want Expectation) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil snapshot", ErrInvalid)
	case s.Schema != SchemaVersion:
		return fmt.Errorf("%w: schema %d, want %d", ErrInvalid, s.Schema, SchemaVersion)
	case s.Version != version.Version:
		return fmt.Errorf("%w: written by %q, running %q", ErrInvalid, s.Version, version.Version)
	case s.Kind != want.Kind:
		return fmt.Errorf("%w: kind %q, want %q", ErrInvalid, s.Kind, want.Kind)
	case want.Path != "" && s.Path != want.Path:
		return fmt.Errorf("%w: path %q, want %q", ErrInvalid, s.Path, want.Path)
	case len(s.Traces) == 0:
		return fmt.Errorf("%w: no traces", ErrInvalid)
	case len(s.Traces) > s.TraceCount:
		return fmt.Errorf("%w: %d traces stored, count says %d", ErrInvalid, len(s.Traces), s.TraceCount)
	case want.TraceCount >= 0 && s.TraceCount != want.TraceCount:
		return fmt.Errorf("%w: %d traces stored, %d on disk", ErrInvalid, s.TraceCount, want.TraceCount)
	case want.TraceCount >= 0 && s.LegacyCount != want.LegacyCount:
		return fmt.Errorf("%w: %d legacy traces stored, %d on disk", ErrInvalid, s.LegacyCount, want.LegacyCount)
	}
	return nil
}

// Encode writes s as a gzip-compressed gob stream. Schema and Version are
// stamped on the way out.
func Encode(w io.Writer, s *Snapshot) error {
	s.Schema = SchemaVersion
	s.Version = version.Version

	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(s); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. Corrupt or truncated input
// is reported as ErrInvalid.
func Decode(r io.Reader) (*Snapshot, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	defer gz.Close()

	var s Snapshot
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &s, nil
}

// Marshal is Encode into a byte slice.
func Marshal(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(blob []byte) (*Snapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrInvalid)
	}
	return Decode(bytes.NewReader(blob))
}

// Store loads and saves snapshots by key. For the file store the key is
// the snapshot file path.
type Store interface {
	Load(key string) (*Snapshot, error)
	Save(key string, s *Snapshot) error
}

// Disabled is a Store that never holds anything.
type Disabled struct{}

// Load always reports ErrNotFound.
func (Disabled) Load(string) (*Snapshot, error) { return nil, ErrNotFound }

// Save discards the snapshot.
func (Disabled) Save(string, *Snapshot) error { return nil }
