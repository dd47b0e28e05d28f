// Package bundle combines traces into Experiments (every trace in a
// folder) and Groups (a curated list of trace files), aggregates them and
// expresses their characteristics relative to a reference bundle.
//
// A Bundle is not safe for concurrent mutation; callers serialise
// SetIncluded and UpdateReference.
package bundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/ivcurve/internal/iv/cache"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// Kind distinguishes folder-backed Experiments from curated Groups.
type Kind uint8

const (
	Experiment Kind = iota
	Group
)

func (k Kind) String() string {
	switch k {
	case Experiment:
		return "experiment"
	case Group:
		return "group"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const (
	// SnapshotFile is the snapshot name inside an experiment folder.
	SnapshotFile = "experiment.ivsnap"
	// GroupExt is the extension of group snapshot files.
	GroupExt = ".ivgroup"
)

// Unknown marks a film value that no settings file supplied.
const Unknown = -1.0

// TimeLayout formats bundle creation times.
const TimeLayout = "2006-01-02 15:04:05"

// Metadata describes the sample under test.
type Metadata struct {
	Created       string
	FilmThickness float64
	FilmArea      float64
}

// UnknownMetadata has every film value set to Unknown.
func UnknownMetadata() Metadata {
	return Metadata{FilmThickness: Unknown, FilmArea: Unknown}
}

var (
	// ErrUnknownTrace is returned for a trace key the bundle does not hold.
	ErrUnknownTrace = errors.New("bundle: unknown trace")
	// ErrLastIncluded is returned when excluding the only included trace.
	ErrLastIncluded = errors.New("bundle: cannot exclude the last included trace")
)

// Bundle is an aggregated set of traces.
type Bundle struct {
	Kind        Kind
	Path        string
	Name        string
	Meta        Metadata
	IsReference bool

	traces      []*trace.Trace
	traceCount  int
	legacyCount int

	curve  trace.Table
	values trace.Characteristics
	fitted trace.Characteristics
	absent trace.Channels

	reference          *Reference
	efficiencies       trace.Characteristics
	fittedEfficiencies trace.Characteristics
}

func newBundle(kind Kind, path string, meta Metadata, traces []*trace.Trace, files []TraceFile) *Bundle {
	b := &Bundle{
		Kind:        kind,
		Path:        path,
		Name:        displayName(kind, path),
		Meta:        meta,
		traces:      traces,
		traceCount:  len(files),
		legacyCount: countLegacy(files),
	}
	b.aggregate()
	return b
}

func displayName(kind Kind, path string) string {
	base := filepath.Base(path)
	if kind == Group {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// SnapshotPath is the cache key of the bundle.
func (b *Bundle) SnapshotPath() string {
	if b.Kind == Experiment {
		return filepath.Join(b.Path, SnapshotFile)
	}
	return b.Path
}

// Traces returns the traces in discovery order.
func (b *Bundle) Traces() []*trace.Trace { return b.traces }

// TraceCount is the number of trace files the bundle was built from.
func (b *Bundle) TraceCount() int { return b.traceCount }

// Trace looks a trace up by key.
func (b *Bundle) Trace(key string) (*trace.Trace, bool) {
	for _, tr := range b.traces {
		if tr.Key == key {
			return tr, true
		}
	}
	return nil, false
}

// IncludedCount returns the number of included traces.
func (b *Bundle) IncludedCount() int {
	n := 0
	for _, tr := range b.traces {
		if tr.Included {
			n++
		}
	}
	return n
}

// Curve returns the averaged curve of the included traces.
func (b *Bundle) Curve() *trace.Table { return &b.curve }

// Values returns the averaged direct characteristics.
func (b *Bundle) Values() trace.Characteristics { return b.values }

// FittedValues returns the averaged fitted characteristics.
func (b *Bundle) FittedValues() trace.Characteristics { return b.fitted }

// Absent lists channels no included trace recorded.
func (b *Bundle) Absent() trace.Channels { return b.absent }

// SetIncluded toggles one trace and re-aggregates. Setting a flag to its
// current value changes nothing.
func (b *Bundle) SetIncluded(key string, included bool) error {
	tr, ok := b.Trace(key)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrUnknownTrace, key, b.Name)
	}
	if tr.Included == included {
		return nil
	}
	if !included && b.IncludedCount() == 1 {
		return ErrLastIncluded
	}
	tr.Included = included
	b.aggregate()
	return nil
}

func (b *Bundle) aggregate() {
	agg := Aggregate(b.traces)
	b.curve, b.values, b.fitted, b.absent = agg.Curve, agg.Values, agg.Fitted, agg.Absent
	b.UpdateReference(b.reference)
}

// Snapshot captures the full state for the cache.
func (b *Bundle) Snapshot() *cache.Snapshot {
	s := &cache.Snapshot{
		Kind:               b.Kind.String(),
		Path:               b.Path,
		Name:               b.Name,
		Created:            b.Meta.Created,
		FilmThickness:      b.Meta.FilmThickness,
		FilmArea:           b.Meta.FilmArea,
		TraceCount:         b.traceCount,
		LegacyCount:        b.legacyCount,
		Traces:             make([]trace.Trace, len(b.traces)),
		Values:             b.values,
		Fitted:             b.fitted,
		Curve:              b.curve,
		ReferencePath:      b.ReferencePath(),
		Efficiencies:       b.efficiencies,
		FittedEfficiencies: b.fittedEfficiencies,
	}
	for i, tr := range b.traces {
		s.Traces[i] = *tr
	}
	return s
}

// Save writes the bundle's snapshot to store.
func (b *Bundle) Save(store cache.Store) error {
	if err := store.Save(b.SnapshotPath(), b.Snapshot()); err != nil {
		return fmt.Errorf("failed to save %s: %w", b.Name, err)
	}
	return nil
}

// fromSnapshot restores a bundle. The averaged curve and values are taken
// from the snapshot as stored; only the absent channel set is rebuilt from
// the stored traces.
func fromSnapshot(kind Kind, s *cache.Snapshot) *Bundle {
	traces := make([]*trace.Trace, len(s.Traces))
	for i := range s.Traces {
		tr := s.Traces[i]
		traces[i] = &tr
	}
	b := &Bundle{
		Kind:        kind,
		Path:        s.Path,
		Name:        s.Name,
		Meta:        Metadata{Created: s.Created, FilmThickness: s.FilmThickness, FilmArea: s.FilmArea},
		traces:      traces,
		traceCount:  s.TraceCount,
		legacyCount: s.LegacyCount,
		curve:       s.Curve,
		values:      s.Values,
		fitted:      s.Fitted,
		absent:      Aggregate(traces).Absent,
	}
	if s.ReferencePath != "" {
		b.reference = &Reference{Path: s.ReferencePath}
		b.efficiencies = s.Efficiencies
		b.fittedEfficiencies = s.FittedEfficiencies
	}
	return b
}
