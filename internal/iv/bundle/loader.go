package bundle

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/ivcurve/internal/fsutil"
	"github.com/banshee-data/ivcurve/internal/iv/cache"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
	"github.com/banshee-data/ivcurve/internal/monitoring"
)

// ErrNoTraces is returned when a bundle would hold no readable trace.
var ErrNoTraces = errors.New("bundle: no traces")

// Loader builds bundles from trace files or restores them from a store.
type Loader struct {
	FS       fsutil.FileSystem
	Store    cache.Store
	Settings SettingsReader
	// Refiner produces fitted characteristics; nil disables fitting.
	Refiner trace.Refiner
	// SkipBadTraces drops unreadable trace files instead of failing the
	// whole bundle.
	SkipBadTraces bool
}

// NewLoader returns a Loader over fsys with file settings and no cache.
func NewLoader(fsys fsutil.FileSystem, refiner trace.Refiner) *Loader {
	return &Loader{
		FS:       fsys,
		Store:    cache.Disabled{},
		Settings: FileSettings{FS: fsys},
		Refiner:  refiner,
	}
}

// IsGroupPath reports whether path names a group file.
func IsGroupPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), GroupExt)
}

// Load opens a group file or an experiment folder depending on path.
func (l *Loader) Load(path string) (*Bundle, error) {
	if IsGroupPath(path) {
		return l.LoadGroup(path)
	}
	return l.LoadExperiment(path)
}

// LoadExperiment restores the experiment at folder from its snapshot when
// that snapshot is still valid for the files on disk, and otherwise
// rebuilds it from the trace files.
func (l *Loader) LoadExperiment(folder string) (*Bundle, error) {
	folder = filepath.Clean(folder)
	files, err := ExperimentTraceFiles(l.FS, folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTraces, folder)
	}

	key := filepath.Join(folder, SnapshotFile)
	snap, err := l.Store.Load(key)
	if err == nil {
		err = snap.Validate(cache.Expectation{
			Kind:        Experiment.String(),
			Path:        folder,
			TraceCount:  len(files),
			LegacyCount: countLegacy(files),
		})
	}
	switch {
	case err == nil:
		monitoring.Debugf("[cache] restored %s (%d traces)", folder, len(snap.Traces))
		return fromSnapshot(Experiment, snap), nil
	case errors.Is(err, cache.ErrNotFound):
		monitoring.Debugf("[cache] no snapshot for %s", folder)
	default:
		monitoring.Logf("[cache] rebuilding %s: %v", folder, err)
	}

	meta, err := l.Settings.Read(folder)
	if err != nil {
		monitoring.Logf("[bundle] settings for %s unavailable: %v", folder, err)
		meta = UnknownMetadata()
	}
	traces, err := l.buildTraces(files)
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment %s: %w", folder, err)
	}
	return newBundle(Experiment, folder, meta, traces, files), nil
}

// CreateGroup builds a new group at path from the given trace files. The
// group is created in memory only; call Save to persist it.
func (l *Loader) CreateGroup(path string, tracePaths []string) (*Bundle, error) {
	if len(tracePaths) == 0 {
		return nil, fmt.Errorf("%w for group %s", ErrNoTraces, path)
	}
	files := make([]TraceFile, len(tracePaths))
	for i, p := range tracePaths {
		files[i] = TraceFile{Path: filepath.Clean(p), Format: trace.FormatFor(p)}
	}
	traces, err := l.buildTraces(files)
	if err != nil {
		return nil, fmt.Errorf("failed to create group %s: %w", path, err)
	}
	return newBundle(Group, filepath.Clean(path), l.groupMetadata(traces), traces, files), nil
}

// LoadGroup restores a group from its snapshot. A snapshot that no longer
// validates is rebuilt from the trace paths it lists.
func (l *Loader) LoadGroup(path string) (*Bundle, error) {
	path = filepath.Clean(path)
	snap, err := l.Store.Load(path)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("failed to load group %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read group %s: %w", path, err)
	}
	err = snap.Validate(cache.Expectation{Kind: Group.String(), Path: path, TraceCount: -1})
	if err == nil {
		return fromSnapshot(Group, snap), nil
	}
	if len(snap.Traces) == 0 {
		return nil, fmt.Errorf("failed to load group %s: %w", path, err)
	}
	monitoring.Logf("[cache] rebuilding group %s: %v", path, err)
	paths := make([]string, len(snap.Traces))
	for i, tr := range snap.Traces {
		paths[i] = tr.Path
	}
	return l.CreateGroup(path, paths)
}

func (l *Loader) buildTraces(files []TraceFile) ([]*trace.Trace, error) {
	traces := make([]*trace.Trace, 0, len(files))
	for i, f := range files {
		tr, err := trace.New(l.FS, f.Path, TraceKey(i), f.Format, l.Refiner)
		if err != nil {
			if !l.SkipBadTraces {
				return nil, err
			}
			monitoring.Logf("[bundle] skipping %s: %v", f.Path, err)
			continue
		}
		traces = append(traces, tr)
	}
	if len(traces) == 0 {
		return nil, ErrNoTraces
	}
	return traces, nil
}

// groupMetadata dates the group by its earliest trace and keeps a film
// value only when every trace folder reports the same one.
func (l *Loader) groupMetadata(traces []*trace.Trace) Metadata {
	meta := UnknownMetadata()
	earliest := math.Inf(1)
	for i, tr := range traces {
		earliest = math.Min(earliest, tr.Time)

		m, err := l.Settings.Read(filepath.Dir(tr.Path))
		if err != nil {
			m = UnknownMetadata()
		}
		if i == 0 {
			meta.FilmThickness, meta.FilmArea = m.FilmThickness, m.FilmArea
			continue
		}
		if m.FilmThickness != meta.FilmThickness {
			meta.FilmThickness = Unknown
		}
		if m.FilmArea != meta.FilmArea {
			meta.FilmArea = Unknown
		}
	}
	meta.Created = unixTime(earliest).Format(TimeLayout)
	return meta
}

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
