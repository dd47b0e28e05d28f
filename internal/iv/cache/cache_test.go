package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ivcurve/internal/fsutil"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
	"github.com/banshee-data/ivcurve/internal/timeutil"
	"github.com/banshee-data/ivcurve/internal/version"
)

func sampleSnapshot() *Snapshot {
	tr := trace.Trace{
		Path:   "/exp/IV_Curve_0.csv",
		Key:    "IV_Curve_0",
		Format: trace.FormatNative,
		Time:   1000,
		Data: trace.Table{Samples: []trace.Sample{
			{Time: 1000, Voltage: 0, Current: 0.02, Temperature: 25, Irradiance: [4]float64{1000, 1000, 1000, 1000}},
			{Time: 1001, Voltage: 0.6, Current: 0, Temperature: 25, Irradiance: [4]float64{1000, 1000, 1000, 1000}},
		}},
		Included: true,
	}
	tr.Values[trace.Voc] = trace.Measurement{Value: 0.6}
	tr.Values[trace.Isc] = trace.Measurement{Value: 0.02}

	s := &Snapshot{
		Kind:          "experiment",
		Path:          "/exp",
		Name:          "exp",
		Created:       "2021-05-04 13:00:00",
		FilmThickness: 0.5,
		FilmArea:      -1,
		TraceCount:    1,
		Traces:        []trace.Trace{tr},
		Values:        tr.Values,
		Fitted:        trace.Unrefined(tr.Values),
		Curve:         tr.Data,
		ReferencePath: "/ref",
	}
	s.Efficiencies[trace.Pmax] = trace.Measurement{Value: 100, Uncertainty: 3}
	return s
}

func TestMarshalRoundTrip(t *testing.T) {
	in := sampleSnapshot()
	blob, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(blob)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, out.Schema)
	assert.Equal(t, version.Version, out.Version)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("snapshot changed across round trip (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_Corrupt(t *testing.T) {
	t.Parallel()

	for name, blob := range map[string][]byte{
		"empty":       nil,
		"not gzip":    []byte("definitely not a snapshot"),
		"gzip header": {0x1f, 0x8b, 0x08, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(blob)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Snapshot {
		s := sampleSnapshot()
		s.Schema = SchemaVersion
		s.Version = version.Version
		return s
	}
	want := Expectation{Kind: "experiment", Path: "/exp", TraceCount: 1}

	testCases := []struct {
		name   string
		mutate func(s *Snapshot)
		want   Expectation
		ok     bool
	}{
		{"valid", func(*Snapshot) {}, want, true},
		{"schema mismatch", func(s *Snapshot) { s.Schema = SchemaVersion + 1 }, want, false},
		{"software version mismatch", func(s *Snapshot) { s.Version = "0.0.1-old" }, want, false},
		{"kind mismatch", func(s *Snapshot) { s.Kind = "group" }, want, false},
		{"path mismatch", func(s *Snapshot) { s.Path = "/elsewhere" }, want, false},
		{"trace count changed on disk", func(*Snapshot) {}, Expectation{Kind: "experiment", Path: "/exp", TraceCount: 2}, false},
		{"count trusted", func(*Snapshot) {}, Expectation{Kind: "experiment", Path: "/exp", TraceCount: -1}, true},
		{"more traces than files", func(s *Snapshot) { s.TraceCount = 0 }, Expectation{Kind: "experiment", TraceCount: -1}, false},
		{"skipped traces", func(s *Snapshot) { s.TraceCount = 2 }, Expectation{Kind: "experiment", Path: "/exp", TraceCount: 2}, true},
		{"no traces", func(s *Snapshot) { s.Traces = nil }, Expectation{Kind: "experiment", TraceCount: -1}, false},
		{"native file swapped for legacy", func(*Snapshot) {}, Expectation{Kind: "experiment", Path: "/exp", TraceCount: 1, LegacyCount: 1}, false},
		{"legacy mix matches", func(s *Snapshot) { s.LegacyCount = 1 }, Expectation{Kind: "experiment", Path: "/exp", TraceCount: 1, LegacyCount: 1}, true},
		{"legacy count trusted", func(s *Snapshot) { s.LegacyCount = 1 }, Expectation{Kind: "experiment", Path: "/exp", TraceCount: -1}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(s)
			err := s.Validate(tc.want)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}

	var nilSnap *Snapshot
	assert.ErrorIs(t, nilSnap.Validate(want), ErrInvalid)
}

func TestValidate_AfterVersionBump(t *testing.T) {
	orig := version.Version
	defer func() { version.Version = orig }()

	blob, err := Marshal(sampleSnapshot())
	require.NoError(t, err)

	version.Version = orig + "-next"
	s, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Validate(Expectation{Kind: "experiment", TraceCount: -1}), ErrInvalid)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	store := NewFileStore(mfs)
	key := "/exp/experiment.ivsnap"

	_, err := store.Load(key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(key, sampleSnapshot()))
	got, err := store.Load(key)
	require.NoError(t, err)
	assert.Equal(t, "/exp", got.Path)
	assert.Equal(t, 1, got.TraceCount)

	entries, err := mfs.ReadDir("/exp")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")

	require.NoError(t, mfs.WriteFile(key, []byte("garbage"), 0644))
	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), clock)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load("/exp")
	assert.True(t, errors.Is(err, ErrNotFound))

	snap := sampleSnapshot()
	require.NoError(t, store.Save("/exp", snap))

	got, err := store.Load("/exp")
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	entries, err := store.List("experiment")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	firstID := entries[0].ID
	assert.NotEmpty(t, firstID)
	assert.Equal(t, clock.Now().UnixNano(), entries[0].SavedAt)

	clock.Advance(time.Minute)
	snap.ReferencePath = ""
	require.NoError(t, store.Save("/exp", snap))

	entries, err = store.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1, "save must replace, not append")
	assert.NotEqual(t, firstID, entries[0].ID)
	assert.Equal(t, clock.Now().UnixNano(), entries[0].SavedAt)

	got, err = store.Load("/exp")
	require.NoError(t, err)
	assert.Empty(t, got.ReferencePath)

	groups, err := store.List("group")
	require.NoError(t, err)
	assert.Empty(t, groups)

	require.NoError(t, store.Delete("/exp"))
	_, err = store.Load("/exp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save("/g.ivgroup", sampleSnapshot()))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load("/g.ivgroup")
	require.NoError(t, err)
	assert.Equal(t, "exp", got.Name)
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var s Store = Disabled{}
	assert.NoError(t, s.Save("x", sampleSnapshot()))
	_, err := s.Load("x")
	assert.ErrorIs(t, err, ErrNotFound)
}
