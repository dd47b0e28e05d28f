package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ivcurve/internal/fsutil"
	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/iv/cache"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
	"github.com/banshee-data/ivcurve/internal/monitoring"
	"github.com/banshee-data/ivcurve/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func setup(t *testing.T) (*Session, *fsutil.MemoryFileSystem) {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteNative(t, fsys, "/ref", 0, testutil.Characterised(0.60, 0.020, 0.0090, 1000))
	testutil.WriteNative(t, fsys, "/ref", 1, testutil.Characterised(0.62, 0.022, 0.0100, 1060))
	testutil.WriteNative(t, fsys, "/dut", 0, testutil.Characterised(0.60, 0.020, 0.019, 2000))
	testutil.WriteNative(t, fsys, "/dut", 1, testutil.Characterised(0.62, 0.022, 0.019, 2060))

	loader := bundle.NewLoader(fsys, nil)
	loader.Store = cache.NewFileStore(fsys)
	return New(loader, 2), fsys
}

func TestAdd(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)
	err := s.Add(context.Background(), "/ref", "/missing", "/dut/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing")

	bundles := s.Bundles()
	require.Len(t, bundles, 2)
	assert.Equal(t, "/ref", bundles[0].Path)
	assert.Equal(t, "/dut", bundles[1].Path)

	// re-adding is a no-op
	require.NoError(t, s.Add(context.Background(), "/ref"))
	assert.Len(t, s.Bundles(), 2)
}

func TestAdd_Cancelled(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Add(ctx, "/ref", "/dut")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Bundles())
}

func TestReference(t *testing.T) {
	t.Parallel()

	s, fsys := setup(t)
	require.NoError(t, s.Add(context.Background(), "/ref", "/dut"))
	require.NoError(t, s.SetReference("/ref"))

	ref, dut := s.Bundle("/ref"), s.Bundle("/dut")
	assert.Same(t, ref, s.Reference())
	assert.True(t, ref.IsReference)
	assert.False(t, dut.IsReference)
	assert.Equal(t, trace.Characteristics{}, ref.Efficiencies())
	assert.InDelta(t, 100, dut.Efficiencies()[trace.Pmax].Value, 1e-9)

	// toggling a reference trace moves every efficiency
	require.NoError(t, s.SetIncluded("/ref", "IV_Curve_1", false))
	assert.InDelta(t, 100*(0.019-0.009)/0.009, dut.Efficiencies()[trace.Pmax].Value, 1e-9)
	assert.Equal(t, trace.Characteristics{}, ref.Efficiencies())

	// only one reference at a time
	require.NoError(t, s.SetReference("/dut"))
	assert.False(t, ref.IsReference)
	assert.True(t, dut.IsReference)
	assert.Equal(t, "/dut", ref.ReferencePath())

	require.NoError(t, s.ToggleReference("/dut"))
	assert.Nil(t, s.Reference())
	assert.Equal(t, trace.Characteristics{}, ref.Efficiencies())

	require.NoError(t, s.ToggleReference("/ref"))
	require.NoError(t, s.Remove("/ref"))
	assert.Nil(t, s.Reference())
	assert.Equal(t, trace.Characteristics{}, dut.Efficiencies())
	assert.True(t, fsys.Exists("/ref/experiment.ivsnap"))

	assert.ErrorIs(t, s.SetReference("/ref"), ErrNotActive)
	assert.ErrorIs(t, s.Remove("/ref"), ErrNotActive)
	assert.ErrorIs(t, s.SetIncluded("/ref", "IV_Curve_0", true), ErrNotActive)
}

func TestSetIncluded_LastTrace(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)
	require.NoError(t, s.Add(context.Background(), "/dut"))
	require.NoError(t, s.SetIncluded("/dut", "IV_Curve_0", false))
	assert.ErrorIs(t, s.SetIncluded("/dut", "IV_Curve_1", false), bundle.ErrLastIncluded)
}

func TestAddGroupAndClose(t *testing.T) {
	t.Parallel()

	s, fsys := setup(t)
	require.NoError(t, s.Add(context.Background(), "/dut"))

	g, err := s.AddGroup("/groups/mix.ivgroup", []string{"/ref/IV_Curve_0.csv", "/dut/IV_Curve_1.csv"})
	require.NoError(t, err)
	assert.True(t, fsys.Exists("/groups/mix.ivgroup"))
	assert.Len(t, s.Bundles(), 2)
	assert.Equal(t, bundle.Group, g.Kind)

	require.NoError(t, s.SetIncluded("/dut", "IV_Curve_0", false))
	require.NoError(t, s.Close())
	assert.True(t, fsys.Exists("/dut/experiment.ivsnap"))

	// a fresh session restores the exclusion from the snapshot
	fresh := New(s.loader, 1)
	require.NoError(t, fresh.Add(context.Background(), "/dut", "/groups/mix.ivgroup"))
	tr, ok := fresh.Bundle("/dut").Trace("IV_Curve_0")
	require.True(t, ok)
	assert.False(t, tr.Included)
	assert.Equal(t, bundle.Group, fresh.Bundle("/groups/mix.ivgroup").Kind)
}
