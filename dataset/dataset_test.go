package dataset_test

import (
	"testing"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func newArray(t *testing.T, shape, chunks []int, entries map[string]manifests.ChunkEntry) *manifests.ManifestArray {
	t.Helper()
	m, err := manifests.NewChunkManifest(entries)
	require.NoError(t, err)
	arr, err := manifests.NewManifestArray(&manifests.ZArray{
		Chunks:     chunks,
		Dtype:      manifests.MustParseDtype("<i8"),
		Order:      manifests.OrderC,
		Shape:      shape,
		ZarrFormat: manifests.ZarrFormat,
	}, m)
	require.NoError(t, err)
	return arr
}

func TestDatasetAddGet(t *testing.T) {
	ds := dataset.New()
	a := newArray(t, []int{2, 3}, []int{2, 3}, map[string]manifests.ChunkEntry{
		"0.0": {Path: "test.nc", Offset: 6144, Length: 48},
	})
	require.NoError(t, ds.Add("a", []string{"x", "y"}, a))
	require.NoError(t, ds.Add("b", []string{"y"}, newArray(t, []int{3}, []int{3}, nil)))

	require.Equal(t, []string{"a", "b"}, ds.Names())
	require.True(t, ds.Has("a"))
	require.Equal(t, map[string]int{"x": 2, "y": 3}, ds.Sizes())

	v, err := ds.Get("a")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, v.Dims)
	require.Same(t, a, v.Data)
	require.Equal(t, 1, v.Axis("y"))
	require.Equal(t, -1, v.Axis("z"))

	_, err = ds.Get("missing")
	require.True(t, errors.Is(err, dataset.ErrVariableNotFound))

	// Replacing keeps the original position.
	require.NoError(t, ds.Add("a", []string{"x", "y"}, a))
	require.Equal(t, []string{"a", "b"}, ds.Names())
}

func TestDatasetDimensionMismatch(t *testing.T) {
	ds := dataset.New()
	a := newArray(t, []int{2, 3}, []int{2, 3}, nil)

	err := ds.Add("a", []string{"x"}, a)
	require.True(t, errors.Is(err, dataset.ErrDimensionMismatch))

	err = ds.Add("a", []string{"x", "x"}, a)
	require.True(t, errors.Is(err, dataset.ErrDimensionMismatch))

	require.NoError(t, ds.Add("a", []string{"x", "y"}, a))
	err = ds.Add("b", []string{"x"}, newArray(t, []int{5}, []int{5}, nil))
	require.True(t, errors.Is(err, dataset.ErrDimensionMismatch))
}

func TestDefaultDims(t *testing.T) {
	require.Equal(t, []string{"dim_0", "dim_1"}, dataset.DefaultDims(2))
	require.Empty(t, dataset.DefaultDims(0))
}

func TestConcat(t *testing.T) {
	mk := func(path string) *dataset.Dataset {
		ds := dataset.New()
		require.NoError(t, ds.Add("a", []string{"time", "y"}, newArray(t, []int{2, 3}, []int{2, 3},
			map[string]manifests.ChunkEntry{"0.0": {Path: path, Offset: 6144, Length: 48}})))
		require.NoError(t, ds.Add("lat", []string{"y"}, newArray(t, []int{3}, []int{3},
			map[string]manifests.ChunkEntry{"0": {Path: "grid.nc", Offset: 0, Length: 24}})))
		return ds
	}

	out, err := dataset.Concat([]*dataset.Dataset{mk("t0.nc"), mk("t1.nc"), mk("t2.nc")}, "time")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "lat"}, out.Names())
	require.Equal(t, map[string]int{"time": 6, "y": 3}, out.Sizes())

	a, err := out.Get("a")
	require.NoError(t, err)
	require.Equal(t, map[string]manifests.ChunkEntry{
		"0.0": {Path: "t0.nc", Offset: 6144, Length: 48},
		"1.0": {Path: "t1.nc", Offset: 6144, Length: 48},
		"2.0": {Path: "t2.nc", Offset: 6144, Length: 48},
	}, a.Data.Manifest().Dict())

	lat, err := out.Get("lat")
	require.NoError(t, err)
	require.Equal(t, []int{3}, lat.Data.Shape())
}

func TestConcatErrors(t *testing.T) {
	one := dataset.New()
	require.NoError(t, one.Add("a", []string{"x"}, newArray(t, []int{2}, []int{2}, nil)))
	other := dataset.New()
	require.NoError(t, other.Add("b", []string{"x"}, newArray(t, []int{2}, []int{2}, nil)))

	_, err := dataset.Concat([]*dataset.Dataset{one, other}, "x")
	require.True(t, errors.Is(err, dataset.ErrVariableNotFound))

	_, err = dataset.Concat([]*dataset.Dataset{one, one}, "z")
	require.True(t, errors.Is(err, dataset.ErrDimensionMismatch))

	_, err = dataset.Concat(nil, "x")
	require.Error(t, err)

	// A variable without the concatenation dimension must match everywhere.
	mk := func(path string) *dataset.Dataset {
		ds := dataset.New()
		require.NoError(t, ds.Add("a", []string{"x"}, newArray(t, []int{2}, []int{2}, nil)))
		require.NoError(t, ds.Add("c", []string{"y"}, newArray(t, []int{2}, []int{2},
			map[string]manifests.ChunkEntry{"0": {Path: path, Offset: 0, Length: 16}})))
		return ds
	}
	_, err = dataset.Concat([]*dataset.Dataset{mk("p.nc"), mk("q.nc")}, "x")
	require.True(t, errors.Is(err, manifests.ErrIncompatibleArrays))
}
