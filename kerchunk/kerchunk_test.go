package kerchunk_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/kerchunk"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

const expectedJSON = `{"version":1,"refs":{".zgroup":"{\"zarr_format\":2}","a/.zarray":"{\"chunks\":[2,3],\"compressor\":null,\"dtype\":\"<i8\",\"fill_value\":null,\"filters\":null,\"order\":\"C\",\"shape\":[2,3],\"zarr_format\":2}","a/.zattrs":"{\"_ARRAY_DIMENSIONS\":[\"x\",\"y\"]}","a/0.0":["test.nc",6144,48]}}`

func testZArray(shape, chunks []int) *manifests.ZArray {
	return &manifests.ZArray{
		Chunks:     chunks,
		Dtype:      manifests.MustParseDtype("<i8"),
		Order:      manifests.OrderC,
		Shape:      shape,
		ZarrFormat: manifests.ZarrFormat,
	}
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	m, err := manifests.NewChunkManifest(map[string]manifests.ChunkEntry{
		"0.0": {Path: "test.nc", Offset: 6144, Length: 48},
	})
	require.NoError(t, err)
	arr, err := manifests.NewManifestArray(testZArray([]int{2, 3}, []int{2, 3}), m)
	require.NoError(t, err)
	ds := dataset.New()
	require.NoError(t, ds.Add("a", []string{"x", "y"}, arr))
	return ds
}

func TestDatasetToRefs(t *testing.T) {
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)

	require.Equal(t, 1, refs.Version)
	require.Equal(t, []string{".zgroup", "a/.zarray", "a/.zattrs", "a/0.0"}, refs.Keys())

	s, ok := refs.String(".zgroup")
	require.True(t, ok)
	require.Equal(t, `{"zarr_format":2}`, s)
	s, ok = refs.String("a/.zarray")
	require.True(t, ok)
	require.Equal(t,
		`{"chunks":[2,3],"compressor":null,"dtype":"<i8","fill_value":null,"filters":null,"order":"C","shape":[2,3],"zarr_format":2}`, s)
	s, ok = refs.String("a/.zattrs")
	require.True(t, ok)
	require.Equal(t, `{"_ARRAY_DIMENSIONS":["x","y"]}`, s)

	entry, ok := refs.Chunk("a/0.0")
	require.True(t, ok)
	require.Equal(t, manifests.ChunkEntry{Path: "test.nc", Offset: 6144, Length: 48}, entry)
	_, ok = refs.Chunk("a/.zarray")
	require.False(t, ok)

	data, err := kerchunk.Marshal(refs)
	require.NoError(t, err)
	require.Equal(t, expectedJSON, string(data))
}

func TestDatasetToRefsAttributes(t *testing.T) {
	ds := testDataset(t)
	ds.Attrs = map[string]any{"title": "demo"}
	v, err := ds.Get("a")
	require.NoError(t, err)
	v.Attrs = map[string]any{"units": "K"}
	require.NoError(t, ds.Set("a", v))

	refs, err := kerchunk.DatasetToRefs(ds)
	require.NoError(t, err)
	s, _ := refs.String(".zattrs")
	require.Equal(t, `{"title":"demo"}`, s)
	s, _ = refs.String("a/.zattrs")
	require.Equal(t, `{"_ARRAY_DIMENSIONS":["x","y"],"units":"K"}`, s)

	back, err := kerchunk.DatasetFromRefs(refs)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "demo"}, back.Attrs)
	bv, err := back.Get("a")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, bv.Dims)
	require.Equal(t, map[string]any{"units": "K"}, bv.Attrs)
}

func TestRoundTrip(t *testing.T) {
	ds := testDataset(t)
	refs, err := kerchunk.DatasetToRefs(ds)
	require.NoError(t, err)

	back, err := kerchunk.DatasetFromRefs(refs)
	require.NoError(t, err)
	require.True(t, ds.Equal(back))

	again, err := kerchunk.DatasetToRefs(back)
	require.NoError(t, err)
	require.True(t, refs.Equal(again))
}

func TestRoundTripConcatenated(t *testing.T) {
	ds := testDataset(t)
	both, err := dataset.Concat([]*dataset.Dataset{ds, ds}, "x")
	require.NoError(t, err)

	refs, err := kerchunk.DatasetToRefs(both)
	require.NoError(t, err)
	entry, ok := refs.Chunk("a/1.0")
	require.True(t, ok)
	require.Equal(t, "test.nc", entry.Path)

	back, err := kerchunk.DatasetFromRefs(refs)
	require.NoError(t, err)
	require.True(t, both.Equal(back))
}

func TestSlashSeparator(t *testing.T) {
	z := testZArray([]int{4, 4}, []int{2, 2})
	z.DimensionSeparator = "/"
	m, err := manifests.NewChunkManifest(map[string]manifests.ChunkEntry{
		"0.1": {Path: "s3://bucket/f.nc", Offset: 0, Length: 32},
		"1.1": {Path: "s3://bucket/f.nc", Offset: 32, Length: 32},
	})
	require.NoError(t, err)
	arr, err := manifests.NewManifestArray(z, m)
	require.NoError(t, err)
	ds := dataset.New()
	require.NoError(t, ds.Add("grp/v", []string{"y", "x"}, arr))

	refs, err := kerchunk.DatasetToRefs(ds)
	require.NoError(t, err)
	require.Contains(t, refs.Refs, "grp/v/1/1")

	back, err := kerchunk.DatasetFromRefs(refs)
	require.NoError(t, err)
	require.True(t, ds.Equal(back))
}

func TestDecodeDefaultDims(t *testing.T) {
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)
	delete(refs.Refs, "a/.zattrs")

	ds, err := kerchunk.DatasetFromRefs(refs)
	require.NoError(t, err)
	v, err := ds.Get("a")
	require.NoError(t, err)
	require.Equal(t, []string{"dim_0", "dim_1"}, v.Dims)
}

func TestDecodeBareObjectMetadata(t *testing.T) {
	var refs kerchunk.Refs
	require.NoError(t, json.Unmarshal([]byte(`{"version":1,"refs":{
		".zgroup": {"zarr_format": 2},
		"a/.zarray": {"chunks":[3],"compressor":null,"dtype":"<f4","fill_value":"NaN","filters":null,"order":"C","shape":[6],"zarr_format":2},
		"a/.zattrs": {"_ARRAY_DIMENSIONS":["t"]},
		"a/1": ["f.nc", 12, 12]
	}}`), &refs))
	ds, err := kerchunk.DatasetFromRefs(&refs)
	require.NoError(t, err)
	v, err := ds.Get("a")
	require.NoError(t, err)
	require.Equal(t, []string{"t"}, v.Dims)
	require.Equal(t, 1, v.Data.Manifest().Len())
}

type captureLogger struct {
	msgs []string
}

func (l *captureLogger) Infof(format string, args ...interface{}) {
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Errorf(format string, args ...interface{}) {
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func TestDecodeInlinePolicy(t *testing.T) {
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)
	refs.Refs["a/0.0"] = json.RawMessage(`"base64:AAAA"`)

	_, err = kerchunk.DatasetFromRefs(refs)
	require.True(t, errors.Is(err, kerchunk.ErrInvalidReference))
	require.Contains(t, err.Error(), "inline data")

	logger := &captureLogger{}
	ds, err := kerchunk.DatasetFromRefs(refs,
		kerchunk.WithInlinePolicy(kerchunk.InlineSkip), kerchunk.WithLogger(logger))
	require.NoError(t, err)
	v, err := ds.Get("a")
	require.NoError(t, err)
	require.Equal(t, 0, v.Data.Manifest().Len())
	require.Equal(t, []string{"kerchunk: skipping inline data chunk a/0.0"}, logger.msgs)

	refs.Refs["a/0.0"] = json.RawMessage(`["whole.bin"]`)
	_, err = kerchunk.DatasetFromRefs(refs)
	require.True(t, errors.Is(err, kerchunk.ErrInvalidReference))
	require.Contains(t, err.Error(), "whole-file reference")
}

func TestDecodeOutOfGrid(t *testing.T) {
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)
	require.NoError(t, refs.SetChunk("a/1.0", manifests.ChunkEntry{Path: "test.nc", Offset: 0, Length: 48}))

	_, err = kerchunk.DatasetFromRefs(refs)
	require.True(t, errors.Is(err, kerchunk.ErrInvalidReference))
	require.True(t, errors.Is(err, manifests.ErrMetadataMismatch))
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(r *kerchunk.Refs)
		errMsg string
	}{
		{
			name:   "version",
			mutate: func(r *kerchunk.Refs) { r.Version = 2 },
			errMsg: "unsupported version 2",
		},
		{
			name:   "missing refs",
			mutate: func(r *kerchunk.Refs) { r.Refs = nil },
			errMsg: "document has no refs",
		},
		{
			name:   "group format",
			mutate: func(r *kerchunk.Refs) { _ = r.SetString(".zgroup", `{"zarr_format":3}`) },
			errMsg: "unsupported zarr_format 3",
		},
		{
			name:   "orphan chunk",
			mutate: func(r *kerchunk.Refs) { r.Refs["b/0.0"] = r.Refs["a/0.0"] },
			errMsg: `key "b/0.0" does not belong to any array`,
		},
		{
			name:   "bad chunk key",
			mutate: func(r *kerchunk.Refs) { r.Refs["a/x.0"] = r.Refs["a/0.0"] },
			errMsg: `invalid coordinate "x"`,
		},
		{
			name:   "non canonical chunk key",
			mutate: func(r *kerchunk.Refs) { r.Refs["a/00.0"] = r.Refs["a/0.0"] },
			errMsg: `invalid coordinate "00"`,
		},
		{
			name:   "wrong separator",
			mutate: func(r *kerchunk.Refs) { r.Refs["a/0/0"] = r.Refs["a/0.0"] },
			errMsg: `does not use separator "."`,
		},
		{
			name:   "short triple",
			mutate: func(r *kerchunk.Refs) { r.Refs["a/0.0"] = json.RawMessage(`["test.nc",1]`) },
			errMsg: "must have 1 or 3 elements",
		},
		{
			name:   "negative offset",
			mutate: func(r *kerchunk.Refs) { r.Refs["a/0.0"] = json.RawMessage(`["test.nc",-1,4]`) },
			errMsg: "negative",
		},
		{
			name:   "bad zarray",
			mutate: func(r *kerchunk.Refs) { _ = r.SetString("a/.zarray", `{"chunks":[2,3]}`) },
			errMsg: "a/.zarray",
		},
		{
			name:   "dimension count",
			mutate: func(r *kerchunk.Refs) { _ = r.SetString("a/.zattrs", `{"_ARRAY_DIMENSIONS":["x"]}`) },
			errMsg: "dimension names",
		},
		{
			name:   "group attrs",
			mutate: func(r *kerchunk.Refs) { _ = r.SetString(".zattrs", `["title"]`) },
			errMsg: ".zattrs",
		},
		{
			name:   "dimension type",
			mutate: func(r *kerchunk.Refs) { _ = r.SetString("a/.zattrs", `{"_ARRAY_DIMENSIONS":"x"}`) },
			errMsg: "must be a list",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			refs, err := kerchunk.DatasetToRefs(testDataset(t))
			require.NoError(t, err)
			tc.mutate(refs)
			_, err = kerchunk.DatasetFromRefs(refs)
			require.Error(t, err)
			require.True(t, errors.Is(err, kerchunk.ErrInvalidReference), "%v", err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestArrayToRefs(t *testing.T) {
	arr, err := manifests.NewManifestArray(testZArray([]int{2, 3}, []int{2, 3}), nil)
	require.NoError(t, err)
	refs, err := kerchunk.ArrayToRefs("v", arr)
	require.NoError(t, err)
	s, _ := refs.String("v/.zattrs")
	require.Equal(t, `{"_ARRAY_DIMENSIONS":["dim_0","dim_1"]}`, s)
	require.Len(t, refs.Refs, 3)
}

func TestWriteReadFile(t *testing.T) {
	ctx := context.Background()
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "refs.json")
	require.NoError(t, kerchunk.WriteRefsFile(ctx, path, refs))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, expectedJSON, string(data))

	back, err := kerchunk.ReadRefsFile(ctx, path)
	require.NoError(t, err)
	require.True(t, refs.Equal(back))

	_, err = kerchunk.ReadRefsFile(ctx, filepath.Join(filepath.Dir(path), "missing.json"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteReadCompressed(t *testing.T) {
	ctx := context.Background()
	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "refs.json.zst")
	require.NoError(t, kerchunk.WriteRefsFile(ctx, path, refs))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, data[:4])

	back, err := kerchunk.ReadRefsFile(ctx, path)
	require.NoError(t, err)
	require.True(t, refs.Equal(back))

	ft, err := kerchunk.SniffFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, kerchunk.Kerchunk, ft)
}

func TestWriteReadBucket(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	refs, err := kerchunk.DatasetToRefs(testDataset(t))
	require.NoError(t, err)
	require.NoError(t, kerchunk.WriteRefs(ctx, bucket, "refs/a.json", refs))

	data, err := bucket.ReadAll(ctx, "refs/a.json")
	require.NoError(t, err)
	require.Equal(t, expectedJSON, string(data))

	back, err := kerchunk.ReadRefs(ctx, bucket, "refs/a.json")
	require.NoError(t, err)
	ds, err := kerchunk.DatasetFromRefs(back)
	require.NoError(t, err)
	require.True(t, testDataset(t).Equal(ds))

	_, err = kerchunk.ReadRefs(ctx, bucket, "refs/missing.json")
	require.True(t, errors.Is(err, os.ErrNotExist))

	_, err = kerchunk.Unmarshal([]byte("not json"))
	require.True(t, errors.Is(err, kerchunk.ErrInvalidReference))
}

func TestUnmarshalDecompressedSizeLimit(t *testing.T) {
	doc := `{"version":1,"refs":{"a":"` + strings.Repeat("0", 1<<20) + `"}}`
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte(doc), nil)
	require.NoError(t, enc.Close())
	require.Less(t, len(data), 1<<16)

	_, err = kerchunk.UnmarshalLimit(data, 1<<16)
	require.Error(t, err)
	require.True(t, errors.Is(err, kerchunk.ErrInvalidReference), "%v", err)

	refs, err := kerchunk.UnmarshalLimit(data, 2<<20)
	require.NoError(t, err)
	require.Len(t, refs.Refs, 1)

	refs, err = kerchunk.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, refs.Refs, 1)
}
