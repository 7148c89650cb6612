// Package zarr virtualizes existing Zarr V2 stores: every chunk object of a
// store becomes a reference to the whole object, so the store's arrays can
// be concatenated with arrays from other sources and published as one
// kerchunk document.
package zarr

import (
	"context"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"
)

const (
	keyGroup = ".zgroup"
	keyArray = ".zarray"
	keyAttrs = ".zattrs"

	attrArrayDimensions = "_ARRAY_DIMENSIONS"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// Concurrency limits for chunk metadata requests.
const (
	// DefaultConcurrency is the default number of concurrent requests.
	DefaultConcurrency = 8

	// MaxConcurrency is the maximum allowed number of concurrent requests.
	MaxConcurrency = 64
)

// Store is a Zarr V2 hierarchy kept in a blob bucket.
type Store struct {
	bucket      *blob.Bucket
	root        string
	owned       bool
	logger      Logger
	concurrency int
}

// Open opens the store at a gocloud.dev/blob URL such as
// "file:///data/air.zarr" or "s3://bucket/air.zarr". The URL is also the
// prefix of every chunk path handed out.
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "opening zarr store %s", url)
	}
	s := NewStore(bucket, url)
	s.owned = true
	return s, nil
}

// NewStore wraps an open bucket. Chunk paths are root joined with the
// object key.
func NewStore(bucket *blob.Bucket, root string) *Store {
	return &Store{
		bucket:      bucket,
		root:        strings.TrimSuffix(root, "/"),
		logger:      base.DefaultLogger{},
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency sets the number of chunk objects stat'ed at once, clamped
// to [1, MaxConcurrency].
func (s *Store) SetConcurrency(n int) {
	s.concurrency = min(max(n, 1), MaxConcurrency)
}

// SetLogger replaces the logger that reports missing chunks.
func (s *Store) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// Close releases the bucket if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.bucket.Close()
}

func (s *Store) readAll(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "opening %s", key)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s", key)
	}
	return data, true, nil
}

func (s *Store) readAttrs(ctx context.Context, key string) (map[string]any, error) {
	data, ok, err := s.readAll(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var attrs map[string]any
	if err := base.DecodeNumbers(data, &attrs); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", key)
	}
	return attrs, nil
}

// Arrays lists the names of the arrays in the store, sorted. An array at
// the root of the store has the empty name.
func (s *Store) Arrays(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing zarr store")
		}
		if obj.IsDir {
			continue
		}
		switch {
		case obj.Key == keyArray:
			names = append(names, "")
		case strings.HasSuffix(obj.Key, "/"+keyArray):
			names = append(names, strings.TrimSuffix(obj.Key, "/"+keyArray))
		}
	}
	slices.Sort(names)
	return names, nil
}

func arrayKey(name, key string) string {
	if name == "" {
		return key
	}
	return name + "/" + key
}

// ReadArray builds the variable for the named array. Chunks missing from
// the store read as the fill value and get no manifest entry.
func (s *Store) ReadArray(ctx context.Context, name string) (dataset.Variable, error) {
	data, ok, err := s.readAll(ctx, arrayKey(name, keyArray))
	if err != nil {
		return dataset.Variable{}, err
	}
	if !ok {
		return dataset.Variable{}, errors.Wrapf(dataset.ErrVariableNotFound, "no array %q in %s", name, s.root)
	}
	z, err := manifests.ParseZArray(data)
	if err != nil {
		return dataset.Variable{}, errors.Wrapf(err, "array %q", name)
	}

	var grid []manifests.ChunkKey
	if err := iterateGrid(z.GridShape(), func(indices []int) error {
		grid = append(grid, manifests.NewChunkKey(indices...))
		return nil
	}); err != nil {
		return dataset.Variable{}, err
	}

	// Chunk objects are stat'ed concurrently; sizes[i] < 0 marks a chunk
	// that is not stored.
	sizes := make([]int64, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range grid {
		objKey := arrayKey(name, key.Join(z.Separator()))
		g.Go(func() error {
			attrs, err := s.bucket.Attributes(gctx, objKey)
			if err != nil {
				if gcerrors.Code(err) == gcerrors.NotFound {
					sizes[i] = -1
					return nil
				}
				return errors.Wrapf(err, "chunk %s", objKey)
			}
			sizes[i] = attrs.Size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dataset.Variable{}, err
	}

	var keys []manifests.ChunkKey
	var entries []manifests.ChunkEntry
	for i, key := range grid {
		if sizes[i] < 0 {
			continue
		}
		objKey := arrayKey(name, key.Join(z.Separator()))
		if len(key) == 0 {
			key = manifests.NewChunkKey(0)
		}
		keys = append(keys, key)
		entries = append(entries, manifests.ChunkEntry{
			Path:   s.root + "/" + objKey,
			Offset: 0,
			Length: sizes[i],
		})
	}
	if missing := len(grid) - len(keys); missing > 0 {
		s.logger.Infof("zarr: %s: %d of %d chunks of %q are not stored",
			s.root, missing, len(grid), name)
	}

	m, err := manifests.NewChunkManifestFromKeys(keys, entries)
	if err != nil {
		return dataset.Variable{}, err
	}
	arr, err := manifests.NewManifestArray(z, m)
	if err != nil {
		return dataset.Variable{}, err
	}

	attrs, err := s.readAttrs(ctx, arrayKey(name, keyAttrs))
	if err != nil {
		return dataset.Variable{}, err
	}
	dims := dataset.DefaultDims(arr.NDim())
	if raw, ok := attrs[attrArrayDimensions].([]any); ok {
		dims = make([]string, len(raw))
		for i, d := range raw {
			dim, ok := d.(string)
			if !ok {
				return dataset.Variable{}, errors.Newf("array %q: %s[%d] is not a string", name, attrArrayDimensions, i)
			}
			dims[i] = dim
		}
		delete(attrs, attrArrayDimensions)
	}
	return dataset.NewVariable(dims, arr, attrs)
}

// Dataset virtualizes every array of the store. An array at the root of
// the store is named after the store.
func (s *Store) Dataset(ctx context.Context) (*dataset.Dataset, error) {
	names, err := s.Arrays(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.Wrapf(dataset.ErrVariableNotFound, "no arrays in %s", s.root)
	}
	ds := dataset.New()
	attrs, err := s.readAttrs(ctx, keyAttrs)
	if err != nil {
		return nil, err
	}
	if _, isGroup, err := s.readAll(ctx, keyGroup); err != nil {
		return nil, err
	} else if isGroup {
		ds.Attrs = attrs
	}
	for _, name := range names {
		v, err := s.ReadArray(ctx, name)
		if err != nil {
			return nil, err
		}
		varName := name
		if varName == "" {
			varName = strings.TrimSuffix(path.Base(s.root), path.Ext(s.root))
		}
		if err := ds.Set(varName, v); err != nil {
			return nil, errors.Wrapf(err, "array %q", varName)
		}
	}
	return ds, nil
}
