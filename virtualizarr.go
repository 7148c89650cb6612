package virtualizarr

import (
	"context"
	"path/filepath"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/kerchunk"
	"github.com/TuSKan/go-virtualizarr/zarr"
	"github.com/cockroachdb/errors"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

// ErrNoBackend indicates a source whose file type has no backend.
var ErrNoBackend = errors.New("virtualizarr: no backend for file type")

// Source locates a file or store to virtualize.
type Source struct {
	// Bucket holds the source under Key.
	Bucket *blob.Bucket
	Key    string
	// URL is the location chunk references should point at: a file:// URL
	// for local sources, the key itself for sources in a caller's bucket.
	URL    string
	Logger Logger
}

// Backend extracts the chunk references of one file format.
type Backend interface {
	Open(ctx context.Context, src Source) (*dataset.Dataset, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, src Source) (*dataset.Dataset, error)

// Open implements Backend.
func (f BackendFunc) Open(ctx context.Context, src Source) (*dataset.Dataset, error) {
	return f(ctx, src)
}

// backend returns the backend for ft: a registered one first, then the
// built-in readers of reference documents and Zarr stores.
func (c *config) backend(ft kerchunk.FileType) (Backend, bool) {
	if b, ok := c.backends[ft]; ok {
		return b, true
	}
	switch ft {
	case kerchunk.Kerchunk:
		return BackendFunc(c.openRefs), true
	case kerchunk.Zarr:
		return BackendFunc(openZarr), true
	}
	return nil, false
}

func (c *config) openRefs(ctx context.Context, src Source) (*dataset.Dataset, error) {
	refs, err := kerchunk.ReadRefs(ctx, src.Bucket, src.Key)
	if err != nil {
		return nil, err
	}
	return kerchunk.DatasetFromRefs(refs,
		kerchunk.WithInlinePolicy(c.inline), kerchunk.WithLogger(src.Logger))
}

func openZarr(ctx context.Context, src Source) (*dataset.Dataset, error) {
	store := zarr.NewStore(blob.PrefixedBucket(src.Bucket, src.Key+"/"), src.URL)
	store.SetLogger(src.Logger)
	return store.Dataset(ctx)
}

// source resolves path against the configured bucket, or opens the
// directory of a local path. The returned function releases what was
// opened.
func (c *config) source(path string) (Source, func(), error) {
	if c.bucket != nil {
		return Source{Bucket: c.bucket, Key: path, URL: path, Logger: c.logger}, func() {}, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, nil, err
	}
	dir := filepath.Dir(abs)
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return Source{}, nil, errors.Wrapf(err, "opening %s", dir)
	}
	src := Source{
		Bucket: bucket,
		Key:    filepath.Base(abs),
		URL:    "file://" + filepath.ToSlash(abs),
		Logger: c.logger,
	}
	return src, func() { _ = bucket.Close() }, nil
}

// OpenVirtualDataset opens the file or store at path as a dataset of
// manifest arrays. The format is sniffed unless WithFileType is given;
// reference documents and Zarr V2 stores are read natively, other formats
// need a backend registered with WithBackend.
func OpenVirtualDataset(ctx context.Context, path string, opts ...Option) (*dataset.Dataset, error) {
	c := newConfig(opts)
	src, release, err := c.source(path)
	if err != nil {
		return nil, err
	}
	defer release()

	ft := c.fileType
	if ft == "" {
		if ft, err = kerchunk.SniffFileType(ctx, src.Bucket, src.Key); err != nil {
			return nil, err
		}
	}
	b, ok := c.backend(ft)
	if !ok {
		return nil, errors.Wrapf(ErrNoBackend, "%s file %s", ft, path)
	}
	ds, err := b.Open(ctx, src)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return ds, nil
}

// ToKerchunk returns the reference document of ds, writing it to the
// destination set with WithPath as well.
func ToKerchunk(ctx context.Context, ds *dataset.Dataset, opts ...Option) (*kerchunk.Refs, error) {
	c := newConfig(opts)
	refs, err := kerchunk.DatasetToRefs(ds)
	if err != nil {
		return nil, err
	}
	switch {
	case c.path == "":
	case c.bucket != nil:
		err = kerchunk.WriteRefs(ctx, c.bucket, c.path, refs)
	default:
		err = kerchunk.WriteRefsFile(ctx, c.path, refs)
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// SniffFileType classifies the file or store at path.
func SniffFileType(ctx context.Context, path string, opts ...Option) (kerchunk.FileType, error) {
	c := newConfig(opts)
	src, release, err := c.source(path)
	if err != nil {
		return "", err
	}
	defer release()
	return kerchunk.SniffFileType(ctx, src.Bucket, src.Key)
}
