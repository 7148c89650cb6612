package virtualizarr

import (
	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/kerchunk"
	"gocloud.dev/blob"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// Option configures OpenVirtualDataset, ToKerchunk and SniffFileType.
type Option func(*config)

type config struct {
	// bucket, when set, resolves paths as object keys in it.
	bucket *blob.Bucket

	// path is the destination of ToKerchunk.
	path string

	// fileType overrides sniffing in OpenVirtualDataset.
	fileType kerchunk.FileType

	backends map[kerchunk.FileType]Backend
	inline   kerchunk.InlinePolicy
	logger   Logger
}

func newConfig(opts []Option) *config {
	c := &config{
		backends: map[kerchunk.FileType]Backend{},
		inline:   kerchunk.InlineReject,
		logger:   base.DefaultLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBucket resolves paths as keys of bucket instead of local files.
func WithBucket(bucket *blob.Bucket) Option {
	return func(c *config) {
		c.bucket = bucket
	}
}

// WithPath makes ToKerchunk write the document to path. Paths ending in
// ".zst" are zstd compressed.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// WithFileType skips sniffing and opens the source as ft.
func WithFileType(ft kerchunk.FileType) Option {
	return func(c *config) {
		c.fileType = ft
	}
}

// WithBackend registers the backend used for sources of type ft, replacing
// any built-in one.
func WithBackend(ft kerchunk.FileType, b Backend) Option {
	return func(c *config) {
		c.backends[ft] = b
	}
}

// WithInlinePolicy sets how inline chunk data in reference documents is
// treated. Default is kerchunk.InlineReject.
func WithInlinePolicy(p kerchunk.InlinePolicy) Option {
	return func(c *config) {
		c.inline = p
	}
}

// WithLogger sets the logger. By default messages go to the standard
// library log package.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
