// Package manifests models virtual chunked arrays: for every chunk of an
// N-dimensional array, a reference to a byte range inside an existing file.
//
// A ChunkEntry names the bytes of one chunk, a ChunkManifest maps chunk grid
// keys to entries, and a ManifestArray pairs a manifest with Zarr V2 array
// metadata (ZArray). Manifest arrays can be concatenated or stacked; this
// only rewrites chunk keys and never touches the referenced bytes.
//
// All types are immutable after construction and safe for concurrent use.
package manifests
