// Package kerchunk translates between datasets of manifest arrays and
// kerchunk reference documents, the JSON format in which byte-range
// references to chunks are published:
//
//	{
//	  "version": 1,
//	  "refs": {
//	    ".zgroup": "{\"zarr_format\":2}",
//	    "a/.zarray": "{\"chunks\":[2,3],...,\"zarr_format\":2}",
//	    "a/.zattrs": "{\"_ARRAY_DIMENSIONS\":[\"x\",\"y\"]}",
//	    "a/0.0": ["test.nc", 6144, 48]
//	  }
//	}
//
// Documents can be kept in memory, written to a local file, or stored in any
// gocloud.dev/blob bucket; names ending in ".zst" are zstd compressed.
//
// The package also classifies source files by their magic bytes, so that a
// caller can pick the backend that extracts chunk references from them.
package kerchunk
