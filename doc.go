// Package virtualizarr exposes chunks stored as byte ranges inside existing
// files as lazily addressable Zarr arrays, without copying the bytes.
//
// A virtual dataset is a set of named manifest arrays (see package
// manifests). Datasets are opened from kerchunk reference documents, from
// Zarr V2 stores, or from any other format through a caller supplied
// Backend; they can be concatenated (see package dataset) and published as
// a kerchunk reference document:
//
//	ds, err := virtualizarr.OpenVirtualDataset(ctx, "day1.json")
//	...
//	refs, err := virtualizarr.ToKerchunk(ctx, combined, virtualizarr.WithPath("all.json.zst"))
package virtualizarr
