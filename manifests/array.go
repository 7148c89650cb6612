package manifests

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
)

// ManifestArray is a virtual array: array metadata plus a manifest locating
// the bytes of each chunk. No chunk data is ever loaded. A ManifestArray is
// immutable; combination operations return new arrays.
type ManifestArray struct {
	zarray   *ZArray
	manifest *ChunkManifest
}

// NewManifestArray validates zarray and checks that every key of manifest
// addresses a cell of the array's chunk grid. It fails with
// ErrMetadataMismatch otherwise. A nil manifest is treated as empty.
func NewManifestArray(zarray *ZArray, manifest *ChunkManifest) (*ManifestArray, error) {
	if zarray == nil {
		return nil, errors.Wrapf(ErrMetadataMismatch, "missing array metadata")
	}
	if err := zarray.Validate(); err != nil {
		return nil, err
	}
	if manifest == nil {
		manifest = &ChunkManifest{}
	}
	if err := checkGrid(zarray, manifest); err != nil {
		return nil, err
	}
	return &ManifestArray{zarray: zarray.Clone(), manifest: manifest}, nil
}

func checkGrid(z *ZArray, m *ChunkManifest) error {
	if m.Len() == 0 {
		return nil
	}
	// A 0-d array has exactly one chunk, stored under "0".
	if z.NDim() == 0 {
		if m.Len() != 1 || m.Arity() != 1 || m.entries[0].key[0] != 0 {
			return errors.Wrapf(ErrMetadataMismatch, "0-d array manifest must hold the single key \"0\"")
		}
		return nil
	}
	if m.Arity() != z.NDim() {
		return errors.Wrapf(ErrMetadataMismatch,
			"manifest keys have arity %d but array has %d dimensions", m.Arity(), z.NDim())
	}
	grid := z.GridShape()
	for k := range m.All() {
		for d, c := range k {
			if c >= grid[d] {
				return errors.Wrapf(ErrMetadataMismatch,
					"chunk key %q is outside the chunk grid %v", k, grid)
			}
		}
	}
	return nil
}

// ZArray returns a copy of the array metadata.
func (a *ManifestArray) ZArray() *ZArray { return a.zarray.Clone() }

// Manifest returns the chunk manifest.
func (a *ManifestArray) Manifest() *ChunkManifest { return a.manifest }

// Shape returns the logical shape.
func (a *ManifestArray) Shape() []int { return slices.Clone(a.zarray.Shape) }

// Chunks returns the shape of one chunk.
func (a *ManifestArray) Chunks() []int { return slices.Clone(a.zarray.Chunks) }

// Dtype returns the element type.
func (a *ManifestArray) Dtype() Dtype { return a.zarray.Dtype }

// NDim returns the number of dimensions.
func (a *ManifestArray) NDim() int { return a.zarray.NDim() }

// Size returns the number of elements.
func (a *ManifestArray) Size() int {
	n := 1
	for _, s := range a.zarray.Shape {
		n *= s
	}
	return n
}

// NBytes returns the decoded size of the array in bytes.
func (a *ManifestArray) NBytes() int { return a.Size() * a.zarray.Dtype.ElementBytes() }

// Equal reports whether both arrays have equal metadata and manifests.
func (a *ManifestArray) Equal(o *ManifestArray) bool {
	return a.zarray.Equal(o.zarray) && a.manifest.Equal(o.manifest)
}

func (a *ManifestArray) String() string {
	return fmt.Sprintf("ManifestArray<shape=%v, dtype=%s, chunks=%v>", a.zarray.Shape, a.zarray.Dtype, a.zarray.Chunks)
}
