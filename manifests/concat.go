package manifests

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// CheckCompatible reports the first field on which a and b disagree, other
// than their extent along axis. Pass axis -1 to require equal shapes.
func CheckCompatible(a, b *ManifestArray, axis int) error {
	za, zb := a.zarray, b.zarray
	switch {
	case !za.Dtype.Equal(zb.Dtype):
		return errors.Wrapf(ErrIncompatibleArrays, "dtypes differ: %s vs %s", za.Dtype, zb.Dtype)
	case za.NDim() != zb.NDim():
		return errors.Wrapf(ErrIncompatibleArrays, "dimensionality differs: %d vs %d", za.NDim(), zb.NDim())
	case !slices.Equal(za.Chunks, zb.Chunks):
		return errors.Wrapf(ErrIncompatibleArrays, "chunk shapes differ: %v vs %v", za.Chunks, zb.Chunks)
	case !codecsEqual(za.Compressor, zb.Compressor):
		return errors.Wrapf(ErrIncompatibleArrays, "compressors differ")
	case !filtersEqual(za.Filters, zb.Filters):
		return errors.Wrapf(ErrIncompatibleArrays, "filters differ")
	case !za.FillValue.Equal(zb.FillValue):
		return errors.Wrapf(ErrIncompatibleArrays, "fill values differ: %s vs %s", za.FillValue, zb.FillValue)
	case za.Order != zb.Order:
		return errors.Wrapf(ErrIncompatibleArrays, "orders differ: %s vs %s", za.Order, zb.Order)
	case za.ZarrFormat != zb.ZarrFormat:
		return errors.Wrapf(ErrIncompatibleArrays, "zarr formats differ: %d vs %d", za.ZarrFormat, zb.ZarrFormat)
	case za.Separator() != zb.Separator():
		return errors.Wrapf(ErrIncompatibleArrays, "dimension separators differ")
	}
	for d := range za.Shape {
		if d != axis && za.Shape[d] != zb.Shape[d] {
			return errors.Wrapf(ErrIncompatibleArrays,
				"shapes %v and %v differ in dimension %d", za.Shape, zb.Shape, d)
		}
	}
	return nil
}

func normalizeAxis(axis, ndim int) (int, error) {
	if axis < 0 {
		axis += ndim
	}
	if axis < 0 || axis >= ndim {
		return 0, errors.Newf("axis %d is out of bounds for array of dimension %d", axis, ndim)
	}
	return axis, nil
}

// Concatenate joins arrays along an existing axis, in the given order. The
// inputs must agree on everything except their extent along axis. The
// result keeps the input chunk shape; keys of each input are shifted along
// axis by the number of chunks contributed by the inputs before it.
//
// Every input except the last must span a whole number of chunks along
// axis, otherwise its trailing partial chunk would land inside the result.
// Such inputs are rejected with ErrIncompatibleArrays even when the chunk
// shapes match, because a Zarr array can only hold a partial chunk at its
// end. The last input may end in a partial chunk.
func Concatenate(arrays []*ManifestArray, axis int) (*ManifestArray, error) {
	if len(arrays) == 0 {
		return nil, errors.New("need at least one array to concatenate")
	}
	first := arrays[0]
	if first.NDim() == 0 {
		return nil, errors.Wrapf(ErrIncompatibleArrays, "cannot concatenate 0-d arrays")
	}
	axis, err := normalizeAxis(axis, first.NDim())
	if err != nil {
		return nil, err
	}

	chunkLen := first.zarray.Chunks[axis]
	parts := make([]*ChunkManifest, len(arrays))
	offsets := make([]int, first.NDim())
	total := 0
	for i, arr := range arrays {
		if i > 0 {
			if err := CheckCompatible(first, arr, axis); err != nil {
				return nil, errors.Wrapf(err, "array %d", i)
			}
		}
		extent := arr.zarray.Shape[axis]
		if i < len(arrays)-1 && extent%chunkLen != 0 {
			return nil, errors.Wrapf(ErrIncompatibleArrays,
				"array %d has extent %d along axis %d, not a multiple of the chunk length %d",
				i, extent, axis, chunkLen)
		}
		parts[i], err = arr.manifest.RenumberKeys(offsets)
		if err != nil {
			return nil, err
		}
		offsets[axis] += arr.zarray.GridShape()[axis]
		total += extent
	}

	merged, err := mergeManifests(parts...)
	if err != nil {
		return nil, err
	}
	z := first.zarray.Clone()
	z.Shape[axis] = total
	return NewManifestArray(z, merged)
}

// Stack joins arrays of identical shape along a new axis inserted at
// position axis. The new axis has chunk length 1, so input i becomes
// chunk i along it.
func Stack(arrays []*ManifestArray, axis int) (*ManifestArray, error) {
	if len(arrays) == 0 {
		return nil, errors.New("need at least one array to stack")
	}
	first := arrays[0]
	axis, err := normalizeAxis(axis, first.NDim()+1)
	if err != nil {
		return nil, err
	}

	parts := make([]*ChunkManifest, len(arrays))
	for i, arr := range arrays {
		if i > 0 {
			if err := CheckCompatible(first, arr, -1); err != nil {
				return nil, errors.Wrapf(err, "array %d", i)
			}
		}
		if arr.NDim() == 0 {
			// The single key "0" of a 0-d array becomes key i.
			parts[i], err = arr.manifest.RenumberKeys([]int{i})
			if err != nil {
				return nil, err
			}
			continue
		}
		parts[i] = arr.manifest.insertAxis(axis, i)
	}

	merged, err := mergeManifests(parts...)
	if err != nil {
		return nil, err
	}
	z := first.zarray.Clone()
	z.Shape = slices.Insert(z.Shape, axis, len(arrays))
	z.Chunks = slices.Insert(z.Chunks, axis, 1)
	return NewManifestArray(z, merged)
}
