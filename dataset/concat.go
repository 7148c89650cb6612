package dataset

import (
	"maps"
	"slices"

	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

// Concat joins datasets along the named dimension, in the given order.
// Variables that have dim are concatenated with manifests.Concatenate;
// variables without it must be equal in every input and are taken from the
// first. All inputs must hold the same variable names.
func Concat(datasets []*Dataset, dim string) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, errors.New("dataset: need at least one dataset to concatenate")
	}
	first := datasets[0]
	for i, ds := range datasets[1:] {
		if ds.Len() != first.Len() {
			return nil, errors.Wrapf(ErrVariableNotFound,
				"dataset %d has %d variables, dataset 0 has %d", i+1, ds.Len(), first.Len())
		}
	}

	out := New()
	out.Attrs = maps.Clone(first.Attrs)
	found := false
	for _, name := range first.names {
		v := first.vars[name]
		axis := v.Axis(dim)
		if axis < 0 {
			for i, ds := range datasets[1:] {
				other, err := ds.Get(name)
				if err != nil {
					return nil, errors.Wrapf(err, "dataset %d", i+1)
				}
				if !v.Equal(other) {
					return nil, errors.Wrapf(manifests.ErrIncompatibleArrays,
						"variable %q lacks dimension %q and differs in dataset %d", name, dim, i+1)
				}
			}
			if err := out.Set(name, v); err != nil {
				return nil, err
			}
			continue
		}

		found = true
		arrays := make([]*manifests.ManifestArray, len(datasets))
		arrays[0] = v.Data
		for i, ds := range datasets[1:] {
			other, err := ds.Get(name)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset %d", i+1)
			}
			if !slices.Equal(other.Dims, v.Dims) {
				return nil, errors.Wrapf(ErrDimensionMismatch,
					"variable %q has dimensions %v in dataset %d, %v in dataset 0", name, other.Dims, i+1, v.Dims)
			}
			arrays[i+1] = other.Data
		}
		data, err := manifests.Concatenate(arrays, axis)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q", name)
		}
		merged, err := NewVariable(v.Dims, data, v.Attrs)
		if err != nil {
			return nil, err
		}
		if err := out.Set(name, merged); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrDimensionMismatch, "no variable has dimension %q", dim)
	}
	return out, nil
}
