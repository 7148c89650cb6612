// Package dataset is a minimal labeled container for virtual arrays: an
// ordered set of named variables, each a ManifestArray with dimension names.
// It stands in for the host dataset framework that virtual arrays are
// exposed through.
package dataset

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

var (
	// ErrVariableNotFound indicates a lookup of a name the dataset lacks.
	ErrVariableNotFound = errors.New("dataset: variable not found")

	// ErrDimensionMismatch indicates dimension names that do not fit an
	// array, or datasets that disagree on a dimension's length.
	ErrDimensionMismatch = errors.New("dataset: dimension mismatch")
)

// Variable is a named array's data together with its dimension names.
type Variable struct {
	Dims  []string
	Data  *manifests.ManifestArray
	Attrs map[string]any
}

// NewVariable checks that there is one distinct dimension name per array
// dimension.
func NewVariable(dims []string, data *manifests.ManifestArray, attrs map[string]any) (Variable, error) {
	if data == nil {
		return Variable{}, errors.New("dataset: variable has no data")
	}
	if len(dims) != data.NDim() {
		return Variable{}, errors.Wrapf(ErrDimensionMismatch,
			"%d dimension names %v for array of dimension %d", len(dims), dims, data.NDim())
	}
	seen := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		if _, ok := seen[d]; ok {
			return Variable{}, errors.Wrapf(ErrDimensionMismatch, "repeated dimension name %q in %v", d, dims)
		}
		seen[d] = struct{}{}
	}
	return Variable{Dims: slices.Clone(dims), Data: data, Attrs: maps.Clone(attrs)}, nil
}

// Axis returns the position of dim, or -1.
func (v Variable) Axis(dim string) int { return slices.Index(v.Dims, dim) }

// Equal compares dimension names, attributes and data.
func (v Variable) Equal(o Variable) bool {
	return slices.Equal(v.Dims, o.Dims) &&
		attrsEqual(v.Attrs, o.Attrs) &&
		v.Data.Equal(o.Data)
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// DefaultDims returns positional placeholder names dim_0 .. dim_{n-1}.
func DefaultDims(n int) []string {
	dims := make([]string, n)
	for i := range dims {
		dims[i] = fmt.Sprintf("dim_%d", i)
	}
	return dims
}

// Dataset is an ordered mapping from variable names to variables.
type Dataset struct {
	names []string
	vars  map[string]Variable
	Attrs map[string]any
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{vars: map[string]Variable{}}
}

// Set adds or replaces a variable, checking that shared dimensions have the
// same length across variables. New names are appended to the order.
func (ds *Dataset) Set(name string, v Variable) error {
	if name == "" {
		return errors.New("dataset: empty variable name")
	}
	if v.Data == nil || len(v.Dims) != v.Data.NDim() {
		return errors.Wrapf(ErrDimensionMismatch, "variable %q", name)
	}
	if ds.vars == nil {
		ds.vars = map[string]Variable{}
	}
	sizes := ds.sizesExcept(name)
	shape := v.Data.Shape()
	for i, d := range v.Dims {
		if n, ok := sizes[d]; ok && n != shape[i] {
			return errors.Wrapf(ErrDimensionMismatch,
				"variable %q has length %d along %q, dataset has %d", name, shape[i], d, n)
		}
	}
	if _, ok := ds.vars[name]; !ok {
		ds.names = append(ds.names, name)
	}
	ds.vars[name] = v
	return nil
}

// Add is NewVariable followed by Set.
func (ds *Dataset) Add(name string, dims []string, data *manifests.ManifestArray) error {
	v, err := NewVariable(dims, data, nil)
	if err != nil {
		return errors.Wrapf(err, "variable %q", name)
	}
	return ds.Set(name, v)
}

// Get returns the named variable.
func (ds *Dataset) Get(name string) (Variable, error) {
	v, ok := ds.vars[name]
	if !ok {
		return Variable{}, errors.Wrapf(ErrVariableNotFound, "%q", name)
	}
	return v, nil
}

// Has reports whether the dataset holds name.
func (ds *Dataset) Has(name string) bool {
	_, ok := ds.vars[name]
	return ok
}

// Names returns the variable names in insertion order.
func (ds *Dataset) Names() []string { return slices.Clone(ds.names) }

// Len returns the number of variables.
func (ds *Dataset) Len() int { return len(ds.names) }

// Sizes maps every dimension name to its length.
func (ds *Dataset) Sizes() map[string]int { return ds.sizesExcept("") }

func (ds *Dataset) sizesExcept(skip string) map[string]int {
	sizes := map[string]int{}
	for _, name := range ds.names {
		if name == skip {
			continue
		}
		v := ds.vars[name]
		shape := v.Data.Shape()
		for i, d := range v.Dims {
			sizes[d] = shape[i]
		}
	}
	return sizes
}

// Equal compares variables by name, ignoring order.
func (ds *Dataset) Equal(o *Dataset) bool {
	if ds.Len() != o.Len() || !attrsEqual(ds.Attrs, o.Attrs) {
		return false
	}
	for name, v := range ds.vars {
		ov, ok := o.vars[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
