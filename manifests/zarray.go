package manifests

import (
	"encoding/json"
	"io"
	"slices"

	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/cockroachdb/errors"
)

// ZarrFormat is the only Zarr storage specification version supported.
const ZarrFormat = 2

// Memory layouts of the elements inside a chunk.
const (
	OrderC = "C" // row-major
	OrderF = "F" // column-major
)

// ZArray holds the array-level metadata stored under a ".zarray" key.
type ZArray struct {
	Chunks     []int
	Compressor *Codec
	Dtype      Dtype
	FillValue  FillValue
	Filters    []Codec
	Order      string
	Shape      []int
	ZarrFormat int

	// DimensionSeparator is "." or "/"; empty means the default ".".
	DimensionSeparator string
}

// zarrayJSON fixes the key order of the canonical encoding.
type zarrayJSON struct {
	Chunks             []int     `json:"chunks"`
	Compressor         *Codec    `json:"compressor"`
	Dtype              Dtype     `json:"dtype"`
	FillValue          FillValue `json:"fill_value"`
	Filters            []Codec   `json:"filters"`
	Order              string    `json:"order"`
	Shape              []int     `json:"shape"`
	ZarrFormat         int       `json:"zarr_format"`
	DimensionSeparator string    `json:"dimension_separator,omitempty"`
}

var requiredZArrayKeys = []string{
	"chunks", "compressor", "dtype", "fill_value", "filters", "order", "shape", "zarr_format",
}

// NDim returns the number of dimensions.
func (z *ZArray) NDim() int { return len(z.Shape) }

// GridShape returns the number of chunks along each dimension.
func (z *ZArray) GridShape() []int { return GridShape(z.Shape, z.Chunks) }

// Validate checks the metadata for internal consistency.
func (z *ZArray) Validate() error {
	if z.ZarrFormat != ZarrFormat {
		return errors.Wrapf(ErrMetadataMismatch, "unsupported zarr_format: %d, expected %d", z.ZarrFormat, ZarrFormat)
	}
	if len(z.Shape) != len(z.Chunks) {
		return errors.Wrapf(ErrMetadataMismatch,
			"shape %v and chunks %v have different lengths", z.Shape, z.Chunks)
	}
	for d := range z.Shape {
		if z.Shape[d] < 0 {
			return errors.Wrapf(ErrMetadataMismatch, "negative extent %d in shape %v", z.Shape[d], z.Shape)
		}
		if z.Chunks[d] <= 0 {
			return errors.Wrapf(ErrMetadataMismatch, "non-positive chunk length %d in chunks %v", z.Chunks[d], z.Chunks)
		}
	}
	if z.Dtype.IsZero() {
		return errors.Wrapf(ErrMetadataMismatch, "missing dtype")
	}
	if z.Order != OrderC && z.Order != OrderF {
		return errors.Wrapf(ErrMetadataMismatch, "order must be %q or %q, got %q", OrderC, OrderF, z.Order)
	}
	switch z.DimensionSeparator {
	case "", ".", "/":
	default:
		return errors.Wrapf(ErrMetadataMismatch, "invalid dimension_separator %q", z.DimensionSeparator)
	}
	return nil
}

// Clone returns a deep copy.
func (z *ZArray) Clone() *ZArray {
	c := *z
	c.Chunks = slices.Clone(z.Chunks)
	c.Shape = slices.Clone(z.Shape)
	if z.Compressor != nil {
		comp := z.Compressor.Clone()
		c.Compressor = &comp
	}
	if z.Filters != nil {
		c.Filters = make([]Codec, len(z.Filters))
		for i, f := range z.Filters {
			c.Filters[i] = f.Clone()
		}
	}
	return &c
}

// Equal compares all fields.
func (z *ZArray) Equal(o *ZArray) bool {
	return slices.Equal(z.Chunks, o.Chunks) &&
		codecsEqual(z.Compressor, o.Compressor) &&
		z.Dtype.Equal(o.Dtype) &&
		z.FillValue.Equal(o.FillValue) &&
		filtersEqual(z.Filters, o.Filters) &&
		z.Order == o.Order &&
		slices.Equal(z.Shape, o.Shape) &&
		z.ZarrFormat == o.ZarrFormat &&
		z.Separator() == o.Separator()
}

// Separator returns the chunk key separator, "." unless set otherwise.
func (z *ZArray) Separator() string {
	if z.DimensionSeparator == "" {
		return "."
	}
	return z.DimensionSeparator
}

// MarshalJSON writes the canonical compact encoding with keys in the order
// chunks, compressor, dtype, fill_value, filters, order, shape, zarr_format.
func (z ZArray) MarshalJSON() ([]byte, error) {
	j := zarrayJSON{
		Chunks:             z.Chunks,
		Compressor:         z.Compressor,
		Dtype:              z.Dtype,
		FillValue:          z.FillValue,
		Filters:            z.Filters,
		Order:              z.Order,
		Shape:              z.Shape,
		ZarrFormat:         z.ZarrFormat,
		DimensionSeparator: z.DimensionSeparator,
	}
	// 0-d arrays still encode as [] rather than null.
	if j.Chunks == nil {
		j.Chunks = []int{}
	}
	if j.Shape == nil {
		j.Shape = []int{}
	}
	return base.MarshalCompact(j)
}

// Encode is MarshalJSON for callers holding a pointer.
func (z *ZArray) Encode() ([]byte, error) { return z.MarshalJSON() }

// ParseZArray decodes and validates ".zarray" metadata. All Zarr V2 keys
// must be present.
func ParseZArray(data []byte) (*ZArray, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata")
	}
	if keys == nil {
		return nil, errors.New("failed to decode metadata: not an object")
	}
	for _, k := range requiredZArrayKeys {
		if _, ok := keys[k]; !ok {
			return nil, errors.Newf("metadata is missing required key %q", k)
		}
	}

	var j zarrayJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata")
	}
	z := &ZArray{
		Chunks:             j.Chunks,
		Compressor:         j.Compressor,
		Dtype:              j.Dtype,
		FillValue:          j.FillValue,
		Filters:            j.Filters,
		Order:              j.Order,
		Shape:              j.Shape,
		ZarrFormat:         j.ZarrFormat,
		DimensionSeparator: j.DimensionSeparator,
	}
	if z.Shape == nil {
		return nil, errors.New("metadata shape must be a list")
	}
	if z.Chunks == nil {
		return nil, errors.New("metadata chunks must be a list")
	}
	if err := z.Validate(); err != nil {
		return nil, err
	}
	return z, nil
}

// LoadZArray reads and parses ".zarray" metadata from r.
func LoadZArray(r io.Reader) (*ZArray, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata")
	}
	return ParseZArray(data)
}
