package manifests

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/cockroachdb/errors"
)

// Zarr V2 encodings of non-finite floating point fill values.
const (
	FillValueNaN              = "NaN"
	FillValueInfinity         = "Infinity"
	FillValueNegativeInfinity = "-Infinity"
)

// FillValue is the value of uninitialized array elements, held in its JSON
// encoding. The zero FillValue means no fill value (JSON null).
type FillValue struct {
	raw []byte
}

var (
	_ json.Marshaler   = FillValue{}
	_ json.Unmarshaler = (*FillValue)(nil)
)

// NewFillValue encodes v as a fill value. A nil v means no fill value;
// non-finite floats use the Zarr V2 string encodings.
func NewFillValue(v any) (FillValue, error) {
	if v == nil {
		return FillValue{}, nil
	}
	switch f := v.(type) {
	case float64:
		v = encodeFloatFill(f)
	case float32:
		v = encodeFloatFill(float64(f))
	}
	raw, err := base.MarshalCompact(v)
	if err != nil {
		return FillValue{}, errors.Wrapf(err, "encoding fill value %v", v)
	}
	return FillValue{raw: raw}, nil
}

func encodeFloatFill(f float64) any {
	switch {
	case math.IsNaN(f):
		return FillValueNaN
	case math.IsInf(f, 1):
		return FillValueInfinity
	case math.IsInf(f, -1):
		return FillValueNegativeInfinity
	}
	return f
}

// IsNone reports whether there is no fill value.
func (f FillValue) IsNone() bool { return f.raw == nil }

// Raw returns the JSON encoding of the fill value.
func (f FillValue) Raw() json.RawMessage {
	if f.raw == nil {
		return json.RawMessage("null")
	}
	return bytes.Clone(f.raw)
}

// Value decodes the fill value. Numbers are returned as json.Number.
func (f FillValue) Value() (any, error) {
	if f.raw == nil {
		return nil, nil
	}
	var v any
	if err := base.DecodeNumbers(f.raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Equal compares the encoded values.
func (f FillValue) Equal(o FillValue) bool { return bytes.Equal(f.raw, o.raw) }

func (f FillValue) String() string { return string(f.Raw()) }

func (f FillValue) MarshalJSON() ([]byte, error) { return f.Raw(), nil }

func (f *FillValue) UnmarshalJSON(d []byte) error {
	raw, err := base.Compact(d)
	if err != nil {
		return err
	}
	if string(raw) == "null" {
		*f = FillValue{}
		return nil
	}
	*f = FillValue{raw: raw}
	return nil
}
