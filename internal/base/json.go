package base

import (
	"bytes"
	"encoding/json"
)

// MarshalCompact encodes v as compact JSON without HTML escaping, so that
// type strings such as "<i8" are written verbatim as Python's json and ujson
// modules write them.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Compact returns a compacted copy of the JSON text in data.
func Compact(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNumbers unmarshals data keeping numbers as json.Number, so integer
// and float literals survive a decode/encode cycle unchanged.
func DecodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
