package manifests

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strconv"

	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/cockroachdb/errors"
)

// CodecKind tags how much of a codec configuration is understood.
type CodecKind int

const (
	// CodecKnown is a numcodecs codec whose parameters are interpreted.
	CodecKnown CodecKind = iota + 1
	// CodecOpaque is a codec this package does not know. Its configuration is
	// carried verbatim.
	CodecOpaque
)

func (k CodecKind) String() string {
	switch k {
	case CodecKnown:
		return "known"
	case CodecOpaque:
		return "opaque"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// knownCodecs lists the numcodecs identifiers whose configuration is
// interpreted.
var knownCodecs = map[string]struct{}{
	"adler32":          {},
	"astype":           {},
	"blosc":            {},
	"bz2":              {},
	"categorize":       {},
	"crc32":            {},
	"delta":            {},
	"fixedscaleoffset": {},
	"fletcher32":       {},
	"gzip":             {},
	"jenkins_lookup3":  {},
	"lz4":              {},
	"lzma":             {},
	"packbits":         {},
	"quantize":         {},
	"shuffle":          {},
	"zlib":             {},
	"zstd":             {},
}

// Codec is a compressor or filter configuration: an object with an "id" key
// plus codec specific parameters. An absent compressor is a nil *Codec and an
// absent filter chain is a nil slice.
//
// A Codec decoded from JSON keeps its original encoding, so configurations
// of codecs unknown to this package round-trip losslessly.
type Codec struct {
	ID     string
	Params map[string]any

	raw []byte
}

var (
	_ json.Marshaler   = Codec{}
	_ json.Unmarshaler = (*Codec)(nil)
)

// NewCodec returns a codec configuration. params must not contain "id".
func NewCodec(id string, params map[string]any) Codec {
	return Codec{ID: id, Params: params}
}

// Kind reports whether the codec is a known numcodecs codec.
func (c Codec) Kind() CodecKind {
	if _, ok := knownCodecs[c.ID]; ok {
		return CodecKnown
	}
	return CodecOpaque
}

// Clone returns a copy that shares no parameter maps or slices with c.
func (c Codec) Clone() Codec {
	c.raw = bytes.Clone(c.raw)
	if c.Params != nil {
		c.Params = cloneValue(c.Params).(map[string]any)
	}
	return c
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Equal compares identifiers and parameters.
func (c Codec) Equal(o Codec) bool {
	if c.ID != o.ID {
		return false
	}
	if len(c.Params) == 0 && len(o.Params) == 0 {
		return true
	}
	return reflect.DeepEqual(normalizeParams(c.Params), normalizeParams(o.Params))
}

// normalizeParams routes params through JSON so that values built in Go
// (e.g. int 5) compare equal to decoded ones (json.Number "5").
func normalizeParams(p map[string]any) map[string]any {
	data, err := base.MarshalCompact(p)
	if err != nil {
		return p
	}
	var out map[string]any
	if err := base.DecodeNumbers(data, &out); err != nil {
		return p
	}
	return out
}

func (c Codec) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	if c.ID == "" {
		return nil, errors.New("codec configuration has no id")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	id, err := base.MarshalCompact(c.ID)
	if err != nil {
		return nil, err
	}
	buf.Write(id)

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		if k == "id" {
			return nil, errors.Newf("codec %q has a parameter named id", c.ID)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		name, err := base.MarshalCompact(k)
		if err != nil {
			return nil, err
		}
		val, err := base.MarshalCompact(c.Params[k])
		if err != nil {
			return nil, errors.Wrapf(err, "codec %q parameter %q", c.ID, k)
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Codec) UnmarshalJSON(d []byte) error {
	var fields map[string]any
	if err := base.DecodeNumbers(d, &fields); err != nil {
		return errors.Wrapf(err, "codec configuration must be an object")
	}
	if fields == nil {
		return errors.New("codec configuration must be an object, got null")
	}
	id, ok := fields["id"].(string)
	if !ok || id == "" {
		return errors.Newf("codec configuration %s has no string id", d)
	}
	delete(fields, "id")
	raw, err := base.Compact(d)
	if err != nil {
		return err
	}
	*c = Codec{ID: id, Params: fields, raw: raw}
	if len(c.Params) == 0 {
		c.Params = nil
	}
	return nil
}

func codecsEqual(a, b *Codec) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func filtersEqual(a, b []Codec) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, Codec.Equal)
}
