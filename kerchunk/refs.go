package kerchunk

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

// Version is the reference document version written and accepted.
const Version = 1

// Metadata keys of a Zarr V2 hierarchy.
const (
	KeyGroup            = ".zgroup"
	KeyArray            = ".zarray"
	KeyAttrs            = ".zattrs"
	KeyConsolidated     = ".zmetadata"
	AttrArrayDimensions = "_ARRAY_DIMENSIONS"
)

// Refs is a kerchunk reference document. Values of Refs are either JSON
// strings (metadata documents or inline data) or [path, offset, length]
// triples.
type Refs struct {
	Version int                        `json:"version"`
	Refs    map[string]json.RawMessage `json:"refs"`
}

// NewRefs returns an empty version 1 document.
func NewRefs() *Refs {
	return &Refs{Version: Version, Refs: map[string]json.RawMessage{}}
}

// Keys returns the reference keys, sorted.
func (r *Refs) Keys() []string {
	keys := make([]string, 0, len(r.Refs))
	for k := range r.Refs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetString stores s as a JSON string value.
func (r *Refs) SetString(key, s string) error {
	raw, err := base.MarshalCompact(s)
	if err != nil {
		return err
	}
	r.Refs[key] = raw
	return nil
}

// String returns the value of key if it is a JSON string.
func (r *Refs) String(key string) (string, bool) {
	raw, ok := r.Refs[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// SetChunk stores a [path, offset, length] reference.
func (r *Refs) SetChunk(key string, e manifests.ChunkEntry) error {
	raw, err := base.MarshalCompact([]any{e.Path, e.Offset, e.Length})
	if err != nil {
		return err
	}
	r.Refs[key] = raw
	return nil
}

// Chunk returns the value of key if it is a [path, offset, length] reference.
func (r *Refs) Chunk(key string) (manifests.ChunkEntry, bool) {
	raw, ok := r.Refs[key]
	if !ok {
		return manifests.ChunkEntry{}, false
	}
	e, kind, err := decodeChunkRef(raw)
	if err != nil || kind != refTriple {
		return manifests.ChunkEntry{}, false
	}
	return e, true
}

// Equal compares documents value by value after compaction.
func (r *Refs) Equal(o *Refs) bool {
	if r.Version != o.Version || len(r.Refs) != len(o.Refs) {
		return false
	}
	for k, v := range r.Refs {
		ov, ok := o.Refs[k]
		if !ok {
			return false
		}
		a, err1 := base.Compact(v)
		b, err2 := base.Compact(ov)
		if err1 != nil || err2 != nil || string(a) != string(b) {
			return false
		}
	}
	return true
}

type refKind int

const (
	refTriple refKind = iota
	refInline
	refWholeFile
)

// decodeChunkRef classifies a chunk value: a [path, offset, length] triple,
// inline data (a JSON string), or a [path] reference to a whole file.
func decodeChunkRef(raw json.RawMessage) (manifests.ChunkEntry, refKind, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		return manifests.ChunkEntry{}, refInline, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return manifests.ChunkEntry{}, 0, errors.Newf("chunk reference must be a string or a list, got %s", raw)
	}
	var e manifests.ChunkEntry
	switch len(parts) {
	case 1:
		if err := json.Unmarshal(parts[0], &e.Path); err != nil {
			return e, 0, errors.Newf("chunk reference path must be a string, got %s", parts[0])
		}
		return e, refWholeFile, nil
	case 3:
		if err := json.Unmarshal(parts[0], &e.Path); err != nil {
			return e, 0, errors.Newf("chunk reference path must be a string, got %s", parts[0])
		}
		if err := json.Unmarshal(parts[1], &e.Offset); err != nil {
			return e, 0, errors.Newf("chunk reference offset must be an integer, got %s", parts[1])
		}
		if err := json.Unmarshal(parts[2], &e.Length); err != nil {
			return e, 0, errors.Newf("chunk reference length must be an integer, got %s", parts[2])
		}
		return e, refTriple, nil
	default:
		return e, 0, errors.Newf("chunk reference must have 1 or 3 elements, got %d", len(parts))
	}
}
