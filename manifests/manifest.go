package manifests

import (
	"iter"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
)

type manifestEntry struct {
	key   ChunkKey
	entry ChunkEntry
}

// ChunkManifest maps chunk grid keys to the byte ranges holding those chunks.
// A manifest may be sparse: grid cells without an entry hold no data. All
// keys share the same arity. A ChunkManifest is immutable once built; every
// transformation returns a new manifest.
//
// The zero value is an empty manifest.
type ChunkManifest struct {
	arity   int
	entries []manifestEntry // sorted by key
}

// NewChunkManifest builds a manifest from textual chunk keys such as "0.1".
// It fails with ErrManifestFormat if a key does not parse, if keys have mixed
// arity, if two keys name the same grid cell, or if an entry is malformed.
func NewChunkManifest(entries map[string]ChunkEntry) (*ChunkManifest, error) {
	records := make([]manifestEntry, 0, len(entries))
	for s, e := range entries {
		key, err := ParseChunkKey(s)
		if err != nil {
			return nil, err
		}
		records = append(records, manifestEntry{key: key, entry: e})
	}
	return newManifest(records)
}

// NewChunkManifestFromKeys builds a manifest from already decoded keys. The
// keys are copied.
func NewChunkManifestFromKeys(keys []ChunkKey, entries []ChunkEntry) (*ChunkManifest, error) {
	if len(keys) != len(entries) {
		return nil, errors.Wrapf(ErrManifestFormat, "%d keys but %d entries", len(keys), len(entries))
	}
	records := make([]manifestEntry, len(keys))
	for i := range keys {
		for _, c := range keys[i] {
			if c < 0 {
				return nil, errors.Wrapf(ErrManifestFormat, "negative coordinate in chunk key %v", []int(keys[i]))
			}
		}
		records[i] = manifestEntry{key: NewChunkKey(keys[i]...), entry: entries[i]}
	}
	return newManifest(records)
}

// newManifest takes ownership of records.
func newManifest(records []manifestEntry) (*ChunkManifest, error) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].key.Compare(records[j].key) < 0
	})
	m := &ChunkManifest{entries: records}
	for i, r := range records {
		if i == 0 {
			m.arity = r.key.Arity()
		} else if r.key.Arity() != m.arity {
			return nil, errors.Wrapf(ErrManifestFormat,
				"chunk key %q has arity %d, expected %d", r.key, r.key.Arity(), m.arity)
		}
		if i > 0 && records[i-1].key.Compare(r.key) == 0 {
			return nil, errors.Wrapf(ErrManifestFormat, "duplicate chunk key %q", r.key)
		}
		if err := r.entry.Validate(); err != nil {
			return nil, errors.Wrapf(err, "chunk key %q", r.key)
		}
	}
	return m, nil
}

// Len returns the number of chunks with an entry.
func (m *ChunkManifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Arity returns the number of coordinates in every key, or zero for an empty
// manifest.
func (m *ChunkManifest) Arity() int {
	if m.Len() == 0 {
		return 0
	}
	return m.arity
}

func (m *ChunkManifest) search(key ChunkKey) (int, bool) {
	return sort.Find(len(m.entries), func(i int) int {
		return key.Compare(m.entries[i].key)
	})
}

// Get returns the entry stored for key.
func (m *ChunkManifest) Get(key ChunkKey) (ChunkEntry, bool) {
	if m.Len() == 0 {
		return ChunkEntry{}, false
	}
	i, ok := m.search(key)
	if !ok {
		return ChunkEntry{}, false
	}
	return m.entries[i].entry, true
}

// Lookup is Get for a textual key.
func (m *ChunkManifest) Lookup(key string) (ChunkEntry, bool) {
	k, err := ParseChunkKey(key)
	if err != nil {
		return ChunkEntry{}, false
	}
	return m.Get(k)
}

// Keys returns all keys in ascending grid order.
func (m *ChunkManifest) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, m.Len())
	for k := range m.All() {
		keys = append(keys, NewChunkKey(k...))
	}
	return keys
}

// All iterates the manifest in ascending grid order.
func (m *ChunkManifest) All() iter.Seq2[ChunkKey, ChunkEntry] {
	return func(yield func(ChunkKey, ChunkEntry) bool) {
		if m == nil {
			return
		}
		for _, r := range m.entries {
			if !yield(r.key, r.entry) {
				return
			}
		}
	}
}

// Dict returns the manifest as a fresh mapping from "."-joined keys to
// entries. Building a manifest from the result reproduces it exactly.
func (m *ChunkManifest) Dict() map[string]ChunkEntry {
	d := make(map[string]ChunkEntry, m.Len())
	for k, e := range m.All() {
		d[k.String()] = e
	}
	return d
}

// RenumberKeys returns a new manifest with the d-th coordinate of every key
// shifted by offsets[d].
func (m *ChunkManifest) RenumberKeys(offsets []int) (*ChunkManifest, error) {
	if m.Len() == 0 {
		return &ChunkManifest{}, nil
	}
	if len(offsets) != m.arity {
		return nil, errors.Wrapf(ErrManifestFormat,
			"got %d offsets for manifest of arity %d", len(offsets), m.arity)
	}
	records := make([]manifestEntry, len(m.entries))
	for i, r := range m.entries {
		key := make(ChunkKey, len(r.key))
		for d, c := range r.key {
			key[d] = c + offsets[d]
			if key[d] < 0 {
				return nil, errors.Wrapf(ErrManifestFormat,
					"renumbering chunk key %q by %v gives a negative coordinate", r.key, offsets)
			}
		}
		records[i] = manifestEntry{key: key, entry: r.entry}
	}
	// A uniform shift preserves order and uniqueness.
	return &ChunkManifest{arity: m.arity, entries: records}, nil
}

// insertAxis returns a new manifest whose keys carry an extra coordinate
// with value coord at position axis.
func (m *ChunkManifest) insertAxis(axis, coord int) *ChunkManifest {
	if m.Len() == 0 {
		return &ChunkManifest{}
	}
	records := make([]manifestEntry, len(m.entries))
	for i, r := range m.entries {
		records[i] = manifestEntry{key: slices.Insert(NewChunkKey(r.key...), axis, coord), entry: r.entry}
	}
	return &ChunkManifest{arity: m.arity + 1, entries: records}
}

// mergeManifests unions manifests whose key sets are disjoint.
func mergeManifests(ms ...*ChunkManifest) (*ChunkManifest, error) {
	n := 0
	for _, m := range ms {
		n += m.Len()
	}
	records := make([]manifestEntry, 0, n)
	for _, m := range ms {
		if m.Len() > 0 {
			records = append(records, m.entries...)
		}
	}
	return newManifest(records)
}

// GridExtent returns, per dimension, one more than the largest coordinate
// present. It is nil for an empty manifest.
func (m *ChunkManifest) GridExtent() []int {
	if m.Len() == 0 {
		return nil
	}
	ext := make([]int, m.arity)
	for k := range m.All() {
		for d, c := range k {
			ext[d] = max(ext[d], c+1)
		}
	}
	return ext
}

// TotalLength sums the lengths of all referenced byte ranges.
func (m *ChunkManifest) TotalLength() int64 {
	var n int64
	for _, e := range m.All() {
		n += e.Length
	}
	return n
}

// Paths returns the distinct source paths, sorted.
func (m *ChunkManifest) Paths() []string {
	var paths []string
	for _, e := range m.All() {
		paths = append(paths, e.Path)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// Equal reports whether both manifests hold the same keys and entries.
func (m *ChunkManifest) Equal(o *ChunkManifest) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i := 0; i < m.Len(); i++ {
		a, b := m.entries[i], o.entries[i]
		if a.key.Compare(b.key) != 0 || a.entry != b.entry {
			return false
		}
	}
	return true
}
