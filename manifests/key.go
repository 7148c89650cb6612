package manifests

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ChunkKey is the position of one chunk in an array's chunk grid, one
// coordinate per dimension. ChunkKeys handed out by a ChunkManifest must not
// be modified.
type ChunkKey []int

// NewChunkKey returns a key for the given grid coordinates.
func NewChunkKey(coords ...int) ChunkKey {
	return slices.Clone(ChunkKey(coords))
}

// ParseChunkKey parses the textual key form used by Zarr V2 stores and
// kerchunk references, e.g. "0.0" or "2.1.3". Both "." and "/" are accepted
// as separators.
func ParseChunkKey(s string) (ChunkKey, error) {
	if s == "" {
		return nil, errors.Wrapf(ErrManifestFormat, "empty chunk key")
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '/'
	})
	// FieldsFunc drops empty fields, so "1..2" would otherwise parse as "1.2".
	if len(parts) != strings.Count(s, ".")+strings.Count(s, "/")+1 {
		return nil, errors.Wrapf(ErrManifestFormat, "invalid chunk key %q", s)
	}
	key := make(ChunkKey, len(parts))
	for i, p := range parts {
		c, err := strconv.Atoi(p)
		// Only the canonical spelling is accepted, so "01" and "1" never
		// name the same chunk.
		if err != nil || c < 0 || strconv.Itoa(c) != p {
			return nil, errors.Wrapf(ErrManifestFormat, "invalid coordinate %q in chunk key %q", p, s)
		}
		key[i] = c
	}
	return key, nil
}

// Arity is the number of dimensions the key addresses.
func (k ChunkKey) Arity() int { return len(k) }

// String returns the key using the "." separator.
func (k ChunkKey) String() string {
	return k.Join(".")
}

// Join generates the textual key using the given separator.
// Example: [1, 4] with separator "." -> "1.4"
// An empty key (0-d array) is "0".
func (k ChunkKey) Join(separator string) string {
	if len(k) == 0 {
		return "0"
	}
	if len(k) == 1 {
		return strconv.Itoa(k[0])
	}

	var sb strings.Builder
	for i, idx := range k {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// Compare orders keys coordinate by coordinate, shorter keys first on ties.
func (k ChunkKey) Compare(o ChunkKey) int {
	return slices.Compare(k, o)
}

// GridShape calculates the number of chunks in each dimension.
// For each dimension i, the number of chunks is ceil(shape[i] / chunks[i]).
func GridShape(shape, chunks []int) []int {
	if len(shape) == 0 || len(chunks) == 0 {
		return []int{} // 0D scalar
	}
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}
