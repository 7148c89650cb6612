package manifests

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ChunkEntry references the bytes of one chunk: Length bytes starting at
// Offset inside the file or object identified by Path. The referenced bytes
// are never read here; Offset+Length is trusted to lie within the file.
type ChunkEntry struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Length int64  `json:"length"`
}

// Validate reports whether the entry is well formed.
func (e ChunkEntry) Validate() error {
	if e.Path == "" {
		return errors.Wrapf(ErrManifestFormat, "chunk entry has an empty path")
	}
	if e.Offset < 0 {
		return errors.Wrapf(ErrManifestFormat, "chunk entry for %q has negative offset %d", e.Path, e.Offset)
	}
	if e.Length < 0 {
		return errors.Wrapf(ErrManifestFormat, "chunk entry for %q has negative length %d", e.Path, e.Length)
	}
	return nil
}

// End is the offset one past the last referenced byte.
func (e ChunkEntry) End() int64 { return e.Offset + e.Length }

func (e ChunkEntry) String() string {
	return fmt.Sprintf("%s[%d:%d]", e.Path, e.Offset, e.End())
}
