package manifests

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint is a content hash of a manifest. Manifests with equal entries
// have equal fingerprints regardless of how they were built.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Short returns the first 12 hex digits.
func (f Fingerprint) Short() string { return f.String()[:12] }

// Fingerprint hashes the manifest entries in grid order.
func (m *ChunkManifest) Fingerprint() Fingerprint {
	buf := make([]byte, 0, 64*m.Len())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Arity()))
	for k, e := range m.All() {
		for _, c := range k {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(c))
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Path)))
		buf = append(buf, e.Path...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Offset))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Length))
	}
	return blake3.Sum256(buf)
}
