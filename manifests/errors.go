package manifests

import "github.com/cockroachdb/errors"

// Sentinel errors for manifest and array construction.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrManifestFormat indicates malformed or inconsistent manifest input:
	// bad chunk keys, mixed key arity, negative offsets or lengths.
	ErrManifestFormat = errors.New("manifests: malformed chunk manifest")

	// ErrMetadataMismatch indicates array metadata that is inconsistent in
	// itself or with the arity and grid size of its manifest.
	ErrMetadataMismatch = errors.New("manifests: array metadata does not match manifest")

	// ErrIncompatibleArrays indicates arrays that cannot be combined because
	// they disagree on a field that must be shared.
	ErrIncompatibleArrays = errors.New("manifests: incompatible arrays")
)
