// Command virtualizarr inspects, combines and re-encodes kerchunk reference
// documents, and classifies source files by format.
package main

import (
	"context"
	"fmt"
	"os"

	virtualizarr "github.com/TuSKan/go-virtualizarr"
	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/kerchunk"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid command line arguments.
	ExitInvalidArgs = 2

	// ExitInvalidReference indicates a malformed reference document.
	ExitInvalidReference = 3

	// ExitUnrecognizedFormat indicates a file of unknown format, or one
	// without a backend.
	ExitUnrecognizedFormat = 4

	// ExitIncompatible indicates arrays or datasets that cannot be combined.
	ExitIncompatible = 5

	// ExitNotFound indicates a missing file or variable.
	ExitNotFound = 6
)

func main() {
	cmd := newCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, errUsage):
		return ExitInvalidArgs
	case errors.Is(err, kerchunk.ErrInvalidReference),
		errors.Is(err, manifests.ErrManifestFormat),
		errors.Is(err, manifests.ErrMetadataMismatch):
		return ExitInvalidReference
	case errors.Is(err, kerchunk.ErrUnrecognizedFormat),
		errors.Is(err, virtualizarr.ErrNoBackend):
		return ExitUnrecognizedFormat
	case errors.Is(err, manifests.ErrIncompatibleArrays),
		errors.Is(err, dataset.ErrDimensionMismatch):
		return ExitIncompatible
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, dataset.ErrVariableNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}
