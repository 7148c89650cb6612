package kerchunk

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidReference indicates a malformed reference document.
	ErrInvalidReference = errors.New("kerchunk: invalid reference document")

	// ErrUnrecognizedFormat indicates a file whose format could not be
	// determined from its header.
	ErrUnrecognizedFormat = errors.New("kerchunk: unrecognized file format")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidReference, format, args...)
}
