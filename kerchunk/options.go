package kerchunk

import "github.com/TuSKan/go-virtualizarr/internal/base"

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// InlinePolicy selects how DatasetFromRefs treats chunk values that are not
// [path, offset, length] references: inline data strings and whole-file
// [path] references.
type InlinePolicy int

const (
	// InlineReject fails the decode with ErrInvalidReference.
	InlineReject InlinePolicy = iota
	// InlineSkip drops the chunk from the manifest and logs it.
	InlineSkip
)

func (p InlinePolicy) String() string {
	switch p {
	case InlineReject:
		return "reject"
	case InlineSkip:
		return "skip"
	default:
		return "unknown"
	}
}

type decodeOptions struct {
	inline InlinePolicy
	logger Logger
}

// DecodeOption configures DatasetFromRefs.
type DecodeOption func(*decodeOptions)

// WithInlinePolicy sets the treatment of inline chunk values.
func WithInlinePolicy(p InlinePolicy) DecodeOption {
	return func(o *decodeOptions) { o.inline = p }
}

// WithLogger sets the logger used to report skipped chunks.
func WithLogger(l Logger) DecodeOption {
	return func(o *decodeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newDecodeOptions(opts []DecodeOption) decodeOptions {
	o := decodeOptions{inline: InlineReject, logger: base.DefaultLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
