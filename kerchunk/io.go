package kerchunk

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// CompressedSuffix marks documents stored zstd compressed.
const CompressedSuffix = ".zst"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Marshal encodes refs as compact JSON with sorted keys. The output for a
// given document is always the same, so it can be compared byte for byte.
func Marshal(refs *Refs) ([]byte, error) {
	if refs.Refs == nil {
		return base.MarshalCompact(&Refs{Version: refs.Version, Refs: map[string]json.RawMessage{}})
	}
	return base.MarshalCompact(refs)
}

// MaxDocumentSize bounds the decompressed size of a document read by
// Unmarshal, ReadRefs and ReadRefsFile.
const MaxDocumentSize = 1 << 30

// Unmarshal decodes a document, decompressing it first if it starts with
// the zstd frame magic. Compressed documents expanding beyond
// MaxDocumentSize are rejected.
func Unmarshal(data []byte) (*Refs, error) {
	return UnmarshalLimit(data, MaxDocumentSize)
}

// UnmarshalLimit is Unmarshal with a custom bound on the decompressed size.
func UnmarshalLimit(data []byte, maxSize uint64) (*Refs, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		if maxSize == 0 {
			return nil, errors.New("document size limit must be positive")
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxSize))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "decompressing document (limit %s)", humanize.IBytes(maxSize)), ErrInvalidReference)
		}
	}
	var refs Refs
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, invalidf("%v", err)
	}
	return &refs, nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// WriteRefs stores refs under key in bucket, compressing it when key ends
// in ".zst".
func WriteRefs(ctx context.Context, bucket *blob.Bucket, key string, refs *Refs) error {
	data, err := Marshal(refs)
	if err != nil {
		return err
	}
	contentType := "application/json"
	if strings.HasSuffix(key, CompressedSuffix) {
		if data, err = compress(data); err != nil {
			return err
		}
		contentType = "application/zstd"
	}
	if err := bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return errors.Wrapf(err, "writing references to %q", key)
	}
	return nil
}

// ReadRefs loads the document stored under key in bucket.
func ReadRefs(ctx context.Context, bucket *blob.Bucket, key string) (*Refs, error) {
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.Wrapf(os.ErrNotExist, "reading references from %q", key)
		}
		return nil, errors.Wrapf(err, "reading references from %q", key)
	}
	refs, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", key)
	}
	return refs, nil
}

// WriteRefsFile writes refs to a local file, creating its directory.
func WriteRefsFile(ctx context.Context, path string, refs *Refs) error {
	bucket, key, err := openFile(path, true)
	if err != nil {
		return err
	}
	defer bucket.Close()
	return WriteRefs(ctx, bucket, key, refs)
}

// ReadRefsFile reads a document from a local file.
func ReadRefsFile(ctx context.Context, path string) (*Refs, error) {
	bucket, key, err := openFile(path, false)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()
	return ReadRefs(ctx, bucket, key)
}

// openFile opens the directory of path as a bucket and returns the key of
// the file within it.
func openFile(path string, create bool) (*blob.Bucket, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	dir, name := filepath.Split(abs)
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", errors.Wrapf(err, "creating %s", dir)
		}
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening %s", dir)
	}
	return bucket, name, nil
}
