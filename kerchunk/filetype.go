package kerchunk

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

// FileType identifies the format of a source file.
type FileType string

const (
	NetCDF3  FileType = "netCDF3"
	// NetCDF4 covers any HDF5 file.
	NetCDF4  FileType = "netCDF4"
	GRIB     FileType = "grib"
	TIFF     FileType = "tiff"
	FITS     FileType = "fits"
	Zarr     FileType = "zarr"
	// Kerchunk is a reference document, plain or zstd compressed.
	Kerchunk FileType = "kerchunk"
)

func (t FileType) String() string { return string(t) }

// ParseFileType accepts the names returned by FileType.String, plus "hdf5"
// as an alias of NetCDF4.
func ParseFileType(s string) (FileType, error) {
	switch ft := FileType(s); ft {
	case NetCDF3, NetCDF4, GRIB, TIFF, FITS, Zarr, Kerchunk:
		return ft, nil
	case "hdf5":
		return NetCDF4, nil
	}
	return "", errors.Wrapf(ErrUnrecognizedFormat, "unknown file type %q", s)
}

// headerSize is the number of leading bytes DetectFileType needs.
const headerSize = 8

// hdf5Offsets are the positions where an HDF5 superblock may start; files
// with a user block place it at a power of two from 512 on.
var hdf5Offsets = []int64{0, 512, 1024, 2048}

var hdf5Magic = []byte("\x89HDF\r\n\x1a\n")

var magics = []struct {
	prefix []byte
	ft     FileType
}{
	{[]byte("CDF\x01"), NetCDF3},
	{[]byte("CDF\x02"), NetCDF3},
	{[]byte("CDF\x05"), NetCDF3},
	{hdf5Magic, NetCDF4},
	{[]byte("GRIB"), GRIB},
	{[]byte("II*\x00"), TIFF},
	{[]byte("MM\x00*"), TIFF},
	{[]byte("II+\x00"), TIFF},
	{[]byte("MM\x00+"), TIFF},
	{[]byte("SIMPLE"), FITS},
	{zstdMagic, Kerchunk},
	{[]byte("{"), Kerchunk},
}

// DetectFileType classifies a file from its first bytes.
func DetectFileType(header []byte) (FileType, error) {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.prefix) {
			return m.ft, nil
		}
	}
	return "", errors.Wrapf(ErrUnrecognizedFormat, "header %q", header)
}

// SniffFileType classifies the object key of bucket. Only the leading bytes
// of the object are read, plus those at the alternative HDF5 superblock
// offsets when nothing else matches. A key that cannot be read but under
// which Zarr metadata is stored is reported as Zarr.
func SniffFileType(ctx context.Context, bucket *blob.Bucket, key string) (FileType, error) {
	header, size, err := readRange(ctx, bucket, key, 0, headerSize)
	if err != nil {
		if isZarrStore(ctx, bucket, key) {
			return Zarr, nil
		}
		return "", err
	}
	if ft, err := DetectFileType(header); err == nil {
		return ft, nil
	}
	for _, off := range hdf5Offsets[1:] {
		if off+int64(len(hdf5Magic)) > size {
			break
		}
		b, _, err := readRange(ctx, bucket, key, off, int64(len(hdf5Magic)))
		if err != nil {
			return "", err
		}
		if bytes.Equal(b, hdf5Magic) {
			return NetCDF4, nil
		}
	}
	return "", errors.Wrapf(ErrUnrecognizedFormat, "%q", key)
}

func isZarrStore(ctx context.Context, bucket *blob.Bucket, key string) bool {
	for _, meta := range []string{KeyGroup, KeyArray} {
		if ok, err := bucket.Exists(ctx, key+"/"+meta); err == nil && ok {
			return true
		}
	}
	return false
}

// readRange returns n bytes of key from off, and the object's size.
func readRange(ctx context.Context, bucket *blob.Bucket, key string, off, n int64) ([]byte, int64, error) {
	r, err := bucket.NewRangeReader(ctx, key, off, n, nil)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %q", key)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %q", key)
	}
	return b, r.Size(), nil
}

// SniffFile classifies a local file or Zarr directory.
func SniffFile(ctx context.Context, path string) (FileType, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	bucket, err := fileblob.OpenBucket(filepath.Dir(abs), nil)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", filepath.Dir(abs))
	}
	defer bucket.Close()
	return SniffFileType(ctx, bucket, filepath.Base(abs))
}
