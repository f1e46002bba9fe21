// Package format encodes and decodes the per-file variants ("formats") a
// zinc object may be stored under: raw bytes, and an optional gzip variant.
package format

import (
	"bytes"
	"compress/gzip"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Name identifies a recognized object encoding.
type Name string

// Recognized formats. Raw is always present for every file; Gzip is written
// only when it strictly reduces size.
const (
	Raw  Name = "raw"
	Gzip Name = "gz"
)

// Allowed reports whether n is a format zinc knows how to encode/decode.
func Allowed(n Name) bool {
	return n == Raw || n == Gzip
}

// Extension returns the path suffix used for the on-disk/on-object variant
// of a format, or "" for raw (which has no suffix).
func Extension(n Name) string {
	if n == Gzip {
		return "gz"
	}
	return ""
}

// Policy controls when the gzip variant is written alongside raw.
// MinRatio is the largest (encodedSize / rawSize) ratio at which the gzip
// variant is kept; the default CompressIfSmaller keeps it on any reduction.
type Policy struct {
	// MinRatio is the maximum allowed ratio of gzipped size to raw size for
	// the gzip variant to be worth keeping. 1.0 means "any reduction".
	MinRatio float64
}

// CompressIfSmaller is the default compression policy: keep gzip whenever it
// is strictly smaller than raw, regardless of the margin.
var CompressIfSmaller = Policy{MinRatio: 1.0}

// EncodeGzip deterministically gzip-encodes b: deflate, with mtime zeroed so
// repeated runs over identical input produce byte-identical output (and
// therefore the same sha for the encoded blob).
func EncodeGzip(b []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize gzip writer")
	}
	w.ModTime = time.Unix(0, 0)
	w.OS = 0xff // unknown, avoids embedding a platform byte

	if _, err := w.Write(b); err != nil {
		return nil, errors.Wrap(err, "could not gzip-encode content")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finalize gzip stream")
	}

	return buf.Bytes(), nil
}

// Worthwhile reports whether, under policy p, a gzip encoding of the given
// sizes should be kept as a stored variant.
func (p Policy) Worthwhile(rawSize, gzipSize int64) bool {
	if gzipSize >= rawSize {
		return false
	}
	return float64(gzipSize) <= float64(rawSize)*p.ratio()
}

func (p Policy) ratio() float64 {
	if p.MinRatio <= 0 {
		return 1.0
	}
	return p.MinRatio
}

// DecodeGzip reverses EncodeGzip.
func DecodeGzip(r io.Reader) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read gzip content")
	}
	return gz, nil
}
