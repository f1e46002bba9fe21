// Package hash computes the content address of file bytes.
//
// Zinc objects are addressed by streaming SHA-1, hex-encoded and lowercase.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// Sum streams r through SHA-1 and returns the lowercase hex digest.
// It never buffers the whole input in memory.
func Sum(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "could not hash content")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TeeSum wraps w so that bytes written through it are simultaneously hashed.
// Call Sum after all writes to retrieve the digest of everything written.
type TeeSum struct {
	io.Writer
	sum func() string
}

// NewTeeSum returns a writer that forwards to w while accumulating a SHA-1
// digest of everything written to it.
func NewTeeSum(w io.Writer) *TeeSum {
	h := sha1.New()
	return &TeeSum{
		Writer: io.MultiWriter(w, h),
		sum:    func() string { return hex.EncodeToString(h.Sum(nil)) },
	}
}

// Sum returns the digest of bytes written so far.
func (t *TeeSum) Sum() string {
	return t.sum()
}
