// Package sha256 computes content digests for crawl output documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Writer hashes and counts everything written through it.
type Writer struct {
	dst io.Writer
	h   hash.Hash
	n   int64
}

// NewWriter wraps dst; a nil dst only hashes.
func NewWriter(dst io.Writer) *Writer {
	if dst == nil {
		dst = io.Discard
	}
	return &Writer{dst: dst, h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.h.Write(p[:n])
	w.n += int64(n)
	return n, err
}

// Digest returns the hex digest of the bytes written so far.
func (w *Writer) Digest() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int64 {
	return w.n
}
