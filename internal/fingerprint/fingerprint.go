// Package fingerprint computes the SHA-256 content hash used to decide
// whether a save changed since its last backup.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/raoulx24/save-archiver/internal/fs"
)

const Size = sha256.Size

// Fingerprint is compared for equality only.
type Fingerprint [Size]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Short is the first 12 hex digits, for logs.
func (f Fingerprint) Short() string { return f.String()[:12] }

// IsZero reports an unset fingerprint. No real content hashes to zero.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

func (f Fingerprint) Equal(o Fingerprint) bool { return f == o }

// Parse decodes a hex fingerprint.
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("decoding fingerprint: %w", err)
	}
	if len(b) != Size {
		return f, fmt.Errorf("fingerprint has %d bytes, want %d", len(b), Size)
	}
	copy(f[:], b)
	return f, nil
}

// Bytes fingerprints an in-memory buffer.
func Bytes(b []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(b))
}

// Of fingerprints everything r yields.
func Of(r io.Reader) (Fingerprint, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprint{}, err
	}
	return h.Sum(), nil
}

// File fingerprints a live save, retrying while it is locked or mid-write.
// Exhausted retries surface as fs.ErrTransient.
func File(ctx context.Context, f fs.FS, p fs.Policy, path string) (Fingerprint, error) {
	var fp Fingerprint
	err := fs.ReadStable(ctx, f, p, path, func(r fs.Reader) error {
		got, err := Of(r)
		if err != nil {
			return err
		}
		fp = got
		return nil
	})
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return fp, nil
}

// Hasher accumulates a fingerprint while data is written through it.
type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

func (h *Hasher) Sum() Fingerprint {
	var f Fingerprint
	copy(f[:], h.h.Sum(nil))
	return f
}
