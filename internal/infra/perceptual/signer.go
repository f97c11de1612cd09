// Package perceptual computes perceptual signatures of page screenshots so
// that two captures of the same page can be compared without pixel equality.
package perceptual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png" // register PNG decoder

	"github.com/corona10/goimagehash"
)

// ErrInvalidSignature is returned when a stored signature cannot be decoded.
var ErrInvalidSignature = errors.New("invalid perceptual signature")

// PHashSigner signs images with a 64-bit perceptual hash.
// Signatures have the form "p:<16 hex digits>".
type PHashSigner struct{}

// NewPHashSigner returns a signer using goimagehash's PerceptionHash.
func NewPHashSigner() *PHashSigner {
	return &PHashSigner{}
}

// Sign decodes an encoded image and returns its perceptual signature.
func (PHashSigner) Sign(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perception hash: %w", err)
	}
	return hash.ToString(), nil
}

// Distance returns the Hamming distance between two signatures.
func (PHashSigner) Distance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSignature, a, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSignature, b, err)
	}

	d, err := ha.Distance(hb)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return d, nil
}
