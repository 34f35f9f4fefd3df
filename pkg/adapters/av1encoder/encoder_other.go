//go:build !libaom

// Package av1encoder encodes AV1 video with libaom into fragmented MP4.
package av1encoder

import (
	"image"

	"github.com/user/framefusion/pkg/ports"
)

// Available reports whether the package was built with libaom.
func Available() bool {
	return false
}

// Encoder is unusable without libaom.
type Encoder struct{}

// New always fails without the libaom build tag.
func New() (*Encoder, error) {
	return nil, ErrUnavailable
}

func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	return ErrUnavailable
}

func (e *Encoder) EncodeFrame(img image.Image, timestampMs int) error {
	return ErrUnavailable
}

func (e *Encoder) End() ([]byte, error) {
	return nil, ErrUnavailable
}

var _ ports.VideoEncoder = (*Encoder)(nil)
