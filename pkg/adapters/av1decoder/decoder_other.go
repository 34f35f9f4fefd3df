//go:build !libaom

// Package av1decoder decodes AV1 temporal units with libaom.
package av1decoder

import "github.com/user/framefusion/pkg/ports"

// Available reports whether the package was built with libaom.
func Available() bool {
	return false
}

// Decoder is unusable without libaom.
type Decoder struct{}

// New always fails without the libaom build tag.
func New(threads int) (*Decoder, error) {
	return nil, ErrUnavailable
}

func (d *Decoder) Decode(pkt *ports.Packet) ([]*ports.Frame, error) {
	return nil, ErrUnavailable
}

func (d *Decoder) Flush() ([]*ports.Frame, error) {
	return nil, ErrUnavailable
}

var _ ports.Decoder = (*Decoder)(nil)
