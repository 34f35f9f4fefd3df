package av1encoder

import "errors"

const (
	DefaultQuality   = 60
	DefaultTimescale = 1000
)

var (
	// ErrUnavailable is returned by New when built without the libaom tag.
	ErrUnavailable = errors.New("av1encoder: built without libaom")
	// ErrNotStarted is returned when frames are written before Begin.
	ErrNotStarted = errors.New("av1encoder: Begin not called")
	// ErrNoFrames is returned by End when nothing was encoded.
	ErrNoFrames = errors.New("av1encoder: no frames to write")
	// ErrEncode wraps libaom failures.
	ErrEncode = errors.New("av1encoder: encode failed")
)

// quantizer maps a 1-100 quality to libaom's 0-63 quantizer range.
func quantizer(quality int) int {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return (100 - quality) * 63 / 100
}
