package av1decoder

import "errors"

var (
	// ErrUnavailable is returned by New when built without the libaom tag.
	ErrUnavailable = errors.New("av1decoder: built without libaom")
	// ErrDecode wraps libaom failures.
	ErrDecode = errors.New("av1decoder: decode failed")
	// ErrFlushed is returned when the decoder is used after Flush.
	ErrFlushed = errors.New("av1decoder: decoder already flushed")
)
