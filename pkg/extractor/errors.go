package extractor

import "errors"

var (
	// ErrNoVideoStream is returned by Open when the source has no video stream.
	ErrNoVideoStream = errors.New("extractor: no video stream")
	// ErrUnsupportedPixelFormat is returned by Open for an unknown output format.
	ErrUnsupportedPixelFormat = errors.New("extractor: unsupported pixel format")
	// ErrInvalidOptions is returned by Open when options are out of range.
	ErrInvalidOptions = errors.New("extractor: invalid options")
	// ErrInvalidTimeBase is returned by Open when the video stream has no usable time base.
	ErrInvalidTimeBase = errors.New("extractor: invalid time base")
	// ErrNoMatchingFrame is returned when a time cannot be resolved within the retry budget.
	ErrNoMatchingFrame = errors.New("extractor: no matching frame")
	// ErrBusy is returned when a call overlaps another call on the same Extractor.
	ErrBusy = errors.New("extractor: another operation is in progress")
	// ErrDisposed is returned by calls made after Dispose.
	ErrDisposed = errors.New("extractor: disposed")
	// ErrBufferTooSmall is returned by CopyFrame when dst cannot hold the image.
	ErrBufferTooSmall = errors.New("extractor: buffer too small")
	// ErrMalformedFrame is returned when a frame's planes do not match its format.
	ErrMalformedFrame = errors.New("extractor: malformed frame")
)
