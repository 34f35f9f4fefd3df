// Package libav implements ports.Backend with FFmpeg through go-astiav.
//
// Build with -tags libav and the FFmpeg development libraries installed;
// without the tag every constructor returns ErrUnavailable.
package libav

import "errors"

var (
	// ErrUnavailable is returned when the package was built without libav.
	ErrUnavailable = errors.New("libav: not available in this build")
	// ErrNoStream is returned for a stream index the container does not have.
	ErrNoStream = errors.New("libav: no such stream")
	// ErrNoDecoder is returned when FFmpeg has no decoder for the codec.
	ErrNoDecoder = errors.New("libav: no decoder for codec")
	// ErrFlushed is returned when a decoder is used after Flush.
	ErrFlushed = errors.New("libav: decoder already flushed")
	// ErrNotOpened is returned when decoders are requested before OpenDemuxer.
	ErrNotOpened = errors.New("libav: no demuxer opened")
)
