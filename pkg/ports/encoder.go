package ports

import (
	"image"
)

// VideoEncoder writes a sequence of images as a video file.
type VideoEncoder interface {
	// Begin initializes the encoder with the specified dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes a single frame at the specified timestamp.
	EncodeFrame(img image.Image, timestampMs int) error

	// End finalizes encoding and returns the container bytes.
	End() ([]byte, error)
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Quality          int    // Codec quality, 1-100 for JPEG
	KeyframeInterval int    // Frames per GOP; 0 or 1 makes every frame a keyframe
	Timescale        uint32 // Track timescale; 0 picks fps*1000
}
