// Package mjpegwriter writes Motion JPEG video in fragmented MP4.
//
// Every frame is a standalone JPEG; KeyframeInterval only controls which
// samples carry the sync flag and where fragments start, so seeking
// behaves like a GOP-structured stream.
package mjpegwriter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/user/framefusion/pkg/adapters/fmp4"
	"github.com/user/framefusion/pkg/ports"
)

const (
	DefaultQuality   = 90
	DefaultTimescale = 1000
)

var (
	// ErrNotStarted is returned when frames are written before Begin.
	ErrNotStarted = errors.New("mjpegwriter: Begin not called")
	// ErrNoFrames is returned by End when nothing was encoded.
	ErrNoFrames = errors.New("mjpegwriter: no frames to write")
	// ErrNonMonotonic is returned for a timestamp not after the previous one.
	ErrNonMonotonic = errors.New("mjpegwriter: timestamps must increase")
)

// Writer implements ports.VideoEncoder.
type Writer struct {
	width     int
	height    int
	fps       float64
	quality   int
	gop       int
	timescale uint32
	started   bool

	samples []fmp4.Sample
}

// New creates a new Writer.
func New() *Writer {
	return &Writer{}
}

// Begin starts a new video, discarding any previous one.
func (w *Writer) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	if width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		return fmt.Errorf("mjpegwriter: invalid size %dx%d", width, height)
	}
	if fps <= 0 {
		return fmt.Errorf("mjpegwriter: invalid fps %v", fps)
	}

	w.width = width
	w.height = height
	w.fps = fps
	w.quality = opts.Quality
	if w.quality <= 0 || w.quality > 100 {
		w.quality = DefaultQuality
	}
	w.gop = max(opts.KeyframeInterval, 1)
	w.timescale = opts.Timescale
	if w.timescale == 0 {
		w.timescale = DefaultTimescale
	}
	w.samples = nil
	w.started = true
	return nil
}

// EncodeFrame compresses img and queues it at timestampMs.
func (w *Writer) EncodeFrame(img image.Image, timestampMs int) error {
	if !w.started {
		return ErrNotStarted
	}
	if b := img.Bounds(); b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("mjpegwriter: frame is %dx%d, video is %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	decodeTime := uint64(timestampMs) * uint64(w.timescale) / 1000
	if n := len(w.samples); n > 0 && decodeTime <= w.samples[n-1].DecodeTime {
		return fmt.Errorf("%w: %d ms", ErrNonMonotonic, timestampMs)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("encode JPEG: %w", err)
	}
	w.samples = append(w.samples, fmp4.Sample{
		Data:       buf.Bytes(),
		DecodeTime: decodeTime,
		Keyframe:   len(w.samples)%w.gop == 0,
	})
	return nil
}

// End writes ftyp, moov and one moof/mdat pair per keyframe group.
func (w *Writer) End() ([]byte, error) {
	if !w.started {
		return nil, ErrNotStarted
	}
	w.started = false
	if len(w.samples) == 0 {
		return nil, ErrNoFrames
	}

	data, err := fmp4.Write(fmp4.Track{
		Width:       w.width,
		Height:      w.height,
		Timescale:   w.timescale,
		FPS:         w.fps,
		SampleEntry: "jpeg",
	}, w.samples)
	w.samples = nil
	return data, err
}

var _ ports.VideoEncoder = (*Writer)(nil)
