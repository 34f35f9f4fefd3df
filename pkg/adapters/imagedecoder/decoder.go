// Package imagedecoder decodes intra-only image codecs (Motion JPEG, PNG)
// carried as video samples.
package imagedecoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/user/framefusion/pkg/adapters/codecdetect"
	"github.com/user/framefusion/pkg/ports"
)

var (
	// ErrUnsupportedCodec is returned by New for codecs other than JPEG and PNG.
	ErrUnsupportedCodec = errors.New("imagedecoder: unsupported codec")
	// ErrFlushed is returned when the decoder is used after Flush.
	ErrFlushed = errors.New("imagedecoder: decoder already flushed")
)

// Decoder implements ports.Decoder. Every packet holds one complete image,
// so frames come out with no delay.
type Decoder struct {
	decode  func([]byte) (image.Image, error)
	flushed bool
}

// New creates a decoder for codec.
func New(codec codecdetect.Codec) (*Decoder, error) {
	switch codec {
	case codecdetect.CodecJPEG:
		return &Decoder{decode: func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) }}, nil
	case codecdetect.CodecPNG:
		return &Decoder{decode: func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) }}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
}

// Decode decodes the image in pkt.
func (d *Decoder) Decode(pkt *ports.Packet) ([]*ports.Frame, error) {
	if d.flushed {
		return nil, ErrFlushed
	}
	img, err := d.decode(pkt.Data)
	if err != nil {
		return nil, fmt.Errorf("decode image at pts %d: %w", pkt.PTS, err)
	}
	frame := FrameFromImage(img)
	frame.PTS = pkt.PTS
	frame.Duration = pkt.Duration
	return []*ports.Frame{frame}, nil
}

// Flush marks the decoder finished. It never holds frames back.
func (d *Decoder) Flush() ([]*ports.Frame, error) {
	if d.flushed {
		return nil, ErrFlushed
	}
	d.flushed = true
	return nil, nil
}

// FrameFromImage wraps img's pixels as a frame without copying when the
// layout has a matching pixel format, and converts to rgba otherwise.
func FrameFromImage(img image.Image) *ports.Frame {
	b := img.Bounds()
	frame := &ports.Frame{Width: b.Dx(), Height: b.Dy()}

	switch m := img.(type) {
	case *image.YCbCr:
		if f, ok := ycbcrFormat(m.SubsampleRatio); ok && b.Min == (image.Point{}) {
			frame.Format = f
			frame.Planes = [][]byte{m.Y, m.Cb, m.Cr}
			frame.Strides = []int{m.YStride, m.CStride, m.CStride}
			return frame
		}
	case *image.Gray:
		if b.Min == (image.Point{}) {
			frame.Format = ports.PixelFormatGray
			frame.Planes = [][]byte{m.Pix}
			frame.Strides = []int{m.Stride}
			return frame
		}
	case *image.RGBA:
		if b.Min == (image.Point{}) {
			frame.Format = ports.PixelFormatRGBA
			frame.Planes = [][]byte{m.Pix}
			frame.Strides = []int{m.Stride}
			return frame
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	frame.Format = ports.PixelFormatRGBA
	frame.Planes = [][]byte{rgba.Pix}
	frame.Strides = []int{rgba.Stride}
	return frame
}

func ycbcrFormat(r image.YCbCrSubsampleRatio) (ports.PixelFormat, bool) {
	switch r {
	case image.YCbCrSubsampleRatio420:
		return ports.PixelFormatYUVJ420P, true
	case image.YCbCrSubsampleRatio422:
		return ports.PixelFormatYUVJ422P, true
	case image.YCbCrSubsampleRatio444:
		return ports.PixelFormatYUVJ444P, true
	default:
		return "", false
	}
}

var _ ports.Decoder = (*Decoder)(nil)
