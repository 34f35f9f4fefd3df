package extractor

import (
	"fmt"
	"image"

	"github.com/user/framefusion/pkg/ports"
)

// ImageData is a frame copied into a buffer without row padding.
// Planar formats store their planes back to back.
type ImageData struct {
	Width  int
	Height int
	Format ports.PixelFormat
	Data   []byte
}

// Materialize copies frame into a newly allocated tight buffer.
func Materialize(frame *ports.Frame) (*ImageData, error) {
	data := make([]byte, frame.Format.ImageSize(frame.Width, frame.Height))
	if _, err := CopyFrame(data, frame); err != nil {
		return nil, err
	}
	return &ImageData{
		Width:  frame.Width,
		Height: frame.Height,
		Format: frame.Format,
		Data:   data,
	}, nil
}

// CopyFrame copies frame's visible pixels into dst row by row, skipping the
// padding at the end of each source row. It returns the bytes written.
func CopyFrame(dst []byte, frame *ports.Frame) (int, error) {
	layouts := frame.Format.Planes(frame.Width, frame.Height)
	if layouts == nil {
		return 0, fmt.Errorf("%w: unknown format %q", ErrMalformedFrame, frame.Format)
	}
	if len(frame.Planes) < len(layouts) {
		return 0, fmt.Errorf("%w: %d planes for %s", ErrMalformedFrame, len(frame.Planes), frame.Format)
	}
	if need := frame.Format.ImageSize(frame.Width, frame.Height); len(dst) < need {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, len(dst))
	}

	off := 0
	for i, l := range layouts {
		src := frame.Planes[i]
		stride := l.RowBytes
		if i < len(frame.Strides) && frame.Strides[i] > 0 {
			stride = frame.Strides[i]
		}
		if stride < l.RowBytes || (l.Rows > 0 && len(src) < (l.Rows-1)*stride+l.RowBytes) {
			return off, fmt.Errorf("%w: plane %d is %d bytes with stride %d", ErrMalformedFrame, i, len(src), stride)
		}
		for row := 0; row < l.Rows; row++ {
			copy(dst[off+row*l.RowBytes:off+(row+1)*l.RowBytes], src[row*stride:row*stride+l.RowBytes])
		}
		off += l.RowBytes * l.Rows
	}
	return off, nil
}

// RGBA wraps rgba data as an image without copying.
func (d *ImageData) RGBA() (*image.RGBA, error) {
	if d.Format != ports.PixelFormatRGBA {
		return nil, fmt.Errorf("image data is %s, not rgba", d.Format)
	}
	return &image.RGBA{
		Pix:    d.Data,
		Stride: d.Width * 4,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}, nil
}
