package ports

import (
	"fmt"

	"github.com/user/framefusion/pkg/timebase"
)

// MediaType identifies the kind of content carried by a stream.
type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeSubtitle MediaType = "subtitle"
	MediaTypeData     MediaType = "data"
)

// PixelFormat names a frame's memory layout.
type PixelFormat string

const (
	PixelFormatRGBA     PixelFormat = "rgba"
	PixelFormatBGRA     PixelFormat = "bgra"
	PixelFormatARGB     PixelFormat = "argb"
	PixelFormatRGB24    PixelFormat = "rgb24"
	PixelFormatGray     PixelFormat = "gray"
	PixelFormatYUV420P  PixelFormat = "yuv420p"
	PixelFormatYUVJ420P PixelFormat = "yuvj420p"
	PixelFormatYUVJ422P PixelFormat = "yuvj422p"
	PixelFormatYUVJ444P PixelFormat = "yuvj444p"
)

// PlaneLayout describes one plane of a tightly packed image.
type PlaneLayout struct {
	RowBytes int
	Rows     int
}

// ParsePixelFormat parses a pixel format name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	f := PixelFormat(s)
	if _, ok := f.subsampling(); !ok {
		return "", fmt.Errorf("unknown pixel format %q", s)
	}
	return f, nil
}

// IsPacked reports whether all components share a single plane.
func (f PixelFormat) IsPacked() bool {
	return f.BytesPerPixel() > 0
}

// BytesPerPixel returns the pixel size of a packed format, or 0 for planar ones.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA, PixelFormatBGRA, PixelFormatARGB:
		return 4
	case PixelFormatRGB24:
		return 3
	case PixelFormatGray:
		return 1
	default:
		return 0
	}
}

// FullRange reports whether luma spans 0-255 (JPEG range) for YUV formats.
func (f PixelFormat) FullRange() bool {
	switch f {
	case PixelFormatYUVJ420P, PixelFormatYUVJ422P, PixelFormatYUVJ444P:
		return true
	default:
		return false
	}
}

// Planes returns the tight layout of each plane for a width x height image.
func (f PixelFormat) Planes(width, height int) []PlaneLayout {
	if bpp := f.BytesPerPixel(); bpp > 0 {
		return []PlaneLayout{{RowBytes: width * bpp, Rows: height}}
	}
	sub, ok := f.subsampling()
	if !ok {
		return nil
	}
	cw := (width + sub.x - 1) / sub.x
	ch := (height + sub.y - 1) / sub.y
	return []PlaneLayout{
		{RowBytes: width, Rows: height},
		{RowBytes: cw, Rows: ch},
		{RowBytes: cw, Rows: ch},
	}
}

// ImageSize returns the size of a tight buffer for a width x height image.
func (f PixelFormat) ImageSize(width, height int) int {
	n := 0
	for _, p := range f.Planes(width, height) {
		n += p.RowBytes * p.Rows
	}
	return n
}

type chroma struct{ x, y int }

func (f PixelFormat) subsampling() (chroma, bool) {
	switch f {
	case PixelFormatRGBA, PixelFormatBGRA, PixelFormatARGB, PixelFormatRGB24, PixelFormatGray:
		return chroma{}, true
	case PixelFormatYUV420P, PixelFormatYUVJ420P:
		return chroma{2, 2}, true
	case PixelFormatYUVJ422P:
		return chroma{2, 1}, true
	case PixelFormatYUVJ444P:
		return chroma{1, 1}, true
	default:
		return chroma{}, false
	}
}

// StreamDescriptor describes one stream of an opened source.
// Duration is expressed in TimeBase units; 0 means unknown.
type StreamDescriptor struct {
	Index       int
	MediaType   MediaType
	Codec       string
	Width       int
	Height      int
	TimeBase    timebase.Rational
	Duration    int64
	PixelFormat PixelFormat
	FrameRate   float64
}

// DurationSeconds returns the stream duration in seconds.
func (d StreamDescriptor) DurationSeconds() float64 {
	return d.TimeBase.PTSToTime(d.Duration)
}

// Packet is a compressed unit read from a demuxer.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Keyframe    bool
	Data        []byte
}

// Frame is a decoded or filtered picture.
//
// Planes[i] holds Strides[i] bytes per row; a stride may be larger than
// the row's visible bytes.
type Frame struct {
	PTS      int64
	Duration int64
	Width    int
	Height   int
	Format   PixelFormat
	Planes   [][]byte
	Strides  []int
}
