package pixfilter

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/framefusion/pkg/ports"
)

// Convert returns frame in the packed format out. The result never shares
// memory with frame.
func Convert(frame *ports.Frame, out ports.PixelFormat) (*ports.Frame, error) {
	rgba, err := toRGBA(frame)
	if err != nil {
		return nil, err
	}

	w, h := frame.Width, frame.Height
	bpp := out.BytesPerPixel()
	buf := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := buf[y*w*bpp : (y+1)*w*bpp]
		switch out {
		case ports.PixelFormatRGBA:
			copy(dst, src)
		case ports.PixelFormatBGRA:
			for x := 0; x < w; x++ {
				dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = src[x*4+2], src[x*4+1], src[x*4], src[x*4+3]
			}
		case ports.PixelFormatARGB:
			for x := 0; x < w; x++ {
				dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = src[x*4+3], src[x*4], src[x*4+1], src[x*4+2]
			}
		case ports.PixelFormatRGB24:
			for x := 0; x < w; x++ {
				dst[x*3], dst[x*3+1], dst[x*3+2] = src[x*4], src[x*4+1], src[x*4+2]
			}
		default:
			return nil, fmt.Errorf("%w: output %s", ErrUnsupportedPixelFormat, out)
		}
	}

	return &ports.Frame{
		PTS:      frame.PTS,
		Duration: frame.Duration,
		Width:    w,
		Height:   h,
		Format:   out,
		Planes:   [][]byte{buf},
		Strides:  []int{w * bpp},
	}, nil
}

// toRGBA views or converts frame as an RGBA image.
func toRGBA(frame *ports.Frame) (*image.RGBA, error) {
	rect := image.Rect(0, 0, frame.Width, frame.Height)
	if len(frame.Planes) == 0 {
		return nil, fmt.Errorf("%w: frame has no planes", ErrUnsupportedPixelFormat)
	}

	switch frame.Format {
	case ports.PixelFormatRGBA:
		return &image.RGBA{Pix: frame.Planes[0], Stride: stride(frame, 0, frame.Width*4), Rect: rect}, nil

	case ports.PixelFormatGray:
		src := &image.Gray{Pix: frame.Planes[0], Stride: stride(frame, 0, frame.Width), Rect: rect}
		dst := image.NewRGBA(rect)
		draw.Draw(dst, rect, src, image.Point{}, draw.Src)
		return dst, nil

	case ports.PixelFormatYUVJ420P, ports.PixelFormatYUVJ422P, ports.PixelFormatYUVJ444P:
		if len(frame.Planes) < 3 {
			return nil, fmt.Errorf("%w: %s needs 3 planes", ErrUnsupportedPixelFormat, frame.Format)
		}
		ratio := map[ports.PixelFormat]image.YCbCrSubsampleRatio{
			ports.PixelFormatYUVJ420P: image.YCbCrSubsampleRatio420,
			ports.PixelFormatYUVJ422P: image.YCbCrSubsampleRatio422,
			ports.PixelFormatYUVJ444P: image.YCbCrSubsampleRatio444,
		}[frame.Format]
		layout := frame.Format.Planes(frame.Width, frame.Height)
		src := &image.YCbCr{
			Y:              frame.Planes[0],
			Cb:             frame.Planes[1],
			Cr:             frame.Planes[2],
			YStride:        stride(frame, 0, layout[0].RowBytes),
			CStride:        stride(frame, 1, layout[1].RowBytes),
			SubsampleRatio: ratio,
			Rect:           rect,
		}
		dst := image.NewRGBA(rect)
		draw.Draw(dst, rect, src, image.Point{}, draw.Src)
		return dst, nil

	case ports.PixelFormatYUV420P:
		if len(frame.Planes) < 3 {
			return nil, fmt.Errorf("%w: %s needs 3 planes", ErrUnsupportedPixelFormat, frame.Format)
		}
		return limitedYUV420ToRGBA(frame), nil

	default:
		return nil, fmt.Errorf("%w: input %s", ErrUnsupportedPixelFormat, frame.Format)
	}
}

func stride(frame *ports.Frame, plane, fallback int) int {
	if plane < len(frame.Strides) && frame.Strides[plane] > 0 {
		return frame.Strides[plane]
	}
	return fallback
}

// limitedYUV420ToRGBA converts studio-range BT.601 4:2:0 to RGBA.
func limitedYUV420ToRGBA(frame *ports.Frame) *image.RGBA {
	w, h := frame.Width, frame.Height
	layout := frame.Format.Planes(w, h)
	yStride := stride(frame, 0, layout[0].RowBytes)
	uStride := stride(frame, 1, layout[1].RowBytes)
	vStride := stride(frame, 2, layout[2].RowBytes)
	yp, up, vp := frame.Planes[0], frame.Planes[1], frame.Planes[2]

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := int(yp[y*yStride+x]) - 16
			d := int(up[(y/2)*uStride+x/2]) - 128
			e := int(vp[(y/2)*vStride+x/2]) - 128

			i := y*rgba.Stride + x*4
			rgba.Pix[i] = clamp((298*c + 409*e + 128) >> 8)
			rgba.Pix[i+1] = clamp((298*c - 100*d - 208*e + 128) >> 8)
			rgba.Pix[i+2] = clamp((298*c + 516*d + 128) >> 8)
			rgba.Pix[i+3] = 255
		}
	}
	return rgba
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
