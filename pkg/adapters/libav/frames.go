//go:build libav

package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/user/framefusion/pkg/ports"
)

// toPortsFrame copies f into Go memory with no row padding. Formats known
// to ports are split into their planes; others are kept as one buffer.
func toPortsFrame(f *astiav.Frame) (*ports.Frame, error) {
	n, err := f.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("image buffer size: %w", err)
	}
	buf := make([]byte, n)
	if _, err := f.ImageCopyToBuffer(buf, 1); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}

	out := &ports.Frame{
		PTS:    f.Pts(),
		Width:  f.Width(),
		Height: f.Height(),
		Format: ports.PixelFormat(f.PixelFormat().Name()),
	}
	layout := out.Format.Planes(out.Width, out.Height)
	if out.Format.ImageSize(out.Width, out.Height) != n {
		out.Planes = [][]byte{buf}
		return out, nil
	}
	for _, p := range layout {
		size := p.RowBytes * p.Rows
		out.Planes = append(out.Planes, buf[:size:size])
		out.Strides = append(out.Strides, p.RowBytes)
		buf = buf[size:]
	}
	return out, nil
}

// toAVFrame copies f into a new astiav frame. The caller frees it.
func toAVFrame(f *ports.Frame) (*astiav.Frame, error) {
	pf := astiav.FindPixelFormatByName(string(f.Format))
	if pf == astiav.PixelFormatNone {
		return nil, fmt.Errorf("libav: unknown pixel format %q", f.Format)
	}

	var buf []byte
	if len(f.Planes) == 1 {
		buf = f.Planes[0]
	} else {
		layout := f.Format.Planes(f.Width, f.Height)
		buf = make([]byte, 0, f.Format.ImageSize(f.Width, f.Height))
		for i, p := range layout {
			stride := p.RowBytes
			if i < len(f.Strides) && f.Strides[i] > 0 {
				stride = f.Strides[i]
			}
			for row := 0; row < p.Rows; row++ {
				buf = append(buf, f.Planes[i][row*stride:row*stride+p.RowBytes]...)
			}
		}
	}

	av := astiav.AllocFrame()
	av.SetWidth(f.Width)
	av.SetHeight(f.Height)
	av.SetPixelFormat(pf)
	av.SetPts(f.PTS)
	if err := av.AllocBuffer(1); err != nil {
		av.Free()
		return nil, fmt.Errorf("allocate frame buffer: %w", err)
	}
	if err := av.Data().SetBytes(buf, 1); err != nil {
		av.Free()
		return nil, fmt.Errorf("fill frame: %w", err)
	}
	return av, nil
}
