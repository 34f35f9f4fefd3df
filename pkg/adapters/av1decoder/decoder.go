//go:build libaom

// Package av1decoder decodes AV1 temporal units with libaom.
package av1decoder

/*
#cgo pkg-config: aom
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface, unsigned int threads) {
    aom_codec_dec_cfg_t cfg;
    memset(&cfg, 0, sizeof(cfg));
    cfg.threads = threads;
    cfg.allow_lowbitdepth = 1;
    return aom_codec_dec_init(ctx, iface, &cfg, 0);
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}

static int is_i420(aom_image_t *img) {
    return img->fmt == AOM_IMG_FMT_I420;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/user/framefusion/pkg/ports"
)

// Available reports whether the package was built with libaom.
func Available() bool {
	return true
}

// Decoder implements ports.Decoder using libaom. Frames are copied out of
// libaom's buffers with their strides preserved.
type Decoder struct {
	codec   *C.aom_codec_ctx_t
	lastPTS int64
	lastDur int64
}

// New creates a decoder using up to threads worker threads.
func New(threads int) (*Decoder, error) {
	codec := (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if codec == nil {
		return nil, fmt.Errorf("failed to allocate decoder context")
	}
	C.memset(unsafe.Pointer(codec), 0, C.sizeof_aom_codec_ctx_t)

	iface := C.get_av1_decoder_interface()
	if res := C.init_decoder(codec, iface, C.uint(max(threads, 1))); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(codec))
		return nil, fmt.Errorf("%w: init returned %d", ErrDecode, res)
	}
	return &Decoder{codec: codec}, nil
}

// Decode decodes one temporal unit. AV1 emits frames in presentation
// order, so each output frame takes the packet's timestamp.
func (d *Decoder) Decode(pkt *ports.Packet) ([]*ports.Frame, error) {
	if d.codec == nil {
		return nil, ErrFlushed
	}
	if len(pkt.Data) == 0 {
		return nil, fmt.Errorf("%w: empty packet at pts %d", ErrDecode, pkt.PTS)
	}

	res := C.aom_codec_decode(
		d.codec,
		(*C.uint8_t)(unsafe.Pointer(&pkt.Data[0])),
		C.size_t(len(pkt.Data)),
		nil,
	)
	if res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("%w: packet at pts %d returned %d", ErrDecode, pkt.PTS, res)
	}
	d.lastPTS = pkt.PTS
	d.lastDur = pkt.Duration
	return d.drain(pkt.PTS, pkt.Duration)
}

// Flush drains libaom and destroys the context.
func (d *Decoder) Flush() ([]*ports.Frame, error) {
	if d.codec == nil {
		return nil, ErrFlushed
	}
	defer d.destroy()

	if res := C.aom_codec_decode(d.codec, nil, 0, nil); res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("%w: flush returned %d", ErrDecode, res)
	}
	return d.drain(d.lastPTS+d.lastDur, d.lastDur)
}

func (d *Decoder) drain(pts, dur int64) ([]*ports.Frame, error) {
	var frames []*ports.Frame
	var iter C.aom_codec_iter_t
	for {
		img := C.aom_codec_get_frame(d.codec, &iter)
		if img == nil {
			return frames, nil
		}
		if C.is_i420(img) == 0 {
			return nil, fmt.Errorf("%w: only 8-bit 4:2:0 output is supported", ErrDecode)
		}
		frames = append(frames, copyFrame(img, pts, dur))
		pts += dur
	}
}

func copyFrame(img *C.aom_image_t, pts, dur int64) *ports.Frame {
	width := int(C.get_width(img))
	height := int(C.get_height(img))
	chromaRows := (height + 1) / 2

	frame := &ports.Frame{
		PTS:      pts,
		Duration: dur,
		Width:    width,
		Height:   height,
		Format:   ports.PixelFormatYUV420P,
	}
	for plane, rows := range []int{height, chromaRows, chromaRows} {
		stride := int(C.get_stride(img, C.int(plane)))
		data := C.GoBytes(unsafe.Pointer(C.get_plane(img, C.int(plane))), C.int(stride*rows))
		frame.Planes = append(frame.Planes, data)
		frame.Strides = append(frame.Strides, stride)
	}
	return frame
}

func (d *Decoder) destroy() {
	if d.codec != nil {
		C.aom_codec_destroy(d.codec)
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
	}
}

var _ ports.Decoder = (*Decoder)(nil)
