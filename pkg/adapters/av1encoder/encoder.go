//go:build libaom

// Package av1encoder encodes AV1 video with libaom into fragmented MP4.
package av1encoder

/*
#cgo !windows pkg-config: aom
#cgo windows CFLAGS: -IC:/vcpkg/installed/x64-windows-static/include
#cgo windows LDFLAGS: -LC:/vcpkg/installed/x64-windows-static/lib -laom -static -lpthread
#include <aom/aom_encoder.h>
#include <aom/aomcx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_interface() {
    return aom_codec_av1_cx();
}

static aom_codec_err_t init_encoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface,
                                     aom_codec_enc_cfg_t *cfg) {
    return aom_codec_enc_init_ver(ctx, iface, cfg, 0, AOM_ENCODER_ABI_VERSION);
}

static int is_frame_packet(const aom_codec_cx_pkt_t *pkt) {
    return pkt->kind == AOM_CODEC_CX_FRAME_PKT;
}

static void* get_frame_buf(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.buf;
}

static size_t get_frame_sz(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.sz;
}

static int is_keyframe(const aom_codec_cx_pkt_t *pkt) {
    return (pkt->data.frame.flags & AOM_FRAME_IS_KEY) != 0;
}

static aom_codec_pts_t get_frame_pts(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.pts;
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_plane_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

// aom_codec_control is a variadic macro.
static aom_codec_err_t set_cpu_used(aom_codec_ctx_t *ctx, int value) {
    return aom_codec_control(ctx, AOME_SET_CPUUSED, value);
}
*/
import "C"

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"unsafe"

	"github.com/user/framefusion/pkg/adapters/fmp4"
	"github.com/user/framefusion/pkg/ports"
)

// Available reports whether the package was built with libaom.
func Available() bool {
	return true
}

// Encoder implements ports.VideoEncoder using libaom. Every
// KeyframeInterval-th frame is forced to be a keyframe and starts a new
// fragment.
type Encoder struct {
	mu sync.Mutex

	codec    *C.aom_codec_ctx_t
	cfg      *C.aom_codec_enc_cfg_t
	rawFrame *C.aom_image_t

	width     int
	height    int
	fps       float64
	gop       int
	timescale uint32

	samples    []fmp4.Sample
	frameCount int
}

// New creates a new AV1 encoder.
func New() (*Encoder, error) {
	return &Encoder{}, nil
}

// Begin initializes libaom for a new video, discarding any previous one.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("av1encoder: invalid video %dx%d at %v fps", width, height, fps)
	}
	e.cleanup()

	e.width = width
	e.height = height
	e.fps = fps
	e.gop = max(opts.KeyframeInterval, 1)
	e.timescale = opts.Timescale
	if e.timescale == 0 {
		e.timescale = DefaultTimescale
	}
	e.samples = nil
	e.frameCount = 0

	e.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	e.cfg = (*C.aom_codec_enc_cfg_t)(C.malloc(C.sizeof_aom_codec_enc_cfg_t))
	if e.codec == nil || e.cfg == nil {
		e.cleanup()
		return fmt.Errorf("%w: out of memory", ErrEncode)
	}
	C.memset(unsafe.Pointer(e.codec), 0, C.sizeof_aom_codec_ctx_t)

	iface := C.get_av1_interface()
	if res := C.aom_codec_enc_config_default(iface, e.cfg, C.AOM_USAGE_REALTIME); res != C.AOM_CODEC_OK {
		e.cleanup()
		return fmt.Errorf("%w: default config returned %d", ErrEncode, res)
	}

	e.cfg.g_w = C.uint(width)
	e.cfg.g_h = C.uint(height)
	e.cfg.g_timebase.num = 1
	e.cfg.g_timebase.den = C.int(e.timescale)
	e.cfg.g_threads = 4
	e.cfg.g_usage = C.AOM_USAGE_REALTIME
	// Packets must come out in input order so decode time equals pts.
	e.cfg.g_lag_in_frames = 0
	e.cfg.kf_min_dist = C.uint(e.gop)
	e.cfg.kf_max_dist = C.uint(e.gop)

	q := quantizer(opts.Quality)
	e.cfg.rc_end_usage = C.AOM_Q
	e.cfg.rc_min_quantizer = C.uint(q)
	e.cfg.rc_max_quantizer = C.uint(q)

	if res := C.init_encoder(e.codec, iface, e.cfg); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
		e.cleanup()
		return fmt.Errorf("%w: init returned %d", ErrEncode, res)
	}
	C.set_cpu_used(e.codec, 8)

	e.rawFrame = C.aom_img_alloc(nil, C.AOM_IMG_FMT_I420, C.uint(width), C.uint(height), 32)
	if e.rawFrame == nil {
		e.cleanup()
		return fmt.Errorf("%w: image allocation failed", ErrEncode)
	}
	return nil
}

// EncodeFrame encodes img at timestampMs.
func (e *Encoder) EncodeFrame(img image.Image, timestampMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec == nil {
		return ErrNotStarted
	}
	if b := img.Bounds(); b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("av1encoder: frame is %dx%d, video is %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, e.width, e.height))
		draw.Draw(rgba, rgba.Rect, img, img.Bounds().Min, draw.Src)
	}
	e.fillI420(rgba)

	pts := C.aom_codec_pts_t(int64(timestampMs) * int64(e.timescale) / 1000)
	dur := C.ulong(max(float64(e.timescale)/e.fps, 1))
	flags := C.aom_enc_frame_flags_t(0)
	if e.frameCount%e.gop == 0 {
		flags = C.AOM_EFLAG_FORCE_KF
	}
	if res := C.aom_codec_encode(e.codec, e.rawFrame, pts, dur, flags); res != C.AOM_CODEC_OK {
		return fmt.Errorf("%w: frame %d returned %d", ErrEncode, e.frameCount, res)
	}
	e.collect()
	e.frameCount++
	return nil
}

// collect drains the encoder's output packets into samples.
func (e *Encoder) collect() {
	var iter C.aom_codec_iter_t
	for {
		pkt := C.aom_codec_get_cx_data(e.codec, &iter)
		if pkt == nil {
			return
		}
		if C.is_frame_packet(pkt) == 0 {
			continue
		}
		e.samples = append(e.samples, fmp4.Sample{
			Data:       C.GoBytes(C.get_frame_buf(pkt), C.int(C.get_frame_sz(pkt))),
			DecodeTime: uint64(C.get_frame_pts(pkt)),
			Keyframe:   C.is_keyframe(pkt) != 0,
		})
	}
}

// End flushes the encoder and returns the MP4 file.
func (e *Encoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec == nil {
		return nil, ErrNotStarted
	}
	defer e.cleanup()

	if res := C.aom_codec_encode(e.codec, nil, 0, 1, 0); res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("%w: flush returned %d", ErrEncode, res)
	}
	e.collect()
	if len(e.samples) == 0 {
		return nil, ErrNoFrames
	}

	var first []byte
	for _, s := range e.samples {
		if s.Keyframe {
			first = s.Data
			break
		}
	}
	data, err := fmp4.Write(fmp4.Track{
		Width:       e.width,
		Height:      e.height,
		Timescale:   e.timescale,
		FPS:         e.fps,
		SampleEntry: "av01",
		Config:      configBox(first),
		Brands:      []string{"isom", "iso6", "av01", "mp41"},
	}, e.samples)
	e.samples = nil
	return data, err
}

func (e *Encoder) cleanup() {
	if e.rawFrame != nil {
		C.aom_img_free(e.rawFrame)
		e.rawFrame = nil
	}
	if e.codec != nil {
		C.aom_codec_destroy(e.codec)
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
	}
	if e.cfg != nil {
		C.free(unsafe.Pointer(e.cfg))
		e.cfg = nil
	}
}

// fillI420 converts rgba into the raw frame with limited-range BT.601.
// Chroma takes the top-left pixel of each 2x2 block.
func (e *Encoder) fillI420(rgba *image.RGBA) {
	var planes [3][]byte
	var strides [3]int
	for p := 0; p < 3; p++ {
		strides[p] = int(C.get_plane_stride(e.rawFrame, C.int(p)))
		rows := e.height
		if p > 0 {
			rows = (e.height + 1) / 2
		}
		planes[p] = unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(e.rawFrame, C.int(p)))), strides[p]*rows)
	}

	for y := 0; y < e.height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < e.width; x++ {
			r, g, b := int(row[x*4]), int(row[x*4+1]), int(row[x*4+2])
			planes[0][y*strides[0]+x] = clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)
			if y%2 == 0 && x%2 == 0 {
				planes[1][(y/2)*strides[1]+x/2] = clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
				planes[2][(y/2)*strides[2]+x/2] = clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
			}
		}
	}
}

func clamp(v int) byte {
	return byte(min(max(v, 0), 255))
}

var _ ports.VideoEncoder = (*Encoder)(nil)
