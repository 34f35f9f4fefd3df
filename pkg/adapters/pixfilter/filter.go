// Package pixfilter converts decoded frames to packed RGB layouts and
// optionally resamples them onto a constant frame-rate grid.
package pixfilter

import (
	"errors"
	"fmt"

	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

var (
	// ErrUnsupportedPixelFormat is returned for output or input formats
	// the filter cannot convert.
	ErrUnsupportedPixelFormat = errors.New("pixfilter: unsupported pixel format")
	// ErrUnsupportedMode is returned for interpolation modes other than fast.
	ErrUnsupportedMode = errors.New("pixfilter: unsupported interpolate mode")
)

var outputs = map[ports.PixelFormat]bool{
	ports.PixelFormatRGBA:  true,
	ports.PixelFormatBGRA:  true,
	ports.PixelFormatARGB:  true,
	ports.PixelFormatRGB24: true,
}

// Filter implements ports.Filter.
type Filter struct {
	out  ports.PixelFormat
	rate *rateGrid
}

// New creates a filter for frames of stream.
func New(stream ports.StreamDescriptor, opts ports.FilterOptions) (*Filter, error) {
	out := opts.Output
	if out == "" {
		out = ports.PixelFormatRGBA
	}
	if !outputs[out] {
		return nil, fmt.Errorf("%w: output %s", ErrUnsupportedPixelFormat, out)
	}

	f := &Filter{out: out}
	if opts.FPS > 0 {
		if opts.Mode != "" && opts.Mode != ports.InterpolateFast {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, opts.Mode)
		}
		if !stream.TimeBase.Valid() {
			return nil, fmt.Errorf("pixfilter: invalid time base %s", stream.TimeBase)
		}
		f.rate = newRateGrid(stream.TimeBase, opts.FPS, defaultDuration(stream))
	}
	return f, nil
}

// defaultDuration is the frame duration assumed for a frame that does not
// carry one, in stream units.
func defaultDuration(stream ports.StreamDescriptor) int64 {
	if stream.FrameRate > 0 {
		return max(stream.TimeBase.TimeToPTS(1/stream.FrameRate), 1)
	}
	return 0
}

// Apply converts frames and, with a frame rate set, maps them onto the grid.
func (f *Filter) Apply(frames []*ports.Frame) ([]*ports.Frame, error) {
	if f.rate != nil {
		frames = f.rate.resample(frames)
	}

	out := make([]*ports.Frame, 0, len(frames))
	for _, frame := range frames {
		converted, err := Convert(frame, f.out)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

// Reset forgets the grid position so the next batch starts a new timeline.
func (f *Filter) Reset() error {
	if f.rate != nil {
		f.rate.reset()
	}
	return nil
}

// Close releases nothing; the filter holds no external resources.
func (f *Filter) Close() error {
	return nil
}

var _ ports.Filter = (*Filter)(nil)

// rateGrid duplicates and drops frames so that output frames sit on
// k/fps seconds. Each input frame covers [pts, pts+duration).
type rateGrid struct {
	tb      timebase.Rational
	fps     float64
	fallDur int64

	next    int64 // next grid index to emit
	started bool
}

func newRateGrid(tb timebase.Rational, fps float64, fallDur int64) *rateGrid {
	return &rateGrid{tb: tb, fps: fps, fallDur: fallDur}
}

func (g *rateGrid) reset() {
	g.next = 0
	g.started = false
}

func (g *rateGrid) gridPTS(k int64) int64 {
	return g.tb.TimeToPTS(float64(k) / g.fps)
}

func (g *rateGrid) resample(frames []*ports.Frame) []*ports.Frame {
	var out []*ports.Frame
	for i, f := range frames {
		end := f.PTS + g.duration(frames, i)

		if !g.started {
			g.next = g.firstIndexAtOrAfter(f.PTS)
			g.started = true
		}
		for {
			p := g.gridPTS(g.next)
			if p >= end {
				break
			}
			if p >= f.PTS {
				dup := *f
				dup.PTS = p
				dup.Duration = g.gridPTS(g.next+1) - p
				out = append(out, &dup)
			}
			g.next++
		}
	}
	return out
}

// duration of frames[i]: its own, the gap to the next frame, the stream
// default, or one grid step.
func (g *rateGrid) duration(frames []*ports.Frame, i int) int64 {
	if d := frames[i].Duration; d > 0 {
		return d
	}
	if i+1 < len(frames) {
		if d := frames[i+1].PTS - frames[i].PTS; d > 0 {
			return d
		}
	}
	if g.fallDur > 0 {
		return g.fallDur
	}
	return max(g.tb.TimeToPTS(1/g.fps), 1)
}

func (g *rateGrid) firstIndexAtOrAfter(pts int64) int64 {
	k := int64(g.tb.PTSToTime(pts) * g.fps)
	for k > 0 && g.gridPTS(k-1) >= pts {
		k--
	}
	for g.gridPTS(k) < pts {
		k++
	}
	return k
}
