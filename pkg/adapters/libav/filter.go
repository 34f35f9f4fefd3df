//go:build libav

package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/hashicorp/go-multierror"

	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

// Filter implements ports.Filter with a buffer -> ... -> buffersink graph.
type Filter struct {
	stream  ports.StreamDescriptor
	content string

	closer *astikit.Closer
	graph  *astiav.FilterGraph
	src    *astiav.BuffersrcFilterContext
	sink   *astiav.BuffersinkFilterContext
	frame  *astiav.Frame
}

func newFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (*Filter, error) {
	f := &Filter{stream: stream, content: graphDescription(opts)}
	if err := f.build(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) build() (err error) {
	c := astikit.NewCloser()
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if f.graph = astiav.AllocFilterGraph(); f.graph == nil {
		return errors.New("libav: unable to allocate a filter graph")
	}
	c.Add(f.graph.Free)

	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()
	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()

	if f.src, err = f.graph.NewBuffersrcFilterContext(astiav.FindFilterByName("buffer"), "in"); err != nil {
		return fmt.Errorf("create buffer source: %w", err)
	}
	if f.sink, err = f.graph.NewBuffersinkFilterContext(astiav.FindFilterByName("buffersink"), "out"); err != nil {
		return fmt.Errorf("create buffer sink: %w", err)
	}

	params := astiav.AllocBuffersrcFilterContextParameters()
	defer params.Free()
	params.SetWidth(f.stream.Width)
	params.SetHeight(f.stream.Height)
	params.SetPixelFormat(astiav.FindPixelFormatByName(string(f.stream.PixelFormat)))
	params.SetTimeBase(astiav.NewRational(int(f.stream.TimeBase.Num), int(f.stream.TimeBase.Den)))
	params.SetSampleAspectRatio(astiav.NewRational(1, 1))
	if err = f.src.SetParameters(params); err != nil {
		return fmt.Errorf("set buffer source parameters: %w", err)
	}
	if err = f.src.Initialize(nil); err != nil {
		return fmt.Errorf("initialize buffer source: %w", err)
	}

	outputs.SetName("in")
	outputs.SetFilterContext(f.src.FilterContext())
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	inputs.SetName("out")
	inputs.SetFilterContext(f.sink.FilterContext())
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	if err = f.graph.Parse(f.content, inputs, outputs); err != nil {
		return fmt.Errorf("parse filter %q: %w", f.content, err)
	}
	if err = f.graph.Configure(); err != nil {
		return fmt.Errorf("configure filter %q: %w", f.content, err)
	}

	f.frame = astiav.AllocFrame()
	c.Add(f.frame.Free)
	f.closer = c
	return nil
}

// Apply pushes frames through the graph and collects what the sink releases.
// Output timestamps are rescaled to the stream time base.
func (f *Filter) Apply(frames []*ports.Frame) ([]*ports.Frame, error) {
	var out []*ports.Frame
	for _, frame := range frames {
		av, err := toAVFrame(frame)
		if err != nil {
			return out, err
		}
		err = f.src.AddFrame(av, astiav.NewBuffersrcFlags(astiav.BuffersrcFlagKeepRef))
		av.Free()
		if err != nil {
			return out, fmt.Errorf("add frame at pts %d: %w", frame.PTS, err)
		}

		for {
			err := f.sink.GetFrame(f.frame, astiav.NewBuffersinkFlags())
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				break
			}
			if err != nil {
				return out, fmt.Errorf("get filtered frame: %w", err)
			}

			tb := f.sink.TimeBase()
			pts := timebase.New(int64(tb.Num()), int64(tb.Den())).Rescale(f.frame.Pts(), f.stream.TimeBase)
			filtered, err := toPortsFrame(f.frame)
			f.frame.Unref()
			if err != nil {
				return out, err
			}
			filtered.PTS = pts
			out = append(out, filtered)
		}
	}
	return out, nil
}

// Reset rebuilds the graph so rate filters start a new timeline.
func (f *Filter) Reset() error {
	var result *multierror.Error
	if err := f.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := f.build(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close frees the graph.
func (f *Filter) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

var _ ports.Filter = (*Filter)(nil)
