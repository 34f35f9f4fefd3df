// Package extractor resolves "the frame shown at time t" against a video
// stream while reusing as much decode work as possible between queries.
//
// Queries may arrive in any order. Forward queries close to the frames
// decoded last continue from the current decoder; backward jumps and far
// forward jumps seek the demuxer and start a new decoder.
package extractor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

// Extractor returns frames of one video stream by presentation time.
// Calls must not overlap; an overlapping call fails with ErrBusy.
type Extractor struct {
	opts    Options
	fetcher ports.Fetcher
	log     ports.Logger

	demuxer     ports.Demuxer
	filter      ports.Filter
	streams     []ports.StreamDescriptor
	stream      ports.StreamDescriptor
	streamIndex int
	duration    float64

	res    *resolver
	cursor CursorState
	cache  *FrameCache
	stats  Stats

	localPath string
	fetched   bool

	busy     atomic.Bool
	disposed bool
}

// Open opens the source, selects its first video stream and prepares the
// output filter. URL sources are downloaded through deps.Fetcher first.
func Open(ctx context.Context, opts Options, deps Dependencies) (*Extractor, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrInvalidOptions)
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	log = log.WithComponent("extractor")

	e := &Extractor{
		opts:        opts,
		fetcher:     deps.Fetcher,
		log:         log,
		streamIndex: -1,
		cache:       NewFrameCache(opts.CacheSize),
		localPath:   opts.Source,
	}

	if isRemote(opts.Source) {
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("%w: remote source without fetcher", ErrInvalidOptions)
		}
		log.Debug("Downloading %s", opts.Source)
		path, err := deps.Fetcher.Fetch(ctx, opts.Source)
		if err != nil {
			return nil, fmt.Errorf("fetch source: %w", err)
		}
		e.localPath = path
		e.fetched = true
	}

	if err := e.init(deps.Backend); err != nil {
		if cerr := e.closeResources(); cerr != nil {
			log.Warn("Cleanup after failed open: %v", cerr)
		}
		return nil, err
	}
	return e, nil
}

func (e *Extractor) init(backend ports.Backend) error {
	demuxer, err := backend.OpenDemuxer(e.localPath)
	if err != nil {
		return fmt.Errorf("open demuxer: %w", err)
	}
	e.demuxer = demuxer
	e.streams = demuxer.Streams()

	for _, s := range e.streams {
		if s.MediaType == ports.MediaTypeVideo {
			e.stream = s
			e.streamIndex = s.Index
			break
		}
	}
	if e.streamIndex < 0 {
		return ErrNoVideoStream
	}
	if !e.stream.TimeBase.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTimeBase, e.stream.TimeBase)
	}

	for _, s := range e.streams {
		if d := s.DurationSeconds(); d > e.duration {
			e.duration = d
		}
	}
	if e.duration == 0 {
		e.duration = demuxer.ContainerDuration()
	}

	filter, err := backend.NewFilter(e.stream, ports.FilterOptions{
		Output: e.opts.OutputPixelFormat,
		FPS:    e.opts.InterpolateFPS,
		Mode:   e.opts.InterpolateMode,
	})
	if err != nil {
		return fmt.Errorf("create filter: %w", err)
	}
	e.filter = filter

	tb := e.stream.TimeBase
	e.res = &resolver{
		demuxer:     demuxer,
		backend:     backend,
		filter:      filter,
		stream:      e.stream,
		threads:     e.opts.ThreadCount,
		threshold:   max(tb.TimeToPTS(e.opts.ReseekThreshold), 1),
		retryOffset: max(tb.TimeToPTS(e.opts.RetryOffset), 1),
		maxRetries:  e.opts.MaxRetries,
		stats:       &e.stats,
		log:         e.log,
	}

	e.log.Debug("Opened %s with %s: stream %d, %dx%d, time base %s, %.3fs",
		e.opts.Source, backend.Name(), e.streamIndex, e.stream.Width, e.stream.Height, tb, e.duration)
	return nil
}

// Duration returns the longest stream duration in seconds, or the container
// duration when no stream reports one.
func (e *Extractor) Duration() float64 {
	return e.duration
}

// Width returns the video width in pixels.
func (e *Extractor) Width() int {
	return e.stream.Width
}

// Height returns the video height in pixels.
func (e *Extractor) Height() int {
	return e.stream.Height
}

// TimeBase returns the video stream's time base.
func (e *Extractor) TimeBase() timebase.Rational {
	return e.stream.TimeBase
}

// Stream returns the descriptor of the selected video stream.
func (e *Extractor) Stream() ports.StreamDescriptor {
	return e.stream
}

// Streams returns the descriptors of every stream in the source.
func (e *Extractor) Streams() []ports.StreamDescriptor {
	return e.streams
}

// Stats returns counters of the work done so far.
func (e *Extractor) Stats() Stats {
	return e.stats
}

// GetFrameAtTime returns the frame displayed at seconds.
func (e *Extractor) GetFrameAtTime(seconds float64) (*ports.Frame, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	return e.res.resolve(e.stream.TimeBase.TimeToPTS(seconds), &e.cursor, e.cache)
}

// GetFrameAtPTS returns the frame displayed at pts, in stream time base units.
func (e *Extractor) GetFrameAtPTS(pts int64) (*ports.Frame, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	return e.res.resolve(pts, &e.cursor, e.cache)
}

// GetImageDataAtTime returns the frame displayed at seconds as a tight buffer.
func (e *Extractor) GetImageDataAtTime(seconds float64) (*ImageData, error) {
	frame, err := e.GetFrameAtTime(seconds)
	if err != nil {
		return nil, err
	}
	return Materialize(frame)
}

// ReadFrames decodes the stream from its start and calls fn for every
// filtered frame in order. An error from fn stops the scan and is returned.
// The next time query seeks afresh.
func (e *Extractor) ReadFrames(fn func(*ports.Frame) error) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	defer e.cursor.Reset()

	if err := e.res.reseek(0, 0, &e.cursor, e.cache); err != nil {
		return err
	}
	for {
		if err := e.res.advance(&e.cursor); err != nil {
			return err
		}
		if e.cursor.Packet == nil && len(e.cursor.Pending) == 0 {
			return nil
		}
		if len(e.cursor.Pending) == 0 {
			continue
		}
		batch, err := e.res.filtered(&e.cursor)
		if err != nil {
			return err
		}
		for _, f := range batch {
			if err := fn(f); err != nil {
				return err
			}
		}
	}
}

// Dispose releases the decoder, filter, demuxer and any downloaded copy of
// the source. Calling it again is a no-op.
func (e *Extractor) Dispose() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.leave()

	if e.disposed {
		return nil
	}
	e.disposed = true
	return e.closeResources()
}

func (e *Extractor) closeResources() error {
	var result *multierror.Error

	if e.res != nil {
		if err := e.res.release(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if e.filter != nil {
		if err := e.filter.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close filter: %w", err))
		}
		e.filter = nil
	}
	if e.demuxer != nil {
		if err := e.demuxer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close demuxer: %w", err))
		}
		e.demuxer = nil
	}
	if e.fetched {
		if err := e.fetcher.Release(e.localPath); err != nil {
			result = multierror.Append(result, fmt.Errorf("release download: %w", err))
		}
		e.fetched = false
	}

	e.cursor.Reset()
	e.cache.Clear()
	e.streamIndex = -1
	return result.ErrorOrNil()
}

func (e *Extractor) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if e.disposed {
		e.busy.Store(false)
		return ErrDisposed
	}
	return nil
}

func (e *Extractor) leave() {
	e.busy.Store(false)
}
