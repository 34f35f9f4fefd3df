//go:build libav

package libav

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/user/framefusion/pkg/ports"
)

// Available reports whether FFmpeg support is compiled in.
func Available() bool { return true }

// RedirectLogs sends FFmpeg's own log lines to log. Warnings and errors
// keep their level; everything else is logged at debug.
func RedirectLogs(log ports.Logger) {
	log = log.WithComponent("ffmpeg")
	astiav.SetLogLevel(astiav.LogLevelWarning)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
		msg = strings.TrimSpace(msg)
		switch l {
		case astiav.LogLevelPanic, astiav.LogLevelFatal, astiav.LogLevelError:
			log.Error("%s", msg)
		case astiav.LogLevelWarning:
			log.Warn("%s", msg)
		default:
			log.Debug("%s", msg)
		}
	})
}

// Backend opens one source with FFmpeg. Decoders are created from the
// codec parameters of the demuxer opened last.
type Backend struct {
	demuxer *Demuxer
}

// New creates a libav backend.
func New() (*Backend, error) {
	return &Backend{}, nil
}

// Name returns "libav".
func (b *Backend) Name() string { return "libav" }

// OpenDemuxer opens path with avformat.
func (b *Backend) OpenDemuxer(path string) (ports.Demuxer, error) {
	d, err := OpenDemuxer(path)
	if err != nil {
		return nil, err
	}
	b.demuxer = d
	return d, nil
}

// NewDecoder creates an avcodec decoder for stream.
func (b *Backend) NewDecoder(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error) {
	if b.demuxer == nil {
		return nil, ErrNotOpened
	}
	par, err := b.demuxer.codecParameters(stream.Index)
	if err != nil {
		return nil, err
	}
	d, err := newDecoder(par, threadCount)
	if err != nil {
		return nil, fmt.Errorf("create decoder for stream %d: %w", stream.Index, err)
	}
	return d, nil
}

// NewFilter creates an avfilter graph for stream.
func (b *Backend) NewFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
	f, err := newFilter(stream, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var _ ports.Backend = (*Backend)(nil)
