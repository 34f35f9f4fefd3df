//go:build !libav

package libav

import "github.com/user/framefusion/pkg/ports"

// Available reports whether FFmpeg support is compiled in.
func Available() bool { return false }

// RedirectLogs does nothing without libav.
func RedirectLogs(log ports.Logger) {}

// Backend is unusable without libav.
type Backend struct{}

// New returns ErrUnavailable.
func New() (*Backend, error) { return nil, ErrUnavailable }

func (b *Backend) Name() string { return "libav" }

func (b *Backend) OpenDemuxer(path string) (ports.Demuxer, error) { return nil, ErrUnavailable }

func (b *Backend) NewDecoder(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error) {
	return nil, ErrUnavailable
}

func (b *Backend) NewFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
	return nil, ErrUnavailable
}

var _ ports.Backend = (*Backend)(nil)
