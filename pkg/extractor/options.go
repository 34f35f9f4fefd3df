package extractor

import (
	"fmt"
	"strings"

	"github.com/user/framefusion/pkg/ports"
)

const (
	DefaultThreadCount     = 8
	DefaultReseekThreshold = 3.0
	DefaultCacheSize       = 2
	DefaultMaxRetries      = 5
	DefaultRetryOffset     = 0.1
)

// Options configures an Extractor.
type Options struct {
	// Source is a local path or an http(s) URL.
	Source string

	// ThreadCount is passed to every decoder the extractor creates.
	ThreadCount int

	// OutputPixelFormat is the format of returned frames.
	OutputPixelFormat ports.PixelFormat

	// InterpolateFPS resamples the video to a constant rate when positive.
	InterpolateFPS float64

	// InterpolateMode selects how resampling creates frames.
	InterpolateMode ports.InterpolateMode

	// ReseekThreshold is how far in seconds the nearest cached frame may be
	// from a forward target before the extractor seeks instead of decoding on.
	ReseekThreshold float64

	// CacheSize is the number of filtered batches kept for reuse.
	CacheSize int

	// MaxRetries bounds the backward-shifted reseeks made for targets near
	// the end of the stream. Zero uses the default; negative disables retries.
	MaxRetries int

	// RetryOffset is how far in seconds each retry moves the seek target back.
	RetryOffset float64
}

// DefaultOptions returns Options with every tunable at its default.
func DefaultOptions() Options {
	return Options{
		ThreadCount:       DefaultThreadCount,
		OutputPixelFormat: ports.PixelFormatRGBA,
		InterpolateMode:   ports.InterpolateFast,
		ReseekThreshold:   DefaultReseekThreshold,
		CacheSize:         DefaultCacheSize,
		MaxRetries:        DefaultMaxRetries,
		RetryOffset:       DefaultRetryOffset,
	}
}

// Dependencies are the collaborators an Extractor is built from.
type Dependencies struct {
	// Backend provides the demuxer, decoder and filter. Required.
	Backend ports.Backend
	// Fetcher downloads URL sources. Required only for URLs.
	Fetcher ports.Fetcher
	// Logger receives debug traces. Optional.
	Logger ports.Logger
}

var outputFormats = map[ports.PixelFormat]bool{
	ports.PixelFormatRGBA:     true,
	ports.PixelFormatBGRA:     true,
	ports.PixelFormatARGB:     true,
	ports.PixelFormatRGB24:    true,
	ports.PixelFormatYUVJ422P: true,
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ThreadCount <= 0 {
		o.ThreadCount = d.ThreadCount
	}
	if o.OutputPixelFormat == "" {
		o.OutputPixelFormat = d.OutputPixelFormat
	}
	if o.InterpolateMode == "" {
		o.InterpolateMode = d.InterpolateMode
	}
	if o.ReseekThreshold <= 0 {
		o.ReseekThreshold = d.ReseekThreshold
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = d.MaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.RetryOffset <= 0 {
		o.RetryOffset = d.RetryOffset
	}
	return o
}

func (o Options) validate() error {
	if o.Source == "" {
		return fmt.Errorf("%w: source is empty", ErrInvalidOptions)
	}
	if !outputFormats[o.OutputPixelFormat] {
		return fmt.Errorf("%w: %q", ErrUnsupportedPixelFormat, o.OutputPixelFormat)
	}
	if o.InterpolateFPS < 0 {
		return fmt.Errorf("%w: interpolate fps %v", ErrInvalidOptions, o.InterpolateFPS)
	}
	switch o.InterpolateMode {
	case ports.InterpolateFast, ports.InterpolateHighQuality:
	default:
		return fmt.Errorf("%w: interpolate mode %q", ErrInvalidOptions, o.InterpolateMode)
	}
	return nil
}

func isRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
