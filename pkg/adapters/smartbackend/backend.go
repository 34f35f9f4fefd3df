// Package smartbackend chooses the media backend for a source by detecting
// its codec.
package smartbackend

import (
	"errors"
	"fmt"

	"github.com/user/framefusion/pkg/adapters/av1decoder"
	"github.com/user/framefusion/pkg/adapters/codecdetect"
	"github.com/user/framefusion/pkg/adapters/imagedecoder"
	"github.com/user/framefusion/pkg/adapters/libav"
	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/adapters/mp4demuxer"
	"github.com/user/framefusion/pkg/adapters/pixfilter"
	"github.com/user/framefusion/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

// Kind names a backend.
type Kind string

const (
	// KindAuto picks native when it can decode the codec, libav otherwise.
	KindAuto Kind = "auto"
	// KindNative is the pure Go MP4 backend with optional libaom.
	KindNative Kind = "native"
	// KindLibav is the FFmpeg backend.
	KindLibav Kind = "libav"
)

// ParseKind parses a backend name. An empty name means auto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindNative, KindLibav:
		return k, nil
	default:
		return "", fmt.Errorf("smartbackend: unknown backend %q", s)
	}
}

// Info contains information about the selected backend.
type Info struct {
	// Codec is the detected codec of the first video track.
	Codec Codec
	// Backend is the backend being used.
	Backend Kind
}

var (
	// ErrUnsupportedCodec is returned when no available backend decodes the codec.
	ErrUnsupportedCodec = errors.New("smartbackend: unsupported codec")
	// ErrNotSelected is returned when decoders are requested before a source is opened.
	ErrNotSelected = errors.New("smartbackend: no backend selected")
)

// Native decodes MP4 files with mp4ff, the image decoders and libaom.
type Native struct{}

// Name returns "native".
func (Native) Name() string { return string(KindNative) }

// OpenDemuxer opens path as an MP4 file.
func (Native) OpenDemuxer(path string) (ports.Demuxer, error) {
	d, err := mp4demuxer.Open(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewDecoder creates the decoder matching the stream codec.
func (Native) NewDecoder(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error) {
	codec := Codec(stream.Codec)
	switch {
	case codec.Intra():
		d, err := imagedecoder.New(codec)
		if err != nil {
			return nil, err
		}
		return d, nil
	case codec == codecdetect.CodecAV1:
		d, err := av1decoder.New(threadCount)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
}

// NewFilter creates a pixfilter for the stream.
func (Native) NewFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
	f, err := pixfilter.New(stream, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Supports reports whether the native decoders handle codec in this build.
func (Native) Supports(codec Codec) bool {
	return codec.Intra() || (codec == codecdetect.CodecAV1 && av1decoder.Available())
}

// Select returns the backend of the given kind for the file at path.
//
// The selection flow for auto:
//   - codecs the native decoders handle use native
//   - anything else, including files mp4ff cannot parse, uses libav when
//     it is compiled in
func Select(kind Kind, path string) (ports.Backend, Info, error) {
	codec, detectErr := codecdetect.DetectFromFile(path)
	if detectErr != nil {
		codec = codecdetect.CodecUnknown
	}

	switch kind {
	case KindNative:
		if detectErr != nil {
			return nil, Info{}, detectErr
		}
		if !(Native{}).Supports(codec) {
			return nil, Info{}, fmt.Errorf("%w: %s with native backend", ErrUnsupportedCodec, codec)
		}
		return Native{}, Info{Codec: codec, Backend: KindNative}, nil

	case KindLibav:
		b, err := libav.New()
		if err != nil {
			return nil, Info{}, err
		}
		return b, Info{Codec: codec, Backend: KindLibav}, nil

	case KindAuto, "":
		if detectErr == nil && (Native{}).Supports(codec) {
			return Native{}, Info{Codec: codec, Backend: KindNative}, nil
		}
		if libav.Available() {
			b, err := libav.New()
			if err != nil {
				return nil, Info{}, err
			}
			return b, Info{Codec: codec, Backend: KindLibav}, nil
		}
		if detectErr != nil {
			return nil, Info{}, detectErr
		}
		return nil, Info{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)

	default:
		return nil, Info{}, fmt.Errorf("smartbackend: unknown backend %q", kind)
	}
}

// Backend selects the real backend when the source is opened, so it can be
// handed to the extractor before a remote source has been downloaded.
// A Backend serves one source.
type Backend struct {
	kind  Kind
	log   ports.Logger
	inner ports.Backend
	info  Info
}

// New creates a backend that selects kind on OpenDemuxer.
func New(kind Kind, log ports.Logger) *Backend {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Backend{kind: kind, log: log.WithComponent("backend")}
}

// Name returns the selected backend's name, or the requested kind before
// selection.
func (b *Backend) Name() string {
	if b.inner != nil {
		return b.inner.Name()
	}
	return string(b.kind)
}

// Info returns the selection result. It is zero before OpenDemuxer.
func (b *Backend) Info() Info {
	return b.info
}

// OpenDemuxer selects the backend for path and opens it.
func (b *Backend) OpenDemuxer(path string) (ports.Demuxer, error) {
	inner, info, err := Select(b.kind, path)
	if err != nil {
		return nil, err
	}
	b.inner, b.info = inner, info
	b.log.Debug("Selected %s backend for %s codec", info.Backend, info.Codec)
	return inner.OpenDemuxer(path)
}

// NewDecoder delegates to the selected backend.
func (b *Backend) NewDecoder(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error) {
	if b.inner == nil {
		return nil, ErrNotSelected
	}
	return b.inner.NewDecoder(stream, threadCount)
}

// NewFilter delegates to the selected backend.
func (b *Backend) NewFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
	if b.inner == nil {
		return nil, ErrNotSelected
	}
	return b.inner.NewFilter(stream, opts)
}

var (
	_ ports.Backend = Native{}
	_ ports.Backend = (*Backend)(nil)
)
