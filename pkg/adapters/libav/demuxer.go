//go:build libav

package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

// Demuxer implements ports.Demuxer with an avformat input context.
type Demuxer struct {
	closer  *astikit.Closer
	fc      *astiav.FormatContext
	pkt     *astiav.Packet
	streams []ports.StreamDescriptor
}

// OpenDemuxer opens path and probes its streams.
func OpenDemuxer(path string) (*Demuxer, error) {
	d := &Demuxer{closer: astikit.NewCloser()}

	if d.fc = astiav.AllocFormatContext(); d.fc == nil {
		return nil, errors.New("libav: unable to allocate a format context")
	}
	d.closer.Add(d.fc.Free)

	if err := d.fc.OpenInput(path, nil, nil); err != nil {
		d.closer.Close()
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	d.closer.Add(d.fc.CloseInput)

	if err := d.fc.FindStreamInfo(nil); err != nil {
		d.closer.Close()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	d.pkt = astiav.AllocPacket()
	d.closer.Add(d.pkt.Free)

	for _, s := range d.fc.Streams() {
		d.streams = append(d.streams, describe(s))
	}
	return d, nil
}

func describe(s *astiav.Stream) ports.StreamDescriptor {
	par := s.CodecParameters()
	tb := s.TimeBase()
	desc := ports.StreamDescriptor{
		Index:     s.Index(),
		MediaType: mediaType(par.MediaType()),
		Codec:     par.CodecID().String(),
		TimeBase:  timebase.New(int64(tb.Num()), int64(tb.Den())),
		Duration:  max(s.Duration(), 0),
	}
	if desc.MediaType == ports.MediaTypeVideo {
		desc.Width = par.Width()
		desc.Height = par.Height()
		desc.PixelFormat = ports.PixelFormat(par.PixelFormat().Name())
		desc.FrameRate = s.AvgFrameRate().Float64()
	}
	return desc
}

func mediaType(t astiav.MediaType) ports.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return ports.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return ports.MediaTypeAudio
	case astiav.MediaTypeSubtitle:
		return ports.MediaTypeSubtitle
	default:
		return ports.MediaTypeData
	}
}

func (d *Demuxer) codecParameters(index int) (*astiav.CodecParameters, error) {
	streams := d.fc.Streams()
	if index < 0 || index >= len(streams) {
		return nil, fmt.Errorf("%w: %d", ErrNoStream, index)
	}
	return streams[index].CodecParameters(), nil
}

// Streams returns every stream of the input.
func (d *Demuxer) Streams() []ports.StreamDescriptor {
	return d.streams
}

// ContainerDuration returns the input duration in seconds.
func (d *Demuxer) ContainerDuration() float64 {
	if dur := d.fc.Duration(); dur > 0 {
		return float64(dur) / float64(astiav.TimeBase)
	}
	return 0
}

// Seek moves to the keyframe at or before pts, or to pts itself when exact.
func (d *Demuxer) Seek(streamIndex int, pts int64, exact bool) error {
	flags := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if exact {
		flags = astiav.NewSeekFlags(astiav.SeekFlagBackward, astiav.SeekFlagAny)
	}
	if err := d.fc.SeekFrame(streamIndex, pts, flags); err != nil {
		return fmt.Errorf("seek stream %d to %d: %w", streamIndex, pts, err)
	}
	return nil
}

// Read returns the next packet, or nil at end of input.
func (d *Demuxer) Read() (*ports.Packet, error) {
	if err := d.fc.ReadFrame(d.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packet: %w", err)
	}
	defer d.pkt.Unref()

	return &ports.Packet{
		StreamIndex: d.pkt.StreamIndex(),
		PTS:         d.pkt.Pts(),
		DTS:         d.pkt.Dts(),
		Duration:    d.pkt.Duration(),
		Keyframe:    d.pkt.Flags().Has(astiav.PacketFlagKey),
		Data:        d.pkt.Data(),
	}, nil
}

// Close frees the input context.
func (d *Demuxer) Close() error {
	return d.closer.Close()
}

var _ ports.Demuxer = (*Demuxer)(nil)
