package mocks

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

// ErrDecoderFlushed is returned by a synthetic decoder used after Flush.
var ErrDecoderFlushed = errors.New("mocks: decoder used after flush")

// SyntheticStream describes the video a MediaBackend serves.
type SyntheticStream struct {
	TimeBase timebase.Rational
	// PTS lists frame presentation times in ascending order.
	PTS []int64
	// FramesPerPacket groups consecutive frames into one packet. Default 1.
	FramesPerPacket int
	// KeyframeInterval marks every Nth packet as a keyframe. Default 1.
	KeyframeInterval int
	// DecoderDelay holds frames back this many packets, releasing the
	// remainder on Flush.
	DecoderDelay int
	// Width and Height of every frame. Default 4x2.
	Width  int
	Height int
	// RowPadding adds bytes at the end of each rgba row.
	RowPadding int
	// WithAudio interleaves an audio stream at index 1 after every video packet.
	WithAudio bool
	// Duration overrides the stream duration; by default the last PTS plus
	// one frame interval.
	Duration int64
}

// NewSyntheticStream returns a stream of count frames at fps in time base tb,
// with frame i at PTS round(i / fps / tb).
func NewSyntheticStream(count int, fps float64, tb timebase.Rational) SyntheticStream {
	pts := make([]int64, count)
	for i := range pts {
		pts[i] = tb.TimeToPTS(float64(i) / fps)
	}
	return SyntheticStream{TimeBase: tb, PTS: pts}
}

func (s SyntheticStream) withDefaults() SyntheticStream {
	if !s.TimeBase.Valid() {
		s.TimeBase = timebase.New(1, 1000)
	}
	if s.FramesPerPacket <= 0 {
		s.FramesPerPacket = 1
	}
	if s.KeyframeInterval <= 0 {
		s.KeyframeInterval = 1
	}
	if s.Width <= 0 {
		s.Width = 4
	}
	if s.Height <= 0 {
		s.Height = 2
	}
	return s
}

func (s SyntheticStream) frameInterval() int64 {
	if len(s.PTS) < 2 {
		return 1
	}
	return s.PTS[1] - s.PTS[0]
}

// FrameIndex returns the index of the frame with pts, or -1.
func (s SyntheticStream) FrameIndex(pts int64) int {
	for i, p := range s.PTS {
		if p == pts {
			return i
		}
	}
	return -1
}

// MediaBackend is a synthetic ports.Backend. Every demuxer, decoder and filter
// it creates reports to it, so tests can count work.
type MediaBackend struct {
	Stream SyntheticStream

	OpenDemuxerFunc func(path string) (ports.Demuxer, error)
	NewDecoderFunc  func(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error)
	NewFilterFunc   func(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error)
	DecodeFunc      func(pkt *ports.Packet) ([]*ports.Frame, error)
	ReadFunc        func() (*ports.Packet, error)

	// Recorded calls for verification
	OpenedPaths []string
	Demuxers    []*Demuxer
	Decoders    []*Decoder
	Filters     []*Filter
}

// NewMediaBackend returns a backend serving stream.
func NewMediaBackend(stream SyntheticStream) *MediaBackend {
	return &MediaBackend{Stream: stream.withDefaults()}
}

func (m *MediaBackend) Name() string {
	return "synthetic"
}

func (m *MediaBackend) OpenDemuxer(path string) (ports.Demuxer, error) {
	m.OpenedPaths = append(m.OpenedPaths, path)
	if m.OpenDemuxerFunc != nil {
		return m.OpenDemuxerFunc(path)
	}
	d := newDemuxer(m.Stream.withDefaults(), m)
	m.Demuxers = append(m.Demuxers, d)
	return d, nil
}

func (m *MediaBackend) NewDecoder(stream ports.StreamDescriptor, threadCount int) (ports.Decoder, error) {
	if m.NewDecoderFunc != nil {
		return m.NewDecoderFunc(stream, threadCount)
	}
	d := &Decoder{stream: m.Stream.withDefaults(), backend: m, ThreadCount: threadCount}
	m.Decoders = append(m.Decoders, d)
	return d, nil
}

func (m *MediaBackend) NewFilter(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
	if m.NewFilterFunc != nil {
		return m.NewFilterFunc(stream, opts)
	}
	f := &Filter{Options: opts}
	m.Filters = append(m.Filters, f)
	return f, nil
}

// Seeks returns the seek calls across all demuxers.
func (m *MediaBackend) Seeks() []SeekCall {
	var calls []SeekCall
	for _, d := range m.Demuxers {
		calls = append(calls, d.SeekCalls...)
	}
	return calls
}

// VideoReads returns the number of video packets read across all demuxers.
func (m *MediaBackend) VideoReads() int {
	n := 0
	for _, d := range m.Demuxers {
		n += d.VideoReads
	}
	return n
}

var _ ports.Backend = (*MediaBackend)(nil)

// SeekCall records a call to Demuxer.Seek.
type SeekCall struct {
	StreamIndex int
	PTS         int64
	Exact       bool
}

// Demuxer is a synthetic ports.Demuxer.
type Demuxer struct {
	stream  SyntheticStream
	backend *MediaBackend
	packets []ports.Packet
	pos     int

	// Recorded calls for verification
	SeekCalls  []SeekCall
	Reads      int
	VideoReads int
	Closed     bool
}

func newDemuxer(s SyntheticStream, backend *MediaBackend) *Demuxer {
	d := &Demuxer{stream: s, backend: backend}
	dur := s.frameInterval()
	for i, n := 0, 0; i < len(s.PTS); i, n = i+s.FramesPerPacket, n+1 {
		end := min(i+s.FramesPerPacket, len(s.PTS))
		data := make([]byte, 8*(end-i))
		for j := i; j < end; j++ {
			binary.BigEndian.PutUint64(data[8*(j-i):], uint64(s.PTS[j]))
		}
		d.packets = append(d.packets, ports.Packet{
			StreamIndex: 0,
			PTS:         s.PTS[i],
			DTS:         s.PTS[i],
			Duration:    dur * int64(end-i),
			Keyframe:    n%s.KeyframeInterval == 0,
			Data:        data,
		})
		if s.WithAudio {
			d.packets = append(d.packets, ports.Packet{StreamIndex: 1, PTS: s.PTS[i], DTS: s.PTS[i]})
		}
	}
	return d
}

func (d *Demuxer) Streams() []ports.StreamDescriptor {
	dur := d.stream.Duration
	if dur == 0 && len(d.stream.PTS) > 0 {
		dur = d.stream.PTS[len(d.stream.PTS)-1] + d.stream.frameInterval()
	}
	streams := []ports.StreamDescriptor{{
		Index:       0,
		MediaType:   ports.MediaTypeVideo,
		Codec:       "synthetic",
		Width:       d.stream.Width,
		Height:      d.stream.Height,
		TimeBase:    d.stream.TimeBase,
		Duration:    dur,
		PixelFormat: ports.PixelFormatRGBA,
	}}
	if d.stream.WithAudio {
		streams = append(streams, ports.StreamDescriptor{
			Index:     1,
			MediaType: ports.MediaTypeAudio,
			Codec:     "synthetic",
			TimeBase:  d.stream.TimeBase,
		})
	}
	return streams
}

func (d *Demuxer) ContainerDuration() float64 {
	return 0
}

// Seek positions on the last keyframe at or before pts, or the first packet.
func (d *Demuxer) Seek(streamIndex int, pts int64, exact bool) error {
	d.SeekCalls = append(d.SeekCalls, SeekCall{StreamIndex: streamIndex, PTS: pts, Exact: exact})
	d.pos = 0
	for i, p := range d.packets {
		if p.StreamIndex != streamIndex || p.PTS > pts {
			continue
		}
		if p.Keyframe || exact {
			d.pos = i
		}
	}
	return nil
}

func (d *Demuxer) Read() (*ports.Packet, error) {
	d.Reads++
	if d.backend != nil && d.backend.ReadFunc != nil {
		return d.backend.ReadFunc()
	}
	if d.pos >= len(d.packets) {
		return nil, nil
	}
	p := d.packets[d.pos]
	d.pos++
	if p.StreamIndex == 0 {
		d.VideoReads++
	}
	return &p, nil
}

func (d *Demuxer) Close() error {
	d.Closed = true
	return nil
}

var _ ports.Demuxer = (*Demuxer)(nil)

// Decoder is a synthetic ports.Decoder producing rgba frames whose red
// channel holds the frame index and whose row padding holds 0xEE.
type Decoder struct {
	stream  SyntheticStream
	backend *MediaBackend
	queue   [][]*ports.Frame

	// Recorded calls for verification
	ThreadCount int
	Decoded     []int64
	Flushed     bool
}

func (d *Decoder) Decode(pkt *ports.Packet) ([]*ports.Frame, error) {
	if d.Flushed {
		return nil, ErrDecoderFlushed
	}
	d.Decoded = append(d.Decoded, pkt.PTS)
	if d.backend != nil && d.backend.DecodeFunc != nil {
		return d.backend.DecodeFunc(pkt)
	}
	if len(pkt.Data)%8 != 0 {
		return nil, fmt.Errorf("mocks: corrupt packet at pts %d", pkt.PTS)
	}

	var frames []*ports.Frame
	for off := 0; off < len(pkt.Data); off += 8 {
		pts := int64(binary.BigEndian.Uint64(pkt.Data[off:]))
		frames = append(frames, d.makeFrame(pts))
	}
	d.queue = append(d.queue, frames)
	if len(d.queue) <= d.stream.DecoderDelay {
		return nil, nil
	}
	out := d.queue[0]
	d.queue = d.queue[1:]
	return out, nil
}

func (d *Decoder) Flush() ([]*ports.Frame, error) {
	if d.Flushed {
		return nil, ErrDecoderFlushed
	}
	d.Flushed = true
	var out []*ports.Frame
	for _, frames := range d.queue {
		out = append(out, frames...)
	}
	d.queue = nil
	return out, nil
}

func (d *Decoder) makeFrame(pts int64) *ports.Frame {
	s := d.stream
	stride := s.Width*4 + s.RowPadding
	pix := make([]byte, stride*s.Height)
	idx := byte(s.FrameIndex(pts))
	for y := 0; y < s.Height; y++ {
		row := pix[y*stride : (y+1)*stride]
		for x := 0; x < s.Width; x++ {
			row[x*4] = idx
			row[x*4+1] = byte(x)
			row[x*4+2] = byte(y)
			row[x*4+3] = 0xFF
		}
		for x := s.Width * 4; x < stride; x++ {
			row[x] = 0xEE
		}
	}
	return &ports.Frame{
		PTS:      pts,
		Duration: s.frameInterval(),
		Width:    s.Width,
		Height:   s.Height,
		Format:   ports.PixelFormatRGBA,
		Planes:   [][]byte{pix},
		Strides:  []int{stride},
	}
}

var _ ports.Decoder = (*Decoder)(nil)

// Filter is a pass-through ports.Filter.
type Filter struct {
	Options ports.FilterOptions

	ApplyFunc func(frames []*ports.Frame) ([]*ports.Frame, error)

	// Recorded calls for verification
	ApplyCalls int
	Resets     int
	Closed     bool
}

func (f *Filter) Apply(frames []*ports.Frame) ([]*ports.Frame, error) {
	f.ApplyCalls++
	if f.ApplyFunc != nil {
		return f.ApplyFunc(frames)
	}
	out := make([]*ports.Frame, len(frames))
	copy(out, frames)
	return out, nil
}

func (f *Filter) Reset() error {
	f.Resets++
	return nil
}

func (f *Filter) Close() error {
	f.Closed = true
	return nil
}

var _ ports.Filter = (*Filter)(nil)
