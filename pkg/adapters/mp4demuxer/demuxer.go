// Package mp4demuxer reads packets from progressive and fragmented MP4
// files using mp4ff sample tables.
package mp4demuxer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framefusion/pkg/adapters/codecdetect"
	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

var (
	// ErrNoTracks is returned when the file has no usable track.
	ErrNoTracks = errors.New("mp4demuxer: no tracks")
	// ErrInvalidStream is returned by Seek for an unknown stream index.
	ErrInvalidStream = errors.New("mp4demuxer: invalid stream index")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mp4demuxer: closed")
)

// sampleRef locates one sample of one track.
type sampleRef struct {
	stream int
	dts    int64
	pts    int64
	dur    int64
	sync   bool

	// Progressive samples are read lazily from offset; fragmented samples
	// are held in data.
	offset int64
	size   uint32
	data   []byte
}

// Demuxer implements ports.Demuxer over an MP4 file.
type Demuxer struct {
	reader io.ReadSeeker
	closer io.Closer

	streams  []ports.StreamDescriptor
	duration float64

	// samples[i] is stream i in decode order; order interleaves every
	// stream by decode time.
	samples [][]*sampleRef
	order   []*sampleRef
	index   map[*sampleRef]int
	pos     int
	closed  bool
}

// Open opens an MP4 file.
func Open(path string) (*Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	d, err := NewFromReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.closer = f
	return d, nil
}

// NewFromReader parses the MP4 structure of reader. Progressive sample data
// is read from reader on demand, so it must stay valid until Close.
func NewFromReader(reader io.ReadSeeker) (*Demuxer, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	d := &Demuxer{reader: reader}
	traks := codecdetect.Traks(mp4File)
	if len(traks) == 0 {
		return nil, ErrNoTracks
	}

	for _, trak := range traks {
		if trak.Mdia == nil || trak.Mdia.Mdhd == nil || trak.Mdia.Mdhd.Timescale == 0 {
			continue
		}

		var samples []*sampleRef
		if mp4File.IsFragmented() {
			samples, err = fragmentedSamples(mp4File, trak)
		} else {
			samples, err = progressiveSamples(trak)
		}
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", trak.Tkhd.TrackID, err)
		}

		idx := len(d.streams)
		for _, s := range samples {
			s.stream = idx
		}
		d.streams = append(d.streams, describe(idx, trak, samples))
		d.samples = append(d.samples, samples)
	}
	if len(d.streams) == 0 {
		return nil, ErrNoTracks
	}

	if mvhd := movieHeader(mp4File); mvhd != nil && mvhd.Timescale > 0 {
		d.duration = float64(mvhd.Duration) / float64(mvhd.Timescale)
	}

	d.interleave()
	return d, nil
}

func movieHeader(f *mp4.File) *mp4.MvhdBox {
	if f.Moov != nil {
		return f.Moov.Mvhd
	}
	if f.Init != nil && f.Init.Moov != nil {
		return f.Init.Moov.Mvhd
	}
	return nil
}

func describe(idx int, trak *mp4.TrakBox, samples []*sampleRef) ports.StreamDescriptor {
	mdhd := trak.Mdia.Mdhd
	desc := ports.StreamDescriptor{
		Index:     idx,
		MediaType: mediaType(trak),
		Codec:     string(codecdetect.TrackCodec(trak)),
		TimeBase:  timebase.New(1, int64(mdhd.Timescale)),
		Duration:  int64(mdhd.Duration),
	}
	if trak.Tkhd != nil {
		desc.Width = int(trak.Tkhd.Width >> 16)
		desc.Height = int(trak.Tkhd.Height >> 16)
	}
	if stbl := trak.Mdia.Minf.Stbl; stbl != nil && stbl.Stsd != nil {
		for _, child := range stbl.Stsd.Children {
			if vse, ok := child.(*mp4.VisualSampleEntryBox); ok && vse.Width > 0 {
				desc.Width = int(vse.Width)
				desc.Height = int(vse.Height)
				break
			}
		}
	}

	if n := len(samples); n > 0 {
		last := samples[n-1]
		if end := last.dts + last.dur; end > desc.Duration {
			desc.Duration = end
		}
	}
	if desc.MediaType == ports.MediaTypeVideo && desc.Duration > 0 {
		desc.FrameRate = float64(len(samples)) / desc.DurationSeconds()
	}
	return desc
}

func mediaType(trak *mp4.TrakBox) ports.MediaType {
	if trak.Mdia.Hdlr == nil {
		return ports.MediaTypeData
	}
	switch trak.Mdia.Hdlr.HandlerType {
	case "vide":
		return ports.MediaTypeVideo
	case "soun":
		return ports.MediaTypeAudio
	case "subt", "text", "sbtl":
		return ports.MediaTypeSubtitle
	default:
		return ports.MediaTypeData
	}
}

// interleave orders all samples by decode time in seconds, keeping each
// track's own order and putting lower stream indexes first on ties.
func (d *Demuxer) interleave() {
	d.order = nil
	for _, samples := range d.samples {
		d.order = append(d.order, samples...)
	}
	sort.SliceStable(d.order, func(i, j int) bool {
		a, b := d.order[i], d.order[j]
		ta := d.streams[a.stream].TimeBase.PTSToTime(a.dts)
		tb := d.streams[b.stream].TimeBase.PTSToTime(b.dts)
		if ta != tb {
			return ta < tb
		}
		return a.stream < b.stream
	})
	d.index = make(map[*sampleRef]int, len(d.order))
	for i, s := range d.order {
		d.index[s] = i
	}
}

// Streams returns one descriptor per track.
func (d *Demuxer) Streams() []ports.StreamDescriptor {
	return d.streams
}

// ContainerDuration returns the movie header duration in seconds.
func (d *Demuxer) ContainerDuration() float64 {
	return d.duration
}

// Seek positions the cursor on the last sync sample of streamIndex whose
// presentation time is at or before pts, or on the first sync sample when
// pts precedes all of them. With exact, any sample qualifies.
func (d *Demuxer) Seek(streamIndex int, pts int64, exact bool) error {
	if d.closed {
		return ErrClosed
	}
	if streamIndex < 0 || streamIndex >= len(d.samples) {
		return fmt.Errorf("%w: %d", ErrInvalidStream, streamIndex)
	}
	samples := d.samples[streamIndex]
	if len(samples) == 0 {
		d.pos = len(d.order)
		return nil
	}

	var target, first *sampleRef
	for _, s := range samples {
		if !s.sync && !exact {
			continue
		}
		if first == nil {
			first = s
		}
		if s.pts <= pts && (target == nil || s.pts >= target.pts) {
			target = s
		}
	}
	if target == nil {
		target = first
	}
	if target == nil {
		target = samples[0]
	}
	d.pos = d.index[target]
	return nil
}

// Read returns the next packet in decode order, or nil at end of file.
func (d *Demuxer) Read() (*ports.Packet, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.pos >= len(d.order) {
		return nil, nil
	}
	s := d.order[d.pos]
	d.pos++

	data := s.data
	if data == nil {
		data = make([]byte, s.size)
		if _, err := d.reader.Seek(s.offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek to sample: %w", err)
		}
		if _, err := io.ReadFull(d.reader, data); err != nil {
			return nil, fmt.Errorf("read sample: %w", err)
		}
	}

	return &ports.Packet{
		StreamIndex: s.stream,
		PTS:         s.pts,
		DTS:         s.dts,
		Duration:    s.dur,
		Keyframe:    s.sync,
		Data:        data,
	}, nil
}

// Close releases the underlying file.
func (d *Demuxer) Close() error {
	d.closed = true
	d.order = nil
	d.samples = nil
	d.index = nil
	if d.closer != nil {
		c := d.closer
		d.closer = nil
		return c.Close()
	}
	return nil
}

var _ ports.Demuxer = (*Demuxer)(nil)
