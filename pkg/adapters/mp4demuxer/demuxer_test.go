package mp4demuxer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framefusion/pkg/adapters/ggrenderer"
	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/adapters/mjpegwriter"
	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/synth"
)

// writeSynth encodes a numbered test video and returns its path.
func writeSynth(t *testing.T, opts synth.Options) string {
	t.Helper()
	data, err := synth.Generate(context.Background(), ggrenderer.New(), mjpegwriter.New(), opts, logger.NewNoop())
	if err != nil {
		t.Fatalf("synth.Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "synth.mp4")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openSynth(t *testing.T) *Demuxer {
	t.Helper()
	d, err := Open(writeSynth(t, synth.DefaultOptions()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_Streams(t *testing.T) {
	d := openSynth(t)

	streams := d.Streams()
	if len(streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(streams))
	}
	s := streams[0]
	if s.MediaType != ports.MediaTypeVideo {
		t.Errorf("media type = %s", s.MediaType)
	}
	if s.Codec != "jpeg" {
		t.Errorf("codec = %s", s.Codec)
	}
	if s.Width != 320 || s.Height != 180 {
		t.Errorf("size = %dx%d", s.Width, s.Height)
	}
	if s.TimeBase.Num != 1 || s.TimeBase.Den != 1000 {
		t.Errorf("time base = %s", s.TimeBase)
	}
	if s.Duration != 2000 {
		t.Errorf("duration = %d, want 2000", s.Duration)
	}
	if s.FrameRate < 29.9 || s.FrameRate > 30.1 {
		t.Errorf("frame rate = %v", s.FrameRate)
	}
}

func TestRead_AllPackets(t *testing.T) {
	d := openSynth(t)

	var n int
	last := int64(-1)
	for {
		pkt, err := d.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if pkt == nil {
			break
		}
		if pkt.PTS <= last {
			t.Errorf("packet %d pts %d not after %d", n, pkt.PTS, last)
		}
		if want := int64(synth.FrameTimestampMs(n, 30)); pkt.PTS != want {
			t.Errorf("packet %d pts = %d, want %d", n, pkt.PTS, want)
		}
		if pkt.Keyframe != (n%10 == 0) {
			t.Errorf("packet %d keyframe = %v", n, pkt.Keyframe)
		}
		last = pkt.PTS
		n++
	}
	if n != 60 {
		t.Errorf("packets = %d, want 60", n)
	}

	// End of stream stays at end.
	if pkt, err := d.Read(); pkt != nil || err != nil {
		t.Errorf("Read after end = %v, %v", pkt, err)
	}
}

func TestRead_PacketHoldsNumberedFrame(t *testing.T) {
	d := openSynth(t)
	if err := d.Seek(0, 1000, true); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	pkt, err := d.Read()
	if err != nil || pkt == nil {
		t.Fatalf("Read: %v, %v", pkt, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(pkt.Data))
	if err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}
	x, y := synth.SamplePoint(320, 180)
	if got := synth.FrameIndex(img.At(x, y)); got != 30 {
		t.Errorf("frame index = %d, want 30", got)
	}
}

func TestSeek(t *testing.T) {
	tests := []struct {
		name  string
		pts   int64
		exact bool
		want  int64
	}{
		{"keyframe before target", 500, false, 333},
		{"exactly on keyframe", 333, false, 333},
		{"exact sample", 500, true, 500},
		{"before first sample", -50, false, 0},
		{"past end", 99999, false, 1667},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openSynth(t)
			if err := d.Seek(0, tt.pts, tt.exact); err != nil {
				t.Fatalf("Seek: %v", err)
			}
			pkt, err := d.Read()
			if err != nil || pkt == nil {
				t.Fatalf("Read: %v, %v", pkt, err)
			}
			if pkt.PTS != tt.want {
				t.Errorf("pts = %d, want %d", pkt.PTS, tt.want)
			}
		})
	}
}

func TestSeek_InvalidStream(t *testing.T) {
	d := openSynth(t)
	if err := d.Seek(3, 0, false); !errors.Is(err, ErrInvalidStream) {
		t.Errorf("got %v, want ErrInvalidStream", err)
	}
}

func TestClose(t *testing.T) {
	d := openSynth(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := d.Read(); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: %v", err)
	}
	if err := d.Seek(0, 0, false); !errors.Is(err, ErrClosed) {
		t.Errorf("Seek after Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOpen_Invalid(t *testing.T) {
	if _, err := NewFromReader(bytes.NewReader([]byte("not an mp4 file"))); err == nil {
		t.Error("expected an error for garbage input")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// progressiveFile builds a non-fragmented file with six samples of 100 ticks
// in chunks of 2, 2, 1 and 1 samples. The chunks are stored out of order with
// filler between them, B-frame style ctts reorders presentation, and
// samples 1 and 4 are sync samples.
func progressiveFile(t *testing.T) ([]byte, [][]byte) {
	t.Helper()
	samples := make([][]byte, 6)
	for i := range samples {
		samples[i] = bytes.Repeat([]byte{byte('a' + i)}, 3+i)
	}

	moov := mp4.NewMoovBox()
	moov.AddChild(mp4.CreateMvhd())
	trak := mp4.CreateEmptyTrak(1, 1000, "video", "und")
	moov.AddChild(trak)
	stbl := trak.Mdia.Minf.Stbl
	stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("jpeg", 16, 16, nil))
	stbl.Stts.SampleCount = []uint32{6}
	stbl.Stts.SampleTimeDelta = []uint32{100}
	ctts := &mp4.CttsBox{}
	if err := ctts.AddSampleCountsAndOffset([]uint32{1, 1, 1, 1, 1, 1}, []int32{100, 200, 0, 100, 200, 0}); err != nil {
		t.Fatalf("ctts: %v", err)
	}
	stbl.AddChild(ctts)
	stbl.AddChild(&mp4.StssBox{SampleNumber: []uint32{1, 4}})
	if err := stbl.Stsc.AddEntry(1, 2, 1); err != nil {
		t.Fatalf("stsc: %v", err)
	}
	if err := stbl.Stsc.AddEntry(3, 1, 1); err != nil {
		t.Fatalf("stsc: %v", err)
	}
	stbl.Stsz.SampleNumber = 6
	for _, s := range samples {
		stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(s)))
	}
	stbl.Stco.ChunkOffset = make([]uint32, 4)

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "mp41"})
	mdat := &mp4.MdatBox{}

	// Payload order: chunk 2, filler, chunk 1, chunk 4, chunk 3.
	chunks := map[int][]byte{
		1: append(append([]byte{}, samples[0]...), samples[1]...),
		2: append(append([]byte{}, samples[2]...), samples[3]...),
		3: samples[4],
		4: samples[5],
	}
	var payload []byte
	offsets := make(map[int]int)
	for _, nr := range []int{2, 0, 1, 4, 3} {
		if nr == 0 {
			payload = append(payload, "filler"...)
			continue
		}
		offsets[nr] = len(payload)
		payload = append(payload, chunks[nr]...)
	}
	mdat.SetData(payload)

	start := ftyp.Size() + moov.Size() + mdat.HeaderSize()
	for nr, off := range offsets {
		stbl.Stco.ChunkOffset[nr-1] = uint32(start) + uint32(off)
	}

	var buf bytes.Buffer
	for _, box := range []mp4.Box{ftyp, moov, mdat} {
		if err := box.Encode(&buf); err != nil {
			t.Fatalf("encode %s: %v", box.Type(), err)
		}
	}
	return buf.Bytes(), samples
}

func TestProgressive_ReadsChunkedSamples(t *testing.T) {
	data, samples := progressiveFile(t)
	d, err := NewFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewFromReader: %v", err)
	}
	defer d.Close()

	s := d.Streams()[0]
	if s.Codec != "jpeg" || s.MediaType != ports.MediaTypeVideo {
		t.Errorf("stream = %s %s", s.MediaType, s.Codec)
	}
	if s.Duration != 600 {
		t.Errorf("duration = %d, want 600", s.Duration)
	}

	wantPTS := []int64{100, 300, 200, 400, 600, 500}
	for i := range samples {
		pkt, err := d.Read()
		if err != nil || pkt == nil {
			t.Fatalf("Read %d: %v, %v", i, pkt, err)
		}
		if !bytes.Equal(pkt.Data, samples[i]) {
			t.Errorf("sample %d data = %q, want %q", i+1, pkt.Data, samples[i])
		}
		if pkt.DTS != int64(100*i) || pkt.PTS != wantPTS[i] {
			t.Errorf("sample %d dts/pts = %d/%d, want %d/%d", i+1, pkt.DTS, pkt.PTS, 100*i, wantPTS[i])
		}
		if pkt.Keyframe != (i == 0 || i == 3) {
			t.Errorf("sample %d keyframe = %v", i+1, pkt.Keyframe)
		}
	}
	if pkt, err := d.Read(); pkt != nil || err != nil {
		t.Errorf("Read after end = %v, %v", pkt, err)
	}
}

func TestProgressive_SeekToSyncSample(t *testing.T) {
	data, samples := progressiveFile(t)

	tests := []struct {
		pts    int64
		sample int
	}{
		{450, 3},
		{400, 3},
		{399, 0},
		{50, 0},
		{5000, 3},
	}
	for _, tt := range tests {
		d, err := NewFromReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("NewFromReader: %v", err)
		}
		if err := d.Seek(0, tt.pts, false); err != nil {
			t.Fatalf("Seek(%d): %v", tt.pts, err)
		}
		pkt, err := d.Read()
		if err != nil || pkt == nil {
			t.Fatalf("Read after Seek(%d): %v, %v", tt.pts, pkt, err)
		}
		if !bytes.Equal(pkt.Data, samples[tt.sample]) {
			t.Errorf("Seek(%d) read %q, want sample %d", tt.pts, pkt.Data, tt.sample+1)
		}
		d.Close()
	}
}

// twoTrackFile builds a fragmented file with video on track 1 and audio on
// track 2. The first fragment lists the audio traf first and the second
// lists video first; samples alternate between tracks so each traf holds
// several runs.
func twoTrackFile(t *testing.T) []byte {
	t.Helper()
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(1000, "video", "und")
	init.AddEmptyTrack(1000, "audio", "und")
	video, audio := init.Moov.Traks[0], init.Moov.Traks[1]
	video.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("jpeg", 16, 16, nil))
	audio.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateAudioSampleEntryBox("mp4a", 2, 16, 48000, nil))

	var buf bytes.Buffer
	if err := init.Encode(&buf); err != nil {
		t.Fatalf("encode init: %v", err)
	}

	for n, order := range [][]uint32{{2, 1}, {1, 2}} {
		frag, err := mp4.CreateMultiTrackFragment(uint32(n+1), order)
		if err != nil {
			t.Fatalf("create fragment: %v", err)
		}
		for i := 0; i < 3; i++ {
			idx := 3*n + i
			flags := mp4.NonSyncSampleFlags
			if i == 0 {
				flags = mp4.SyncSampleFlags
			}
			v := []byte(fmt.Sprintf("video-%d", idx))
			if err := frag.AddFullSampleToTrack(mp4.FullSample{
				Sample:     mp4.Sample{Flags: flags, Size: uint32(len(v)), Dur: 100},
				DecodeTime: uint64(100 * idx),
				Data:       v,
			}, 1); err != nil {
				t.Fatalf("add video sample: %v", err)
			}
			a := []byte(fmt.Sprintf("audio-%d-", idx))
			if err := frag.AddFullSampleToTrack(mp4.FullSample{
				Sample:     mp4.Sample{Flags: mp4.SyncSampleFlags, Size: uint32(len(a)), Dur: 100},
				DecodeTime: uint64(100 * idx),
				Data:       a,
			}, 2); err != nil {
				t.Fatalf("add audio sample: %v", err)
			}
		}
		if err := frag.Encode(&buf); err != nil {
			t.Fatalf("encode fragment: %v", err)
		}
	}
	return buf.Bytes()
}

func TestFragmented_MultipleTracks(t *testing.T) {
	d, err := NewFromReader(bytes.NewReader(twoTrackFile(t)))
	if err != nil {
		t.Fatalf("NewFromReader: %v", err)
	}
	defer d.Close()

	streams := d.Streams()
	if len(streams) != 2 || streams[0].MediaType != ports.MediaTypeVideo || streams[1].MediaType != ports.MediaTypeAudio {
		t.Fatalf("streams = %+v", streams)
	}

	var video, audio []string
	for {
		pkt, err := d.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if pkt == nil {
			break
		}
		switch pkt.StreamIndex {
		case 0:
			if want := int64(100 * len(video)); pkt.PTS != want {
				t.Errorf("video packet %d pts = %d, want %d", len(video), pkt.PTS, want)
			}
			if pkt.Keyframe != (len(video)%3 == 0) {
				t.Errorf("video packet %d keyframe = %v", len(video), pkt.Keyframe)
			}
			video = append(video, string(pkt.Data))
		case 1:
			audio = append(audio, string(pkt.Data))
		}
	}

	if len(video) != 6 || len(audio) != 6 {
		t.Fatalf("read %d video and %d audio packets, want 6 each", len(video), len(audio))
	}
	for i := range video {
		if want := fmt.Sprintf("video-%d", i); video[i] != want {
			t.Errorf("video packet %d = %q, want %q", i, video[i], want)
		}
		if want := fmt.Sprintf("audio-%d-", i); audio[i] != want {
			t.Errorf("audio packet %d = %q, want %q", i, audio[i], want)
		}
	}

	if err := d.Seek(0, 350, false); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	pkt, err := d.Read()
	if err != nil || pkt == nil || string(pkt.Data) != "video-3" {
		t.Errorf("Read after Seek(350) = %v, %v; want video-3", pkt, err)
	}
}
