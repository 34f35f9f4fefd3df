package extractor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/user/framefusion/pkg/mocks"
	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/timebase"
)

func openSynthetic(t *testing.T, stream mocks.SyntheticStream, opts Options) (*Extractor, *mocks.MediaBackend) {
	t.Helper()
	backend := mocks.NewMediaBackend(stream)
	if opts.Source == "" {
		opts.Source = "synthetic.mp4"
	}
	e, err := Open(context.Background(), opts, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { e.Dispose() })
	return e, backend
}

func sparseStream() mocks.SyntheticStream {
	return mocks.SyntheticStream{
		TimeBase: timebase.New(1, 1000),
		PTS:      []int64{0, 512, 1024, 1536},
	}
}

// sixtyFrames is 60 frames at 30fps with frame i at pts i*1000 and a
// keyframe every 10 frames.
func sixtyFrames() mocks.SyntheticStream {
	s := mocks.NewSyntheticStream(60, 30, timebase.New(1, 30000))
	s.KeyframeInterval = 10
	return s
}

func TestGetFrameAtTime_SparseStream(t *testing.T) {
	e, _ := openSynthetic(t, sparseStream(), Options{})

	tests := []struct {
		seconds float64
		want    int64
	}{
		{0.6, 512},
		{0.0, 0},
		{5.0, 1536},
	}

	for _, tt := range tests {
		frame, err := e.GetFrameAtTime(tt.seconds)
		if err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", tt.seconds, err)
		}
		if frame.PTS != tt.want {
			t.Errorf("GetFrameAtTime(%v) = pts %d, want %d", tt.seconds, frame.PTS, tt.want)
		}
	}
}

func TestGetFrameAtTime_NonMonotonicQueries(t *testing.T) {
	e, backend := openSynthetic(t, sixtyFrames(), Options{})

	tests := []struct {
		seconds   float64
		wantFrame int
		wantSeeks int
	}{
		{1.0, 30, 1},
		{0.0, 0, 2},
		{1.5, 45, 2},
		{0.5, 15, 3},
	}

	for _, tt := range tests {
		frame, err := e.GetFrameAtTime(tt.seconds)
		if err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", tt.seconds, err)
		}
		if got := backend.Stream.FrameIndex(frame.PTS); got != tt.wantFrame {
			t.Errorf("GetFrameAtTime(%v) = frame %d, want %d", tt.seconds, got, tt.wantFrame)
		}
		if got := len(backend.Seeks()); got != tt.wantSeeks {
			t.Errorf("after GetFrameAtTime(%v): %d seeks, want %d", tt.seconds, got, tt.wantSeeks)
		}
	}
}

func TestGetFrameAtTime_MonotonicScanSeeksOnce(t *testing.T) {
	e, backend := openSynthetic(t, sixtyFrames(), Options{})

	for i := 0; i < 20; i++ {
		seconds := float64(i) * 0.1
		frame, err := e.GetFrameAtTime(seconds)
		if err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", seconds, err)
		}
		if got, want := backend.Stream.FrameIndex(frame.PTS), i*3; got != want {
			t.Errorf("GetFrameAtTime(%v) = frame %d, want %d", seconds, got, want)
		}
	}

	if got := len(backend.Seeks()); got != 1 {
		t.Errorf("expected a single seek, got %d", got)
	}
	if got := e.Stats().DecodersCreated; got != 1 {
		t.Errorf("expected a single decoder, got %d", got)
	}
}

func TestGetFrameAtTime_BackwardJumpReseeksOnce(t *testing.T) {
	e, backend := openSynthetic(t, sixtyFrames(), Options{})

	if _, err := e.GetFrameAtTime(1.2); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	before := len(backend.Seeks())

	frame, err := e.GetFrameAtTime(1.1)
	if err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if got := len(backend.Seeks()) - before; got != 1 {
		t.Errorf("expected 1 seek for the backward jump, got %d", got)
	}
	if got := backend.Stream.FrameIndex(frame.PTS); got != 33 {
		t.Errorf("expected frame 33, got %d", got)
	}
}

func TestGetFrameAtTime_Idempotent(t *testing.T) {
	for _, seconds := range []float64{0.6, 0.0, 1.0, 3.0} {
		e, backend := openSynthetic(t, sparseStream(), Options{})

		first, err := e.GetFrameAtTime(seconds)
		if err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", seconds, err)
		}
		reads := backend.VideoReads()

		second, err := e.GetFrameAtTime(seconds)
		if err != nil {
			t.Fatalf("repeat GetFrameAtTime(%v) failed: %v", seconds, err)
		}
		if first.PTS != second.PTS {
			t.Errorf("repeat query at %v returned pts %d, then %d", seconds, first.PTS, second.PTS)
		}
		if got := backend.VideoReads() - reads; got != 0 {
			t.Errorf("repeat query at %v read %d packets, want 0", seconds, got)
		}
	}
}

func TestGetFrameAtTime_TargetBeforeFirstFrame(t *testing.T) {
	stream := mocks.SyntheticStream{
		TimeBase: timebase.New(1, 1000),
		PTS:      []int64{100, 200, 300},
	}
	e, backend := openSynthetic(t, stream, Options{})

	frame, err := e.GetFrameAtTime(0)
	if err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if frame.PTS != 100 {
		t.Errorf("expected first frame 100, got %d", frame.PTS)
	}

	for _, seconds := range []float64{0.0, 0.05} {
		reads := backend.VideoReads()
		frame, err := e.GetFrameAtTime(seconds)
		if err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", seconds, err)
		}
		if frame.PTS != 100 {
			t.Errorf("GetFrameAtTime(%v) = pts %d, want first frame 100", seconds, frame.PTS)
		}
		if got := backend.VideoReads() - reads; got != 0 {
			t.Errorf("GetFrameAtTime(%v) read %d packets, want 0", seconds, got)
		}
	}

	frame, err = e.GetFrameAtTime(0.25)
	if err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if frame.PTS != 200 {
		t.Errorf("expected pts 200, got %d", frame.PTS)
	}
}

func TestGetFrameAtTime_ClosestNotAfter(t *testing.T) {
	streams := map[string]mocks.SyntheticStream{
		"one frame per packet": sparseStream(),
		"two frames per packet": {
			TimeBase:        timebase.New(1, 1000),
			PTS:             []int64{0, 512, 1024, 1536, 2048, 2560},
			FramesPerPacket: 2,
		},
		"decoder delay": {
			TimeBase:         timebase.New(1, 1000),
			PTS:              []int64{0, 40, 80, 120, 160, 200, 240, 280},
			DecoderDelay:     2,
			KeyframeInterval: 3,
		},
		"interleaved audio": {
			TimeBase:  timebase.New(1, 1000),
			PTS:       []int64{0, 100, 200, 300, 400},
			WithAudio: true,
		},
	}
	times := []float64{0.3, 0.05, 0.55, 1.1, 0.0, 2.9, 0.2, 0.21, 1.6, 0.04, 10}

	for name, stream := range streams {
		t.Run(name, func(t *testing.T) {
			e, _ := openSynthetic(t, stream, Options{})

			for _, seconds := range times {
				target := stream.TimeBase.TimeToPTS(seconds)
				want := stream.PTS[0]
				for _, p := range stream.PTS {
					if p <= target {
						want = p
					}
				}

				frame, err := e.GetFrameAtTime(seconds)
				if err != nil {
					t.Fatalf("GetFrameAtTime(%v) failed: %v", seconds, err)
				}
				if frame.PTS != want {
					t.Errorf("GetFrameAtTime(%v) = pts %d, want %d", seconds, frame.PTS, want)
				}
			}
		})
	}
}

func TestGetFrameAtTime_SingleBatchCache(t *testing.T) {
	stream := mocks.SyntheticStream{
		TimeBase:     timebase.New(1, 1000),
		PTS:          []int64{43, 621, 656, 742, 852, 1538},
		DecoderDelay: 1,
	}
	e, _ := openSynthetic(t, stream, Options{CacheSize: 1})

	tests := []struct {
		pts  int64
		want int64
	}{
		{-55, 43},
		{218, 43},
		{553, 43},
		{640, 621},
		{700, 656},
		{2000, 1538},
	}
	for _, tt := range tests {
		frame, err := e.GetFrameAtPTS(tt.pts)
		if err != nil {
			t.Fatalf("GetFrameAtPTS(%d) failed: %v", tt.pts, err)
		}
		if frame.PTS != tt.want {
			t.Errorf("GetFrameAtPTS(%d) = pts %d, want %d", tt.pts, frame.PTS, tt.want)
		}
	}
}

// closestNotAfterPTS is the answer every query must produce.
func closestNotAfterPTS(pts []int64, target int64) int64 {
	want := pts[0]
	for _, p := range pts {
		if p <= target {
			want = p
		}
	}
	return want
}

func TestGetFrameAtPTS_RandomStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 400; i++ {
		pts := make([]int64, 1+rng.Intn(12))
		next := int64(rng.Intn(100))
		for j := range pts {
			pts[j] = next
			next += 1 + int64(rng.Intn(700))
		}
		stream := mocks.SyntheticStream{
			TimeBase:         timebase.New(1, 1000),
			PTS:              pts,
			FramesPerPacket:  1 + rng.Intn(3),
			DecoderDelay:     rng.Intn(3),
			KeyframeInterval: 1 + rng.Intn(4),
		}
		opts := Options{CacheSize: 1 + rng.Intn(3)}

		e, _ := openSynthetic(t, stream, opts)
		last := pts[len(pts)-1]
		for q := 0; q < 12; q++ {
			target := int64(rng.Intn(int(last)+300)) - 100
			frame, err := e.GetFrameAtPTS(target)
			if err != nil {
				t.Fatalf("stream %d %v, cache %d: GetFrameAtPTS(%d) failed: %v", i, pts, opts.CacheSize, target, err)
			}
			if want := closestNotAfterPTS(pts, target); frame.PTS != want {
				t.Fatalf("stream %d %v (fpp %d, delay %d, gop %d), cache %d: GetFrameAtPTS(%d) = %d, want %d",
					i, pts, stream.FramesPerPacket, stream.DecoderDelay, stream.KeyframeInterval,
					opts.CacheSize, target, frame.PTS, want)
			}
		}
	}
}

func TestGetFrameAtTime_RetriesNearEndOfStream(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	backend.NewFilterFunc = func(stream ports.StreamDescriptor, opts ports.FilterOptions) (ports.Filter, error) {
		// Loses the last frame, so a seek onto it finds nothing.
		return &mocks.Filter{ApplyFunc: func(frames []*ports.Frame) ([]*ports.Frame, error) {
			var out []*ports.Frame
			for _, f := range frames {
				if f.PTS < 1536 {
					out = append(out, f)
				}
			}
			return out, nil
		}}, nil
	}
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	frame, err := e.GetFrameAtTime(1.6)
	if err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if frame.PTS != 1024 {
		t.Errorf("expected pts 1024, got %d", frame.PTS)
	}

	seeks := backend.Seeks()
	if len(seeks) != 2 {
		t.Fatalf("expected 2 seeks, got %d", len(seeks))
	}
	if seeks[0].PTS != 1600 || seeks[1].PTS != 1500 {
		t.Errorf("expected seeks at 1600 then 1500, got %d then %d", seeks[0].PTS, seeks[1].PTS)
	}
	if got := e.Stats().Retries; got != 1 {
		t.Errorf("expected 1 retry, got %d", got)
	}
}

func TestGetFrameAtTime_RetryBudgetExhausted(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	backend.DecodeFunc = func(pkt *ports.Packet) ([]*ports.Frame, error) {
		return nil, nil
	}
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	_, err = e.GetFrameAtTime(1.0)
	if !errors.Is(err, ErrNoMatchingFrame) {
		t.Fatalf("expected ErrNoMatchingFrame, got %v", err)
	}

	seeks := backend.Seeks()
	if len(seeks) != 1+DefaultMaxRetries {
		t.Fatalf("expected %d seeks, got %d", 1+DefaultMaxRetries, len(seeks))
	}
	for i, s := range seeks {
		if want := int64(1000 - 100*i); s.PTS != want {
			t.Errorf("seek %d at pts %d, want %d", i, s.PTS, want)
		}
	}

	// The failed query must not leave state that breaks the next one.
	backend.DecodeFunc = nil
	frame, err := e.GetFrameAtTime(1.0)
	if err != nil {
		t.Fatalf("GetFrameAtTime after exhaustion failed: %v", err)
	}
	if frame.PTS != 512 {
		t.Errorf("expected pts 512, got %d", frame.PTS)
	}
	if got := len(backend.Seeks()); got != 2+DefaultMaxRetries {
		t.Errorf("expected the next query to reseek, got %d seeks", got)
	}
}

func TestGetFrameAtTime_NoRetries(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	backend.DecodeFunc = func(pkt *ports.Packet) ([]*ports.Frame, error) {
		return nil, nil
	}
	e, err := Open(context.Background(), Options{Source: "x.mp4", MaxRetries: -1}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	if _, err := e.GetFrameAtTime(0.5); !errors.Is(err, ErrNoMatchingFrame) {
		t.Fatalf("expected ErrNoMatchingFrame, got %v", err)
	}
	if got := len(backend.Seeks()); got != 1 {
		t.Errorf("expected 1 seek, got %d", got)
	}
}

func TestGetFrameAtTime_UpstreamErrorPropagates(t *testing.T) {
	readErr := errors.New("disk on fire")
	backend := mocks.NewMediaBackend(sparseStream())
	backend.ReadFunc = func() (*ports.Packet, error) {
		return nil, readErr
	}
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	if _, err := e.GetFrameAtTime(0.5); !errors.Is(err, readErr) {
		t.Fatalf("expected the read error, got %v", err)
	}
	if got := len(backend.Seeks()); got != 1 {
		t.Errorf("upstream errors must not be retried, got %d seeks", got)
	}

	backend.ReadFunc = nil
	frame, err := e.GetFrameAtTime(0.5)
	if err != nil {
		t.Fatalf("GetFrameAtTime after error failed: %v", err)
	}
	if frame.PTS != 0 {
		t.Errorf("expected pts 0, got %d", frame.PTS)
	}
}

func TestGetFrameAtTime_ReseekRecreatesDecoder(t *testing.T) {
	e, backend := openSynthetic(t, sixtyFrames(), Options{})

	for _, seconds := range []float64{1.0, 0.2, 1.9} {
		if _, err := e.GetFrameAtTime(seconds); err != nil {
			t.Fatalf("GetFrameAtTime(%v) failed: %v", seconds, err)
		}
	}

	if len(backend.Decoders) != 2 {
		t.Fatalf("expected 2 decoders, got %d", len(backend.Decoders))
	}
	if !backend.Decoders[0].Flushed {
		t.Error("replaced decoder was not flushed")
	}
	if backend.Decoders[1].ThreadCount != DefaultThreadCount {
		t.Errorf("expected %d decoder threads, got %d", DefaultThreadCount, backend.Decoders[1].ThreadCount)
	}
	if got := backend.Filters[0].Resets; got != 2 {
		t.Errorf("expected the filter to be reset on each seek, got %d", got)
	}
}

func TestGetFrameAtTime_FarForwardJumpReseeks(t *testing.T) {
	stream := mocks.NewSyntheticStream(300, 30, timebase.New(1, 30000))
	stream.KeyframeInterval = 30
	e, backend := openSynthetic(t, stream, Options{ReseekThreshold: 2})

	if _, err := e.GetFrameAtTime(1.0); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if _, err := e.GetFrameAtTime(2.5); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if got := len(backend.Seeks()); got != 1 {
		t.Errorf("jump within threshold should not seek, got %d seeks", got)
	}

	frame, err := e.GetFrameAtTime(8.0)
	if err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if got := len(backend.Seeks()); got != 2 {
		t.Errorf("jump beyond threshold should seek, got %d seeks", got)
	}
	if got := backend.Stream.FrameIndex(frame.PTS); got != 240 {
		t.Errorf("expected frame 240, got %d", got)
	}
}

func TestGetFrameAtPTS(t *testing.T) {
	e, _ := openSynthetic(t, sparseStream(), Options{})

	frame, err := e.GetFrameAtPTS(1100)
	if err != nil {
		t.Fatalf("GetFrameAtPTS failed: %v", err)
	}
	if frame.PTS != 1024 {
		t.Errorf("expected pts 1024, got %d", frame.PTS)
	}
}

func TestGetImageDataAtTime_TrimsStride(t *testing.T) {
	stream := sixtyFrames()
	stream.Width = 3
	stream.Height = 2
	stream.RowPadding = 5
	e, _ := openSynthetic(t, stream, Options{})

	img, err := e.GetImageDataAtTime(0.5)
	if err != nil {
		t.Fatalf("GetImageDataAtTime failed: %v", err)
	}
	if img.Width != 3 || img.Height != 2 {
		t.Errorf("expected 3x2, got %dx%d", img.Width, img.Height)
	}
	if len(img.Data) != 3*2*4 {
		t.Fatalf("expected %d bytes, got %d", 3*2*4, len(img.Data))
	}
	for i := 0; i < len(img.Data); i += 4 {
		if img.Data[i] != 15 {
			t.Errorf("pixel %d: expected frame index 15 in red, got %d", i/4, img.Data[i])
		}
		if img.Data[i+3] != 0xFF {
			t.Errorf("pixel %d: padding leaked into alpha: %#x", i/4, img.Data[i+3])
		}
	}

	rgba, err := img.RGBA()
	if err != nil {
		t.Fatalf("RGBA failed: %v", err)
	}
	if r, _, _, _ := rgba.At(2, 1).RGBA(); r>>8 != 15 {
		t.Errorf("expected red 15 at (2,1), got %d", r>>8)
	}
}

func TestReadFrames(t *testing.T) {
	stream := mocks.SyntheticStream{
		TimeBase:        timebase.New(1, 1000),
		PTS:             []int64{0, 40, 80, 120, 160},
		FramesPerPacket: 2,
		DecoderDelay:    1,
		WithAudio:       true,
	}
	e, backend := openSynthetic(t, stream, Options{})

	if _, err := e.GetFrameAtTime(0.1); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}

	var got []int64
	err := e.ReadFrames(func(f *ports.Frame) error {
		got = append(got, f.PTS)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFrames failed: %v", err)
	}
	if len(got) != len(stream.PTS) {
		t.Fatalf("expected %d frames, got %v", len(stream.PTS), got)
	}
	for i, p := range stream.PTS {
		if got[i] != p {
			t.Errorf("frame %d: expected pts %d, got %d", i, p, got[i])
		}
	}

	seeks := len(backend.Seeks())
	frame, err := e.GetFrameAtTime(0.1)
	if err != nil {
		t.Fatalf("GetFrameAtTime after ReadFrames failed: %v", err)
	}
	if frame.PTS != 80 {
		t.Errorf("expected pts 80, got %d", frame.PTS)
	}
	if len(backend.Seeks()) != seeks+1 {
		t.Error("expected the query after ReadFrames to reseek")
	}
}

func TestReadFrames_CallbackErrorStops(t *testing.T) {
	e, _ := openSynthetic(t, sixtyFrames(), Options{})

	stop := errors.New("stop")
	count := 0
	err := e.ReadFrames(func(f *ports.Frame) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 callbacks, got %d", count)
	}
}

func TestDuration(t *testing.T) {
	e, _ := openSynthetic(t, sixtyFrames(), Options{})

	if d := e.Duration(); math.Abs(d-2.0) > 1e-9 {
		t.Errorf("expected duration 2.0, got %v", d)
	}
	if e.Width() != 4 || e.Height() != 2 {
		t.Errorf("expected 4x2, got %dx%d", e.Width(), e.Height())
	}
	if e.TimeBase() != timebase.New(1, 30000) {
		t.Errorf("unexpected time base %s", e.TimeBase())
	}
}

func TestDuration_FallsBackToContainer(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	backend.OpenDemuxerFunc = func(path string) (ports.Demuxer, error) {
		return &stubDemuxer{
			streams:  []ports.StreamDescriptor{{Index: 0, MediaType: ports.MediaTypeVideo, TimeBase: timebase.New(1, 1000)}},
			duration: 12.5,
		}, nil
	}
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	if d := e.Duration(); d != 12.5 {
		t.Errorf("expected container duration 12.5, got %v", d)
	}
}

func TestOpen_NoVideoStream(t *testing.T) {
	demuxer := &stubDemuxer{
		streams: []ports.StreamDescriptor{{Index: 0, MediaType: ports.MediaTypeAudio, TimeBase: timebase.New(1, 48000)}},
	}
	backend := mocks.NewMediaBackend(sparseStream())
	backend.OpenDemuxerFunc = func(path string) (ports.Demuxer, error) {
		return demuxer, nil
	}

	_, err := Open(context.Background(), Options{Source: "audio.m4a"}, Dependencies{Backend: backend})
	if !errors.Is(err, ErrNoVideoStream) {
		t.Fatalf("expected ErrNoVideoStream, got %v", err)
	}
	if !demuxer.closed {
		t.Error("demuxer should be closed after a failed open")
	}
}

func TestOpen_UnsupportedPixelFormat(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())

	_, err := Open(context.Background(), Options{Source: "x.mp4", OutputPixelFormat: "yuv420p"}, Dependencies{Backend: backend})
	if !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Fatalf("expected ErrUnsupportedPixelFormat, got %v", err)
	}
	if len(backend.OpenedPaths) != 0 {
		t.Error("source should not be opened with invalid options")
	}
}

func TestOpen_InvalidOptions(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())

	tests := []struct {
		name string
		opts Options
		deps Dependencies
	}{
		{"empty source", Options{}, Dependencies{Backend: backend}},
		{"no backend", Options{Source: "x.mp4"}, Dependencies{}},
		{"negative fps", Options{Source: "x.mp4", InterpolateFPS: -1}, Dependencies{Backend: backend}},
		{"unknown mode", Options{Source: "x.mp4", InterpolateMode: "smooth"}, Dependencies{Backend: backend}},
		{"url without fetcher", Options{Source: "https://example.com/a.mp4"}, Dependencies{Backend: backend}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.opts, tt.deps); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestOpen_PassesFilterOptions(t *testing.T) {
	_, backend := openSynthetic(t, sparseStream(), Options{
		OutputPixelFormat: ports.PixelFormatRGB24,
		InterpolateFPS:    25,
		InterpolateMode:   ports.InterpolateHighQuality,
	})

	got := backend.Filters[0].Options
	if got.Output != ports.PixelFormatRGB24 || got.FPS != 25 || got.Mode != ports.InterpolateHighQuality {
		t.Errorf("unexpected filter options %+v", got)
	}
}

func TestOpen_RemoteSource(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	fetcher := &mocks.Fetcher{}

	e, err := Open(context.Background(), Options{Source: "https://example.com/clip.mp4"}, Dependencies{
		Backend: backend,
		Fetcher: fetcher,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if len(fetcher.Fetched) != 1 || fetcher.Fetched[0] != "https://example.com/clip.mp4" {
		t.Errorf("unexpected fetches %v", fetcher.Fetched)
	}
	if backend.OpenedPaths[0] != "/tmp/fetched/1" {
		t.Errorf("demuxer opened %q instead of the download", backend.OpenedPaths[0])
	}

	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if len(fetcher.Released) != 1 || fetcher.Released[0] != "/tmp/fetched/1" {
		t.Errorf("download was not released: %v", fetcher.Released)
	}
}

func TestOpen_FetchErrorIsFatal(t *testing.T) {
	fetchErr := errors.New("content-type text/html")
	fetcher := &mocks.Fetcher{FetchFunc: func(ctx context.Context, url string) (string, error) {
		return "", fetchErr
	}}

	_, err := Open(context.Background(), Options{Source: "http://example.com/page"}, Dependencies{
		Backend: mocks.NewMediaBackend(sparseStream()),
		Fetcher: fetcher,
	})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestDispose(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := e.GetFrameAtTime(0.6); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}

	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if err := e.Dispose(); err != nil {
		t.Errorf("second Dispose should be a no-op, got %v", err)
	}

	if !backend.Demuxers[0].Closed {
		t.Error("demuxer not closed")
	}
	if !backend.Filters[0].Closed {
		t.Error("filter not closed")
	}
	if !backend.Decoders[0].Flushed {
		t.Error("decoder not flushed")
	}
	if e.cache.Len() != 0 || e.cursor.HasPrevious || e.streamIndex != -1 {
		t.Error("state not cleared")
	}

	if _, err := e.GetFrameAtTime(0.6); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
	if err := e.ReadFrames(func(*ports.Frame) error { return nil }); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed from ReadFrames, got %v", err)
	}
}

func TestDispose_AggregatesErrors(t *testing.T) {
	demuxer := &stubDemuxer{
		streams:  []ports.StreamDescriptor{{Index: 0, MediaType: ports.MediaTypeVideo, TimeBase: timebase.New(1, 1000)}},
		closeErr: errors.New("close failed"),
	}
	releaseErr := errors.New("release failed")

	backend := mocks.NewMediaBackend(sparseStream())
	backend.OpenDemuxerFunc = func(path string) (ports.Demuxer, error) {
		return demuxer, nil
	}
	fetcher := &mocks.Fetcher{ReleaseFunc: func(path string) error { return releaseErr }}

	e, err := Open(context.Background(), Options{Source: "https://example.com/a.mp4"}, Dependencies{Backend: backend, Fetcher: fetcher})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = e.Dispose()
	if !errors.Is(err, demuxer.closeErr) || !errors.Is(err, releaseErr) {
		t.Fatalf("expected both errors, got %v", err)
	}
	if err := e.Dispose(); err != nil {
		t.Errorf("second Dispose should be a no-op, got %v", err)
	}
}

func TestConcurrentCallIsRejected(t *testing.T) {
	backend := mocks.NewMediaBackend(sparseStream())
	e, err := Open(context.Background(), Options{Source: "x.mp4"}, Dependencies{Backend: backend})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Dispose()

	var inner error
	backend.DecodeFunc = func(pkt *ports.Packet) ([]*ports.Frame, error) {
		_, inner = e.GetFrameAtTime(0)
		backend.DecodeFunc = nil
		return nil, nil
	}

	if _, err := e.GetFrameAtTime(0.6); err != nil {
		t.Fatalf("GetFrameAtTime failed: %v", err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Errorf("expected ErrBusy for the overlapping call, got %v", inner)
	}
	if err := e.Dispose(); err != nil {
		t.Errorf("Dispose failed: %v", err)
	}
}

type stubDemuxer struct {
	streams  []ports.StreamDescriptor
	duration float64
	closeErr error
	closed   bool
}

func (d *stubDemuxer) Streams() []ports.StreamDescriptor { return d.streams }
func (d *stubDemuxer) ContainerDuration() float64        { return d.duration }
func (d *stubDemuxer) Seek(int, int64, bool) error       { return nil }
func (d *stubDemuxer) Read() (*ports.Packet, error)      { return nil, nil }
func (d *stubDemuxer) Close() error                      { d.closed = true; return d.closeErr }
