package contactsheet

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"testing"

	"github.com/user/framefusion/pkg/adapters/ggrenderer"
	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/extractor"
	"github.com/user/framefusion/pkg/mocks"
	"github.com/user/framefusion/pkg/ports"
)

type fakeSource struct {
	duration float64
	w, h     int
	err      error
	queried  []float64
	format   ports.PixelFormat
}

func (s *fakeSource) Duration() float64 { return s.duration }
func (s *fakeSource) Width() int        { return s.w }
func (s *fakeSource) Height() int       { return s.h }

func (s *fakeSource) GetImageDataAtTime(seconds float64) (*extractor.ImageData, error) {
	s.queried = append(s.queried, seconds)
	if s.err != nil {
		return nil, s.err
	}
	format := s.format
	if format == "" {
		format = ports.PixelFormatRGBA
	}
	return &extractor.ImageData{
		Width:  s.w,
		Height: s.h,
		Format: format,
		Data:   make([]byte, format.ImageSize(s.w, s.h)),
	}, nil
}

func TestTimes(t *testing.T) {
	got := Times(10, 4)
	want := []float64{1.25, 3.75, 6.25, 8.75}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Times[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[float64]string{
		0:        "0:00.000",
		1.5:      "0:01.500",
		61.0004:  "1:01.000",
		3599.999: "59:59.999",
	}
	for in, want := range tests {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_Layout(t *testing.T) {
	src := &fakeSource{duration: 6, w: 160, h: 90}
	r := &mocks.Renderer{}
	opts := DefaultOptions()
	opts.Count = 5
	opts.Columns = 3
	opts.ThumbWidth = 100
	opts.Gap = 10
	opts.CaptionHeight = 20

	res, err := Build(context.Background(), src, r, opts, logger.NewNoop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// 3 columns, 2 rows of 100x56 thumbnails with 20px captions.
	if res.Width != 3*100+4*10 || res.Height != 2*76+3*10 {
		t.Errorf("sheet = %dx%d", res.Width, res.Height)
	}
	if len(src.queried) != 5 {
		t.Fatalf("queried %d times", len(src.queried))
	}

	canvas := r.Canvases[0]
	if canvas.Width != res.Width || canvas.Height != res.Height {
		t.Errorf("canvas = %dx%d", canvas.Width, canvas.Height)
	}
	if len(canvas.Images) != 5 {
		t.Fatalf("drew %d thumbnails", len(canvas.Images))
	}
	fourth := canvas.Images[3]
	if fourth.X != 10 || fourth.Y != 10+76+10 || fourth.Width != 100 || fourth.Height != 56 {
		t.Errorf("fourth thumbnail at %+v", fourth)
	}
	if len(canvas.Strokes) != 5 || canvas.Strokes[3] != (mocks.DrawCall{X: 10, Y: 96, Width: 100, Height: 56}) {
		t.Errorf("borders = %+v", canvas.Strokes)
	}
	// The fourth frame sits at 4.2s of 6s.
	if len(canvas.Lines) != 5 || canvas.Lines[3] != (mocks.LineCall{X1: 10, Y1: 151, X2: 80, Y2: 151}) {
		t.Errorf("position bars = %+v", canvas.Lines)
	}
	if canvas.Texts[0] != "0:00.600" {
		t.Errorf("first caption = %q", canvas.Texts[0])
	}
	if len(r.EncodedFormat) != 1 || r.EncodedFormat[0] != ports.FormatPNG {
		t.Errorf("encoded as %v", r.EncodedFormat)
	}
}

func TestBuild_FitsCaptions(t *testing.T) {
	src := &fakeSource{duration: 6, w: 160, h: 90}
	r := &mocks.Renderer{}
	opts := DefaultOptions()
	opts.Count = 2
	opts.Columns = 2
	opts.CaptionHeight = 20
	opts.BorderWidth = 0
	opts.PositionBar = false

	opts.ThumbWidth = 100
	if _, err := Build(context.Background(), src, r, opts, logger.NewNoop()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	wide := r.Canvases[0]
	if math.Abs(wide.TextSizes[0]-14) > 1e-9 {
		t.Errorf("caption size in a wide cell = %v, want 14", wide.TextSizes[0])
	}
	if len(wide.Strokes) != 0 || len(wide.Lines) != 0 {
		t.Errorf("drew %d borders and %d bars, want none", len(wide.Strokes), len(wide.Lines))
	}

	// "0:01.500" measures 8*14/2 = 56 wide, so a 40 pixel cell scales it to 10.
	opts.ThumbWidth = 40
	if _, err := Build(context.Background(), src, r, opts, logger.NewNoop()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	narrow := r.Canvases[1]
	if got := narrow.TextSizes[0]; math.Abs(got-10) > 1e-9 {
		t.Errorf("caption size in a narrow cell = %v, want 10", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	r := &mocks.Renderer{}
	log := logger.NewNoop()

	if _, err := Build(context.Background(), &fakeSource{w: 10, h: 10}, r, DefaultOptions(), log); !errors.Is(err, ErrNoDuration) {
		t.Errorf("no duration: %v", err)
	}

	bad := DefaultOptions()
	bad.Columns = 0
	if _, err := Build(context.Background(), &fakeSource{duration: 1, w: 10, h: 10}, r, bad, log); err == nil {
		t.Error("zero columns should fail")
	}

	boom := errors.New("boom")
	if _, err := Build(context.Background(), &fakeSource{duration: 1, w: 10, h: 10, err: boom}, r, DefaultOptions(), log); !errors.Is(err, boom) {
		t.Errorf("frame error: %v", err)
	}

	src := &fakeSource{duration: 1, w: 10, h: 10, format: ports.PixelFormatBGRA}
	if _, err := Build(context.Background(), src, r, DefaultOptions(), log); err == nil {
		t.Error("non-rgba frames should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, &fakeSource{duration: 1, w: 10, h: 10}, r, DefaultOptions(), log); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: %v", err)
	}
}

func TestBuild_RendersPNG(t *testing.T) {
	src := &fakeSource{duration: 2, w: 64, h: 32}
	opts := DefaultOptions()
	opts.Count = 4
	opts.Columns = 2
	opts.ThumbWidth = 64

	res, err := Build(context.Background(), src, ggrenderer.New(), opts, logger.NewNoop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != res.Width || b.Dy() != res.Height {
		t.Errorf("image is %v, result says %dx%d", b, res.Width, res.Height)
	}
}
