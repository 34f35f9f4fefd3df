// Package synth generates test videos whose frames identify themselves.
//
// Frame i is filled with FrameColor(i) above a caption band showing its
// number, so a decoded frame can be mapped back to its index with
// FrameIndex even after lossy compression.
package synth

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/user/framefusion/pkg/ports"
)

// colorStep spaces frame colors far enough apart to survive JPEG.
const colorStep = 8

// MaxFrames is the number of distinct frame colors.
const MaxFrames = (256 / colorStep) * (256 / colorStep)

// Options configures Generate.
type Options struct {
	Width            int
	Height           int
	Frames           int
	FPS              float64
	KeyframeInterval int
	Quality          int
	Timescale        uint32
	// FontPath is an optional TrueType font for the captions.
	FontPath string
}

// DefaultOptions returns a 2 second 30fps 320x180 video with a keyframe
// every 10 frames.
func DefaultOptions() Options {
	return Options{
		Width:            320,
		Height:           180,
		Frames:           60,
		FPS:              30,
		KeyframeInterval: 10,
		Quality:          90,
	}
}

// ErrTooManyFrames is returned when Frames exceeds MaxFrames.
var ErrTooManyFrames = errors.New("synth: too many frames")

// FrameColor returns the fill color of frame i.
func FrameColor(i int) color.RGBA {
	n := 256 / colorStep
	return color.RGBA{
		R: uint8((i%n)*colorStep + colorStep/2),
		G: uint8((i/n%n)*colorStep + colorStep/2),
		B: 128,
		A: 255,
	}
}

// FrameIndex maps a sampled fill color back to its frame number.
func FrameIndex(c color.Color) int {
	r, g, _, _ := c.RGBA()
	n := 256 / colorStep
	return int(g>>8)/colorStep*n + int(r>>8)/colorStep
}

// FrameTimestampMs returns the presentation time of frame i in milliseconds.
func FrameTimestampMs(i int, fps float64) int {
	return int(math.Round(float64(i) * 1000 / fps))
}

// SamplePoint is a pixel inside the fill area, away from the caption.
func SamplePoint(width, height int) (int, int) {
	return width / 4, height / 4
}

// Generate draws opts.Frames frames with renderer and encodes them with enc.
func Generate(ctx context.Context, renderer ports.Renderer, enc ports.VideoEncoder, opts Options, log ports.Logger) ([]byte, error) {
	if opts.Frames <= 0 || opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("synth: invalid options %+v", opts)
	}
	if opts.Frames > MaxFrames {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFrames, opts.Frames, MaxFrames)
	}

	err := enc.Begin(opts.Width, opts.Height, opts.FPS, ports.EncoderOptions{
		Quality:          opts.Quality,
		KeyframeInterval: opts.KeyframeInterval,
		Timescale:        opts.Timescale,
	})
	if err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	band := max(opts.Height/5, 12)
	style := ports.TextStyle{
		FontSize: float64(band) * 0.7,
		FontPath: opts.FontPath,
		Color:    color.White,
		Align:    ports.AlignCenter,
	}

	log.Info("Generating %d frames at %.1f fps", opts.Frames, opts.FPS)
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		canvas := renderer.CreateCanvas(opts.Width, opts.Height, FrameColor(i))
		canvas.DrawRect(0, opts.Height-band, opts.Width, band, color.Black)
		canvas.DrawText(fmt.Sprintf("#%d", i), opts.Width/2, opts.Height-band/2, style)

		if err := enc.EncodeFrame(canvas.ToImage(), FrameTimestampMs(i, opts.FPS)); err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
	}

	data, err := enc.End()
	if err != nil {
		return nil, fmt.Errorf("finish encoding: %w", err)
	}
	log.Debug("Video encoded: %d bytes", len(data))
	return data, nil
}
