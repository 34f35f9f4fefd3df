// Package contactsheet lays out frames sampled across a video in a grid.
package contactsheet

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"github.com/user/framefusion/pkg/extractor"
	"github.com/user/framefusion/pkg/ports"
)

// FrameSource is the part of extractor.Extractor a sheet needs.
type FrameSource interface {
	Duration() float64
	Width() int
	Height() int
	GetImageDataAtTime(seconds float64) (*extractor.ImageData, error)
}

// Options configures Build.
type Options struct {
	// Count is the number of thumbnails.
	Count int
	// Columns is the number of thumbnails per row.
	Columns int
	// ThumbWidth is the width of each thumbnail; height keeps the aspect ratio.
	ThumbWidth int
	// Gap is the spacing around thumbnails in pixels.
	Gap int
	// CaptionHeight is the band under each thumbnail holding its timestamp.
	CaptionHeight int
	// Background fills the sheet.
	Background color.Color
	// BorderWidth outlines each thumbnail in BorderColor; zero draws none.
	BorderWidth float64
	BorderColor color.Color
	// PositionBar draws a line under each thumbnail as long as its share
	// of the duration.
	PositionBar   bool
	PositionColor color.Color
	// Format and Quality select the output encoding.
	Format  ports.ImageFormat
	Quality int
	// FontPath is an optional TrueType font for captions.
	FontPath string
}

// DefaultOptions returns a 4x3 PNG sheet of 240 pixel wide thumbnails.
func DefaultOptions() Options {
	return Options{
		Count:         12,
		Columns:       4,
		ThumbWidth:    240,
		Gap:           8,
		CaptionHeight: 20,
		Background:    color.RGBA{24, 24, 24, 255},
		BorderWidth:   1,
		BorderColor:   color.RGBA{96, 96, 96, 255},
		PositionBar:   true,
		PositionColor: color.RGBA{230, 80, 40, 255},
		Format:        ports.FormatPNG,
		Quality:       90,
	}
}

// Result is an encoded sheet.
type Result struct {
	Data   []byte
	Width  int
	Height int
	// Times are the sampled positions in seconds, in grid order.
	Times []float64
}

// ErrNoDuration is returned for sources without a known duration.
var ErrNoDuration = errors.New("contactsheet: source has no duration")

// Times returns count positions spread evenly over duration, each at the
// middle of its slice so the last one stays inside the stream.
func Times(duration float64, count int) []float64 {
	times := make([]float64, count)
	for i := range times {
		times[i] = duration * (float64(i) + 0.5) / float64(count)
	}
	return times
}

// FormatTimestamp renders seconds as m:ss.mmm.
func FormatTimestamp(seconds float64) string {
	ms := int64(seconds*1000 + 0.5)
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// fitText shrinks style so text fits within width.
func fitText(canvas ports.Canvas, text string, style ports.TextStyle, width float64) ports.TextStyle {
	if w, _ := canvas.MeasureText(text, style); w > width && w > 0 {
		style.FontSize *= width / w
	}
	return style
}

// Build samples src and draws the sheet with renderer.
func Build(ctx context.Context, src FrameSource, renderer ports.Renderer, opts Options, log ports.Logger) (*Result, error) {
	if opts.Count <= 0 || opts.Columns <= 0 || opts.ThumbWidth <= 0 {
		return nil, fmt.Errorf("contactsheet: invalid options %+v", opts)
	}
	duration := src.Duration()
	if duration <= 0 {
		return nil, ErrNoDuration
	}
	if src.Width() <= 0 || src.Height() <= 0 {
		return nil, fmt.Errorf("contactsheet: invalid frame size %dx%d", src.Width(), src.Height())
	}

	cols := min(opts.Columns, opts.Count)
	rows := (opts.Count + cols - 1) / cols
	thumbW := opts.ThumbWidth
	thumbH := max(thumbW*src.Height()/src.Width(), 1)
	cellH := thumbH + opts.CaptionHeight
	width := cols*thumbW + (cols+1)*opts.Gap
	height := rows*cellH + (rows+1)*opts.Gap

	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	canvas := renderer.CreateCanvas(width, height, bg)
	style := ports.TextStyle{
		FontSize: float64(opts.CaptionHeight) * 0.7,
		FontPath: opts.FontPath,
		Color:    color.White,
		Align:    ports.AlignCenter,
	}

	times := Times(duration, opts.Count)
	log.Info("Building contact sheet: %d frames over %.2fs", opts.Count, duration)
	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := src.GetImageDataAtTime(t)
		if err != nil {
			return nil, fmt.Errorf("frame at %.3fs: %w", t, err)
		}
		img, err := data.RGBA()
		if err != nil {
			return nil, fmt.Errorf("frame at %.3fs: %w", t, err)
		}

		x := opts.Gap + (i%cols)*(thumbW+opts.Gap)
		y := opts.Gap + (i/cols)*(cellH+opts.Gap)
		canvas.DrawImage(renderer.ResizeImage(img, thumbW, thumbH), x, y)
		if opts.BorderWidth > 0 && opts.BorderColor != nil {
			canvas.DrawRectStroke(x, y, thumbW, thumbH, opts.BorderColor, opts.BorderWidth)
		}
		if opts.PositionBar && opts.PositionColor != nil {
			if bar := int(float64(thumbW) * t / duration); bar > 0 {
				canvas.DrawLine(x, y+thumbH-1, x+bar, y+thumbH-1, opts.PositionColor, 2)
			}
		}
		if opts.CaptionHeight > 0 {
			label := FormatTimestamp(t)
			canvas.DrawText(label, x+thumbW/2, y+thumbH+opts.CaptionHeight/2, fitText(canvas, label, style, float64(thumbW)))
		}
		log.Debug("Placed frame %d at %.3fs", i, t)
	}

	out, err := renderer.EncodeImage(canvas.ToImage(), opts.Format, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode sheet: %w", err)
	}
	return &Result{Data: out, Width: width, Height: height, Times: times}, nil
}
