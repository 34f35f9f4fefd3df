package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/framefusion/pkg/adapters/av1encoder"
	"github.com/user/framefusion/pkg/adapters/downloader"
	"github.com/user/framefusion/pkg/adapters/ggrenderer"
	"github.com/user/framefusion/pkg/adapters/mjpegwriter"
	"github.com/user/framefusion/pkg/adapters/osfilesystem"
	"github.com/user/framefusion/pkg/adapters/smartbackend"
	"github.com/user/framefusion/pkg/contactsheet"
	"github.com/user/framefusion/pkg/extractor"
	"github.com/user/framefusion/pkg/ports"
	"github.com/user/framefusion/pkg/summarizer"
	"github.com/user/framefusion/pkg/synth"
)

// session is an opened source plus everything that must be closed with it.
type session struct {
	ext     *extractor.Extractor
	backend *smartbackend.Backend
	cache   *downloader.Cache
}

func (s *session) Close() error {
	var result *multierror.Error
	if err := s.ext.Dispose(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.cache.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// open builds the backend and downloader from the config and opens src.
func (rt *env) open(ctx context.Context, src string) (*session, error) {
	fs := osfilesystem.New()
	cache := downloader.NewCache(downloader.New(fs, rt.cfg.DownloaderOptions(), rt.log))
	backend := smartbackend.New(rt.cfg.BackendKind(), rt.log)

	ext, err := extractor.Open(ctx, rt.cfg.ExtractorOptions(src), extractor.Dependencies{
		Backend: backend,
		Fetcher: cache,
		Logger:  rt.log,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}
	return &session{ext: ext, backend: backend, cache: cache}, nil
}

// summary starts a report of the opened source.
func (s *session) summary(src string) *summarizer.Builder {
	st := s.ext.Stream()
	return summarizer.NewBuilder().
		WithSource(summarizer.SourceInfo{
			Path:     src,
			Backend:  string(s.backend.Info().Backend),
			Codec:    st.Codec,
			Width:    s.ext.Width(),
			Height:   s.ext.Height(),
			TimeBase: s.ext.TimeBase().String(),
			Duration: s.ext.Duration(),
		}).
		WithStreams(s.ext.Streams())
}

func sourceArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New(l10n.F("expected exactly one source, got %d", c.NArg()))
	}
	return c.Args().First(), nil
}

func infoCommand(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     l10n.T("Show stream information"),
		ArgsUsage: "<source>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: l10n.T("Print a Markdown report"),
			},
		},
		Action: func(c *cli.Context) error {
			src, err := sourceArg(c)
			if err != nil {
				return err
			}
			s, err := rt.open(c.Context, src)
			if err != nil {
				return err
			}
			defer s.Close()

			if c.Bool("markdown") {
				report := s.summary(src).Build()
				fmt.Fprint(rt.stdout, summarizer.NewMarkdownFormatter().Format(report))
				return nil
			}

			info := s.backend.Info()
			st := s.ext.Stream()
			w := rt.stdout
			fmt.Fprintf(w, "source:     %s\n", src)
			fmt.Fprintf(w, "backend:    %s\n", info.Backend)
			fmt.Fprintf(w, "codec:      %s\n", st.Codec)
			fmt.Fprintf(w, "size:       %dx%d\n", s.ext.Width(), s.ext.Height())
			fmt.Fprintf(w, "time base:  %s\n", s.ext.TimeBase())
			fmt.Fprintf(w, "duration:   %.3fs\n", s.ext.Duration())
			if st.FrameRate > 0 {
				fmt.Fprintf(w, "frame rate: %.3f\n", st.FrameRate)
			}
			for _, d := range s.ext.Streams() {
				fmt.Fprintf(w, "stream %d:   %s %s %.3fs\n", d.Index, d.MediaType, d.Codec, d.DurationSeconds())
			}
			return nil
		},
	}
}

// outputFormat resolves --format, falling back to the output extension.
func outputFormat(format, out string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	}
	switch format {
	case "png", "jpeg", "raw":
		return format, nil
	case "jpg":
		return "jpeg", nil
	case "":
		return "png", nil
	default:
		return "", errors.New(l10n.F("unknown output format %q", format))
	}
}

// encodeImage renders data in format; raw returns the pixel buffer as is.
func encodeImage(renderer ports.Renderer, data *extractor.ImageData, format string, quality int) ([]byte, error) {
	if format == "raw" {
		return data.Data, nil
	}
	img, err := data.RGBA()
	if err != nil {
		return nil, err
	}
	f, _ := ports.ParseImageFormat(format)
	return renderer.EncodeImage(img, f, quality)
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   l10n.T("Output format (png, jpeg, raw); defaults to the output extension"),
	}
}

func qualityFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "quality",
		Value: 90,
		Usage: l10n.T("JPEG quality (1-100)"),
	}
}

func frameCommand(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "frame",
		Usage:     l10n.T("Write the frame shown at a time"),
		ArgsUsage: "<source>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "time",
				Aliases:  []string{"t"},
				Required: true,
				Usage:    l10n.T("Time in seconds"),
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    l10n.T("Output file path"),
			},
			formatFlag(),
			qualityFlag(),
		},
		Action: func(c *cli.Context) error {
			src, err := sourceArg(c)
			if err != nil {
				return err
			}
			out := c.String("out")
			format, err := outputFormat(c.String("format"), out)
			if err != nil {
				return err
			}

			s, err := rt.open(c.Context, src)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := s.ext.GetImageDataAtTime(c.Float64("time"))
			if err != nil {
				return err
			}
			encoded, err := encodeImage(ggrenderer.New(), data, format, c.Int("quality"))
			if err != nil {
				return err
			}
			if err := osfilesystem.New().WriteFile(out, encoded); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			rt.log.Info(l10n.F("Frame at %.3fs saved to %s", c.Float64("time"), out))
			return nil
		},
	}
}

// parseTimes parses a comma separated list of seconds.
func parseTimes(s string) ([]float64, error) {
	var times []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		t, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.New(l10n.F("invalid time %q", field))
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, errors.New(l10n.T("no times given"))
	}
	return times, nil
}

// frameFileName names the i-th extracted frame after its time.
func frameFileName(i int, t float64, format string) string {
	ext := format
	if format == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("frame_%03d_%s.%s", i, strconv.FormatFloat(t, 'f', 3, 64), ext)
}

func framesCommand(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "frames",
		Usage:     l10n.T("Write the frames shown at several times"),
		ArgsUsage: "<source>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "times",
				Aliases:  []string{"t"},
				Required: true,
				Usage:    l10n.T("Comma separated times in seconds"),
			},
			&cli.StringFlag{
				Name:     "out-dir",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    l10n.T("Output directory"),
			},
			formatFlag(),
			qualityFlag(),
			&cli.StringFlag{
				Name:  "summary",
				Usage: l10n.T("Write a Markdown summary of the extraction"),
			},
		},
		Action: func(c *cli.Context) error {
			src, err := sourceArg(c)
			if err != nil {
				return err
			}
			times, err := parseTimes(c.String("times"))
			if err != nil {
				return err
			}
			format := c.String("format")
			if format == "" {
				format = "png"
			}
			if format, err = outputFormat(format, ""); err != nil {
				return err
			}

			fs := osfilesystem.New()
			dir := c.String("out-dir")
			if err := fs.MkdirAll(dir); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			s, err := rt.open(c.Context, src)
			if err != nil {
				return err
			}
			defer s.Close()

			renderer := ggrenderer.New()
			report := s.summary(src)
			for i, t := range times {
				if err := c.Context.Err(); err != nil {
					return err
				}
				frame, err := s.ext.GetFrameAtTime(t)
				if err != nil {
					return fmt.Errorf("frame at %.3fs: %w", t, err)
				}
				data, err := extractor.Materialize(frame)
				if err != nil {
					return err
				}
				encoded, err := encodeImage(renderer, data, format, c.Int("quality"))
				if err != nil {
					return err
				}
				path := filepath.Join(dir, frameFileName(i, t, format))
				if err := fs.WriteFile(path, encoded); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				rt.log.Debug("Frame at %.3fs saved to %s", t, path)
				report.AddFrame(t, frame.PTS, path)
			}

			stats := s.ext.Stats()
			if out := c.String("summary"); out != "" {
				report.WithStats(summarizer.Stats(stats))
				if err := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs).Write(out, report.Build()); err != nil {
					return err
				}
			}
			rt.log.Info(l10n.F("Saved %d frames to %s (%d seeks, %d packets read)", len(times), dir, stats.Seeks, stats.PacketReads))
			return nil
		},
	}
}

func sheetCommand(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "sheet",
		Usage:     l10n.T("Write a contact sheet of evenly spaced frames"),
		ArgsUsage: "<source>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: l10n.T("Number of thumbnails"),
			},
			&cli.IntFlag{
				Name:  "columns",
				Usage: l10n.T("Number of columns"),
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: l10n.T("Thumbnail width in pixels"),
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    l10n.T("Output image path (.png or .jpg)"),
			},
		},
		Action: func(c *cli.Context) error {
			src, err := sourceArg(c)
			if err != nil {
				return err
			}
			out := c.String("out")
			format, err := outputFormat("", out)
			if err != nil || format == "raw" {
				return errors.New(l10n.F("unknown output format %q", filepath.Ext(out)))
			}

			opts := rt.cfg.SheetOptions()
			if c.IsSet("count") {
				opts.Count = c.Int("count")
			}
			if c.IsSet("columns") {
				opts.Columns = c.Int("columns")
			}
			if c.IsSet("width") {
				opts.ThumbWidth = c.Int("width")
			}
			opts.Format, _ = ports.ParseImageFormat(format)

			s, err := rt.open(c.Context, src)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := contactsheet.Build(c.Context, s.ext, ggrenderer.New(), opts, rt.log)
			if err != nil {
				return err
			}
			if err := osfilesystem.New().WriteFile(out, result.Data); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			rt.log.Info(l10n.F("Contact sheet %dx%d saved to %s", result.Width, result.Height, out))
			return nil
		},
	}
}

// newEncoder returns the synth encoder for codec.
func newEncoder(codec string) (ports.VideoEncoder, error) {
	switch codec {
	case "", "mjpeg":
		return mjpegwriter.New(), nil
	case "av1":
		enc, err := av1encoder.New()
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, errors.New(l10n.F("unknown codec %q", codec))
	}
}

func synthCommand(rt *env) *cli.Command {
	def := synth.DefaultOptions()
	return &cli.Command{
		Name:  "synth",
		Usage: l10n.T("Generate a test video with numbered frames"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    l10n.T("Output MP4 file path"),
			},
			&cli.IntFlag{Name: "frames", Value: def.Frames, Usage: l10n.T("Number of frames")},
			&cli.Float64Flag{Name: "fps", Value: def.FPS, Usage: l10n.T("Frames per second")},
			&cli.IntFlag{Name: "keyframe-interval", Value: def.KeyframeInterval, Usage: l10n.T("Frames per keyframe")},
			&cli.IntFlag{Name: "width", Value: def.Width, Usage: l10n.T("Frame width")},
			&cli.IntFlag{Name: "height", Value: def.Height, Usage: l10n.T("Frame height")},
			&cli.StringFlag{Name: "font", Usage: l10n.T("TrueType font for frame numbers")},
			&cli.StringFlag{Name: "codec", Value: "mjpeg", Usage: l10n.T("Video codec (mjpeg, av1)")},
		},
		Action: func(c *cli.Context) error {
			opts := def
			opts.Frames = c.Int("frames")
			opts.FPS = c.Float64("fps")
			opts.KeyframeInterval = c.Int("keyframe-interval")
			opts.Width = c.Int("width")
			opts.Height = c.Int("height")
			opts.FontPath = c.String("font")

			enc, err := newEncoder(c.String("codec"))
			if err != nil {
				return err
			}
			data, err := synth.Generate(c.Context, ggrenderer.New(), enc, opts, rt.log)
			if err != nil {
				return err
			}
			out := c.String("out")
			if err := osfilesystem.New().WriteFile(out, data); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			rt.log.Info(l10n.F("Output saved to %s", out))
			return nil
		},
	}
}

func versionCommand(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(rt.stdout, l10n.F("framefusion version %s", version))
			return nil
		},
	}
}
