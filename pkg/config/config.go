// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/framefusion/pkg/adapters/downloader"
	"github.com/user/framefusion/pkg/adapters/smartbackend"
	"github.com/user/framefusion/pkg/contactsheet"
	"github.com/user/framefusion/pkg/extractor"
	"github.com/user/framefusion/pkg/ports"
)

// Config represents the full configuration for framefusion.
type Config struct {
	// Backend
	Backend     string `yaml:"backend"`
	ThreadCount int    `yaml:"thread_count"`

	// Output
	PixelFormat     string  `yaml:"pixel_format"`
	InterpolateFPS  float64 `yaml:"interpolate_fps"`
	InterpolateMode string  `yaml:"interpolate_mode"`

	// Resolution tuning
	ReseekThreshold float64 `yaml:"reseek_threshold"`
	CacheSize       int     `yaml:"cache_size"`
	MaxRetries      int     `yaml:"max_retries"`
	RetryOffset     float64 `yaml:"retry_offset"`

	Download DownloadConfig `yaml:"download"`
	Sheet    SheetConfig    `yaml:"sheet"`

	LogLevel string `yaml:"log_level"`
}

// DownloadConfig configures remote sources.
type DownloadConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	TempDir   string        `yaml:"temp_dir"`
	UserAgent string        `yaml:"user_agent"`
}

// SheetConfig configures contact sheets.
type SheetConfig struct {
	Count           int    `yaml:"count"`
	Columns         int    `yaml:"columns"`
	ThumbWidth      int    `yaml:"thumb_width"`
	Gap             int    `yaml:"gap"`
	BackgroundColor string `yaml:"background_color"`
	FontPath        string `yaml:"font_path"`
	Quality         int    `yaml:"quality"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	sheet := contactsheet.DefaultOptions()
	return Config{
		Backend:     string(smartbackend.KindAuto),
		ThreadCount: extractor.DefaultThreadCount,

		PixelFormat:     string(ports.PixelFormatRGBA),
		InterpolateMode: string(ports.InterpolateFast),

		ReseekThreshold: extractor.DefaultReseekThreshold,
		CacheSize:       extractor.DefaultCacheSize,
		MaxRetries:      extractor.DefaultMaxRetries,
		RetryOffset:     extractor.DefaultRetryOffset,

		Download: DownloadConfig{
			Timeout:   downloader.DefaultTimeout,
			UserAgent: downloader.DefaultUserAgent,
		},
		Sheet: SheetConfig{
			Count:           sheet.Count,
			Columns:         sheet.Columns,
			ThumbWidth:      sheet.ThumbWidth,
			Gap:             sheet.Gap,
			BackgroundColor: "#181818",
			Quality:         sheet.Quality,
		},

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values no component accepts.
func (c Config) Validate() error {
	if _, err := smartbackend.ParseKind(c.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if c.ThreadCount < 0 {
		return fmt.Errorf("thread_count must not be negative: %d", c.ThreadCount)
	}
	if _, err := ports.ParsePixelFormat(c.PixelFormat); err != nil {
		return fmt.Errorf("pixel_format: %w", err)
	}
	if c.InterpolateFPS < 0 {
		return fmt.Errorf("interpolate_fps must not be negative: %v", c.InterpolateFPS)
	}
	switch ports.InterpolateMode(c.InterpolateMode) {
	case ports.InterpolateFast, ports.InterpolateHighQuality:
	default:
		return fmt.Errorf("interpolate_mode must be %q or %q: %q", ports.InterpolateFast, ports.InterpolateHighQuality, c.InterpolateMode)
	}
	if c.ReseekThreshold < 0 || c.RetryOffset < 0 {
		return fmt.Errorf("reseek_threshold and retry_offset must not be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative: %d", c.CacheSize)
	}
	if c.Download.Timeout < 0 {
		return fmt.Errorf("download.timeout must not be negative: %v", c.Download.Timeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "quiet":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, error or quiet: %q", c.LogLevel)
	}
	if c.Sheet.Count < 0 || c.Sheet.Columns < 0 || c.Sheet.ThumbWidth < 0 {
		return fmt.Errorf("sheet sizes must not be negative")
	}
	return nil
}

// ParseColor parses a hex color string to color.Color.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}
	return color.RGBA{
		R: hexValue(hex[0])<<4 | hexValue(hex[1]),
		G: hexValue(hex[2])<<4 | hexValue(hex[3]),
		B: hexValue(hex[4])<<4 | hexValue(hex[5]),
		A: 255,
	}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// ExtractorOptions converts Config to extractor.Options for source.
func (c Config) ExtractorOptions(source string) extractor.Options {
	return extractor.Options{
		Source:            source,
		ThreadCount:       c.ThreadCount,
		OutputPixelFormat: ports.PixelFormat(c.PixelFormat),
		InterpolateFPS:    c.InterpolateFPS,
		InterpolateMode:   ports.InterpolateMode(c.InterpolateMode),
		ReseekThreshold:   c.ReseekThreshold,
		CacheSize:         c.CacheSize,
		MaxRetries:        c.MaxRetries,
		RetryOffset:       c.RetryOffset,
	}
}

// BackendKind returns the configured backend kind.
func (c Config) BackendKind() smartbackend.Kind {
	k, err := smartbackend.ParseKind(c.Backend)
	if err != nil {
		return smartbackend.KindAuto
	}
	return k
}

// DownloaderOptions converts Config to downloader.Options.
func (c Config) DownloaderOptions() downloader.Options {
	return downloader.Options{
		Timeout:   c.Download.Timeout,
		TempDir:   c.Download.TempDir,
		UserAgent: c.Download.UserAgent,
	}
}

// SheetOptions converts Config to contactsheet.Options.
func (c Config) SheetOptions() contactsheet.Options {
	opts := contactsheet.DefaultOptions()
	if c.Sheet.Count > 0 {
		opts.Count = c.Sheet.Count
	}
	if c.Sheet.Columns > 0 {
		opts.Columns = c.Sheet.Columns
	}
	if c.Sheet.ThumbWidth > 0 {
		opts.ThumbWidth = c.Sheet.ThumbWidth
	}
	if c.Sheet.Gap > 0 {
		opts.Gap = c.Sheet.Gap
	}
	if c.Sheet.Quality > 0 {
		opts.Quality = c.Sheet.Quality
	}
	if c.Sheet.BackgroundColor != "" {
		opts.Background = ParseColor(c.Sheet.BackgroundColor)
	}
	opts.FontPath = c.Sheet.FontPath
	return opts
}
