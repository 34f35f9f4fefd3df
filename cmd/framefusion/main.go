// Package main provides the CLI entry point for framefusion.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/framefusion/pkg/adapters/libav"
	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/config"
	"github.com/user/framefusion/pkg/ports"
)

var version = "dev"

// env holds what the global flags resolve to before a command runs.
type env struct {
	stdout  io.Writer
	stderr  io.Writer
	console bool

	cfg config.Config
	log ports.Logger
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := &env{stdout: os.Stdout, stderr: os.Stderr, console: true}
	app := newApp(rt)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if rt.log != nil {
			rt.log.Warn(l10n.T("Interrupted, shutting down..."))
		}
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %v", err))
		os.Exit(1)
	}
}

func newApp(rt *env) *cli.App {
	return &cli.App{
		Name:      "framefusion",
		Usage:     l10n.T("Extract frames from videos by presentation time"),
		Version:   version,
		Writer:    rt.stdout,
		ErrWriter: rt.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    l10n.T("YAML configuration file"),
				Category: l10n.T("Configuration"),
			},
			&cli.StringFlag{
				Name:     "backend",
				Aliases:  []string{"b"},
				Usage:    l10n.T("Decoding backend (auto, native, libav)"),
				Category: l10n.T("Configuration"),
			},
			&cli.IntFlag{
				Name:     "threads",
				Usage:    l10n.T("Decoder thread count"),
				Category: l10n.T("Configuration"),
			},
			&cli.StringFlag{
				Name:     "log-level",
				Aliases:  []string{"l"},
				Usage:    l10n.T("Log level (debug, info, warn, error)"),
				Category: l10n.T("Logging"),
			},
			&cli.BoolFlag{
				Name:     "quiet",
				Aliases:  []string{"q"},
				Usage:    l10n.T("Suppress all log output"),
				Category: l10n.T("Logging"),
			},
		},
		Before: rt.before,
		Commands: []*cli.Command{
			infoCommand(rt),
			frameCommand(rt),
			framesCommand(rt),
			sheetCommand(rt),
			synthCommand(rt),
			versionCommand(rt),
		},
	}
}

// before loads the config file, applies global flag overrides and creates
// the logger shared by every command.
func (rt *env) before(c *cli.Context) error {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("threads") {
		cfg.ThreadCount = c.Int("threads")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg

	switch {
	case c.Bool("quiet"):
		rt.log = logger.NewNoop()
	case rt.console:
		rt.log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	default:
		rt.log = logger.NewWriter(ports.ParseLogLevel(cfg.LogLevel), rt.stderr, rt.stderr)
	}
	libav.RedirectLogs(rt.log)
	return nil
}
