// Package main provides the CLI entry point for imgbridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/imgbridge/pkg/adapters/logger"
	"github.com/user/imgbridge/pkg/adapters/osfilesystem"
	"github.com/user/imgbridge/pkg/config"
	"github.com/user/imgbridge/pkg/decoder"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/ports"
)

var version = "dev"

// env is the state shared by every command, built once in the Before hook.
type env struct {
	cfg      config.Config
	log      ports.Logger
	fs       ports.FileSystem
	registry *decoder.Registry
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:    "imgbridge",
		Usage:   l10n.T("Identify and decode AVIF, HEIC and OpenEXR images"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   l10n.T("Path to a YAML configuration file"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   l10n.T("Log level (debug, info, warn, error)"),
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"Q"},
				Usage:   l10n.T("Suppress all log output"),
			},
		},
		Before: e.setup,
		After: func(*cli.Context) error {
			logsink.Clear()
			return nil
		},
		Commands: []*cli.Command{
			e.formatsCmd(),
			e.detectCmd(),
			e.identifyCmd(),
			e.decodeCmd(),
			e.extractCmd(),
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, l10n.F("imgbridge version %s", version))
					return nil
				},
			},
		},
	}
}

func main() {
	e := &env{}
	app := newApp(e)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if e.log != nil {
			e.log.Warn("Interrupted, shutting down...")
		}
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger and registry.
func (e *env) setup(c *cli.Context) error {
	if e.fs == nil {
		e.fs = osfilesystem.New()
	}
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(e.fs, path)
		if err != nil {
			return cli.Exit(l10n.F("Failed to load config: %s", err), 2)
		}
		cfg = loaded
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	// Create logger
	level := cfg.Level()
	if c.Bool("quiet") || level == ports.LevelQuiet {
		e.log = logger.NewNoop()
	} else {
		e.log = logger.NewConsole(level)
		if name := strings.ToLower(cfg.LogLevel); level.String() != name && name != "warning" {
			e.log.Warn("Unknown log level %q, using info", cfg.LogLevel)
		}
	}
	logsink.Set(logsink.ToLogger(e.log))

	detector, err := cfg.Detector()
	if err != nil {
		return cli.Exit(l10n.F("Failed to load config: %s", err), 2)
	}

	e.cfg = cfg
	e.registry = decoder.Default(decoder.WithDetector(detector), decoder.WithLogger(e.log))
	return nil
}
