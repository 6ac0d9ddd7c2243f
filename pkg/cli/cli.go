// Package cli provides the command-line interface for cyborg.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/config"
	"github.com/devicelab-dev/cyborg/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "adb serial of the device (default: the only online device)",
		EnvVars: []string{"CYBORG_DEVICE", "ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to cyborg.yaml (default: ./cyborg.yaml if present)",
		EnvVars: []string{"CYBORG_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "adb",
		Usage:   "Path to the adb binary",
		EnvVars: []string{"CYBORG_ADB"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"CYBORG_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file (default: <home>/logs/cyborg.log)",
		EnvVars: []string{"CYBORG_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the cyborg application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "cyborg",
		Usage:   "Capture and query the view hierarchy of Android apps",
		Version: Version,
		Description: `cyborg reads the live view tree of every window on an Android device
through the window manager's view server, resolves on-screen rectangles and
lets you find, tap and script against elements.

Examples:
  cyborg devices --watch
  cyborg dump --archive
  cyborg find --id login --clickable
  cyborg tap --text "Sign in"
  cyborg run tests/ --output reports/`,
		Flags:  GlobalFlags,
		Before: setup,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			devicesCommand,
			windowsCommand,
			dumpCommand,
			archivesCommand,
			findCommand,
			tapCommand,
			runCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup configures colors and logging before any command runs.
func setup(c *cli.Context) error {
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}

	logPath := c.String("log-file")
	if logPath == "" {
		logPath = filepath.Join(config.GetLogDir(), "cyborg.log")
	}
	if err := logger.Init(logPath); err != nil {
		// logging is best effort
		fmt.Fprintf(c.App.ErrWriter, "warning: cannot open log file: %v\n", err)
	}
	logger.SetVerbose(c.Bool("verbose"))
	logger.Info("cyborg %s: %v", Version, os.Args[1:])
	return nil
}
