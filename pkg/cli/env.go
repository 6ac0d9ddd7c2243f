package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/archive"
	"github.com/devicelab-dev/cyborg/pkg/config"
	"github.com/devicelab-dev/cyborg/pkg/cyborg"
	"github.com/devicelab-dev/cyborg/pkg/device"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
)

// loadConfig reads --config (or ./cyborg.yaml), applies global flag
// overrides and fills defaults.
func loadConfig(c *cli.Context) (config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI takes precedence over the workspace config
	if s := c.String("device"); s != "" {
		cfg.Device = s
	}
	if s := c.String("adb"); s != "" {
		cfg.ADBPath = s
	}
	return cfg.WithDefaults(), nil
}

// liveDevice is a connected device with everything a command needs.
type liveDevice struct {
	cfg    config.Config
	device *device.AndroidDevice
	target *device.Target
}

// connect attaches to the configured device and its view server.
func connect(c *cli.Context, cfg config.Config) (*liveDevice, error) {
	d, err := device.New(cfg.Device, cfg.ADBPath)
	if err != nil {
		return nil, err
	}
	t, err := device.Connect(c.Context, d, device.ConnectOptions{
		ViewServerPort: cfg.ViewServerPort,
		LocalPort:      cfg.LocalPort,
		DisplayWidth:   cfg.Display.Width,
		DisplayHeight:  cfg.Display.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", d.Serial(), err)
	}
	return &liveDevice{cfg: cfg, device: d, target: t}, nil
}

func (l *liveDevice) Close() error {
	return l.target.Close()
}

// snapshotter builds a snapshotter tuned by the config. rec may be nil.
func (l *liveDevice) snapshotter(rec snapshot.Recorder) *snapshot.Snapshotter {
	return newSnapshotter(l.cfg, rec)
}

func (l *liveDevice) facade(snap *snapshot.Snapshotter) *cyborg.Cyborg {
	return cyborg.New(l.target, l.device,
		cyborg.WithSnapshotter(snap),
		cyborg.WithSettleDelay(l.cfg.SettleDelay))
}

func newSnapshotter(cfg config.Config, rec snapshot.Recorder) *snapshot.Snapshotter {
	opts := snapshot.Options{
		WindowListTimeout: cfg.WindowListTimeout,
		DumpTimeout:       cfg.DumpTimeout,
		Concurrency:       cfg.Concurrency,
	}
	if rec != nil {
		opts.Recorder = rec
	}
	return snapshot.New(opts)
}

// fromFlag is shared by commands that can read a stored capture instead of
// a live device.
var fromFlag = &cli.StringFlag{
	Name:  "from",
	Usage: "Read from a stored archive (id, id prefix or path) instead of the device",
}

// source returns the hierarchy source for a query command: the archive named
// by --from, or the live device. The returned func releases it.
func source(c *cli.Context, cfg config.Config) (snapshot.Device, func(), error) {
	if ref := c.String("from"); ref != "" {
		a, err := archive.Resolve(cfg.ArchiveDir, ref)
		if err != nil {
			return nil, nil, err
		}
		return a.Device(), func() {}, nil
	}
	live, err := connect(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	return live.target, func() { live.Close() }, nil
}
