package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/device"
)

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List attached Android devices",
	Description: `List the devices adb knows about.

Examples:
  cyborg devices
  cyborg devices --watch
  cyborg devices --wait 60s`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Keep running and print devices as they connect and disconnect",
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "Block until the device (--device, or any) is online, up to this long",
		},
	},
	Action: runDevices,
}

func runDevices(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	switch {
	case c.Bool("watch"):
		for ev := range device.NewSession(cfg.ADBPath).Watch(c.Context) {
			evColor := color(colorGreen)
			if ev.Type == device.Disconnected {
				evColor = color(colorRed)
			}
			fmt.Fprintf(w, "%s %s%-12s%s %-24s %s\n",
				time.Now().Format("15:04:05"), evColor, ev.Type, color(colorReset), ev.Entry.Serial, ev.Entry.State)
		}
		return nil

	case c.IsSet("wait"):
		ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
		defer cancel()
		serial, err := device.NewSession(cfg.ADBPath).AwaitDevice(ctx, cfg.Device)
		if err != nil {
			return fmt.Errorf("no device came online: %w", err)
		}
		fmt.Fprintln(w, serial)
		return nil
	}

	entries, err := device.ListDevices(cfg.ADBPath)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No devices attached")
		return nil
	}
	for _, e := range entries {
		stateColor := color(colorGreen)
		if !e.Online() {
			stateColor = color(colorYellow)
		}
		fmt.Fprintf(w, "%-24s %s%s%s\n", e.Serial, stateColor, e.State, color(colorReset))
	}
	return nil
}
