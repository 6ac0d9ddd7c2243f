package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/archive"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

var dumpCommand = &cli.Command{
	Name:  "dump",
	Usage: "Print the view tree of every window with on-screen rectangles",
	Description: `Capture every window and print its view tree. Each line shows the class,
identity hash, resource id, absolute rectangle and text.

Examples:
  cyborg dump
  cyborg dump --layout --all
  cyborg dump --archive --compression lz4
  cyborg dump --from 3f2a`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "layout",
			Usage: "Append layout properties to every node",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include nodes that are not visible",
		},
		&cli.BoolFlag{
			Name:  "archive",
			Usage: "Store the raw dumps for offline replay",
		},
		&cli.StringFlag{
			Name:  "compression",
			Usage: "Archive codec: zstd, lz4 or none",
			Value: string(archive.CompressionZstd),
		},
		fromFlag,
	},
	Action: runDump,
}

func runDump(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("archive") && c.String("from") != "" {
		return fmt.Errorf("--archive cannot be combined with --from")
	}

	var (
		dev     snapshot.Device
		rec     snapshot.Recorder
		writer  *archive.Writer
		release = func() {}
	)
	if c.String("from") != "" {
		if dev, release, err = source(c, cfg); err != nil {
			return err
		}
	} else {
		live, err := connect(c, cfg)
		if err != nil {
			return err
		}
		release = func() { live.Close() }
		dev = live.target

		if c.Bool("archive") {
			codec, err := archive.ParseCompression(c.String("compression"))
			if err != nil {
				release()
				return err
			}
			width, height := live.target.DisplaySize()
			if writer, err = archive.Create(cfg.ArchiveDir, live.device.Serial(), width, height, codec); err != nil {
				release()
				return err
			}
			rec = writer
		}
	}
	defer release()

	start := time.Now()
	trees := newSnapshotter(cfg, rec).Trees(c.Context, dev)

	w := c.App.Writer
	opts := view.TreeOptions{Layout: c.Bool("layout"), Hidden: c.Bool("all")}
	for _, t := range trees {
		fmt.Fprintf(w, "%s== %s / %s [%s] ==%s\n",
			color(colorBold), t.Process, t.Window.Title, t.Window.Encode(), color(colorReset))
		if err := view.WriteTree(w, t.Root, opts); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%s%d windows in %s%s\n",
		color(colorGray), len(trees), formatDuration(time.Since(start).Milliseconds()), color(colorReset))

	if writer != nil {
		if err := writer.Close(); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		fmt.Fprintf(w, "archived as %s%s%s (%s)\n", color(colorCyan), writer.ID(), color(colorReset), writer.Dir())
	}
	return nil
}
