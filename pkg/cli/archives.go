package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/archive"
)

var archivesCommand = &cli.Command{
	Name:  "archives",
	Usage: "List stored captures",
	Description: `List the captures saved with "dump --archive", oldest first. Any
unique id prefix can be passed to --from.

Examples:
  cyborg archives
  cyborg find --from 3f2a --text OK`,
	Action: runArchives,
}

func runArchives(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	manifests, err := archive.List(cfg.ArchiveDir)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(manifests) == 0 {
		fmt.Fprintf(w, "No archives in %s\n", cfg.ArchiveDir)
		return nil
	}
	for _, m := range manifests {
		fmt.Fprintf(w, "%s%s%s  %s  %-20s %dx%d  %d windows\n",
			color(colorCyan), m.ID, color(colorReset),
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			m.Device, m.Width, m.Height, len(m.Entries))
	}
	return nil
}
