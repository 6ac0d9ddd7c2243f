package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/cyborg"
)

var tapCommand = &cli.Command{
	Name:  "tap",
	Usage: "Tap the single visible element matching a filter",
	Description: `Find exactly one visible element and tap its center. Nothing is tapped
when the filter matches zero or several elements; the candidates are listed
instead.

Examples:
  cyborg tap --id login
  cyborg tap --text "Sign in" --clickable`,
	Flags:  filterFlags,
	Action: runTap,
}

func runTap(c *cli.Context) error {
	f, err := filterSpecFrom(c).build()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	live, err := connect(c, cfg)
	if err != nil {
		return err
	}
	defer live.Close()

	cy := live.facade(live.snapshotter(nil))
	w := c.App.Writer

	n, err := cy.Find(c.Context, f)
	if err != nil {
		printCandidates(w, err)
		return err
	}
	r := cyborg.RectFor(n)
	if err := cy.Tap(c.Context, r); err != nil {
		return err
	}
	x, y := r.Center()
	fmt.Fprintf(w, "%s✓%s tapped (%d, %d) on ", color(colorGreen), color(colorReset), x, y)
	printNode(w, n)
	return nil
}
