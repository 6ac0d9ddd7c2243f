package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/filter"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

// filterFlags select elements for find and tap. All given flags must match
// unless --any is set.
var filterFlags = []cli.Flag{
	&cli.StringFlag{Name: "id", Usage: "Resource id, with or without the id/ prefix"},
	&cli.StringFlag{Name: "text", Usage: "Exact text, ignoring surrounding whitespace"},
	&cli.StringFlag{Name: "desc-start", Usage: "Content description prefix"},
	&cli.StringFlag{Name: "desc-end", Usage: "Content description suffix"},
	&cli.StringFlag{Name: "parent-id", Usage: "Id of the direct parent"},
	&cli.IntFlag{Name: "nth", Usage: "Position among the children of --parent-id"},
	&cli.StringFlag{Name: "class", Usage: "Class name, fully qualified or simple"},
	&cli.BoolFlag{Name: "clickable", Usage: "Only clickable elements"},
	&cli.BoolFlag{Name: "focused", Usage: "Only the focused element"},
	&cli.BoolFlag{Name: "any", Usage: "Match any of the given conditions instead of all"},
}

// filterSpec is the parsed form of filterFlags.
type filterSpec struct {
	ID        string
	Text      string
	DescStart string
	DescEnd   string
	ParentID  string
	Nth       int
	HasNth    bool
	Class     string
	Clickable bool
	Focused   bool
	Any       bool
}

func filterSpecFrom(c *cli.Context) filterSpec {
	return filterSpec{
		ID:        c.String("id"),
		Text:      c.String("text"),
		DescStart: c.String("desc-start"),
		DescEnd:   c.String("desc-end"),
		ParentID:  c.String("parent-id"),
		Nth:       c.Int("nth"),
		HasNth:    c.IsSet("nth"),
		Class:     c.String("class"),
		Clickable: c.Bool("clickable"),
		Focused:   c.Bool("focused"),
		Any:       c.Bool("any"),
	}
}

func (s filterSpec) build() (filter.Filter, error) {
	var fs []filter.Filter
	if s.ID != "" {
		fs = append(fs, filter.WithID(s.ID))
	}
	if s.Text != "" {
		fs = append(fs, filter.WithText(s.Text))
	}
	if s.DescStart != "" {
		fs = append(fs, filter.WithContentDescriptionStart(s.DescStart))
	}
	if s.DescEnd != "" {
		fs = append(fs, filter.WithContentDescriptionEnd(s.DescEnd))
	}
	switch {
	case s.HasNth && s.ParentID == "":
		return nil, fmt.Errorf("--nth requires --parent-id")
	case s.HasNth:
		fs = append(fs, filter.NthChildOfParentWithID(s.Nth, s.ParentID))
	case s.ParentID != "":
		fs = append(fs, filter.WithParentWithID(s.ParentID))
	}
	if s.Class != "" {
		fs = append(fs, filter.WithName(s.Class))
	}
	if s.Clickable {
		fs = append(fs, filter.Clickable())
	}
	if s.Focused {
		fs = append(fs, filter.IsFocused())
	}

	switch {
	case len(fs) == 0:
		return nil, fmt.Errorf("at least one filter flag is required (--id, --text, --class, ...)")
	case len(fs) == 1:
		return fs[0], nil
	case s.Any:
		return filter.Or(fs...), nil
	default:
		return filter.And(fs...), nil
	}
}

var findCommand = &cli.Command{
	Name:  "find",
	Usage: "Print the visible elements matching a filter",
	Description: `Search every window for visible elements matching the filter flags and
print their on-screen rectangles.

Examples:
  cyborg find --id login
  cyborg find --parent-id list --nth 2
  cyborg find --text OK --any --desc-end OK
  cyborg find --class Button --clickable --one
  cyborg find --from 3f2a --desc-start "Open"`,
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "one",
			Usage: "Require exactly one match",
		},
		fromFlag,
	}, filterFlags...),
	Action: runFind,
}

func runFind(c *cli.Context) error {
	f, err := filterSpecFrom(c).build()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dev, release, err := source(c, cfg)
	if err != nil {
		return err
	}
	defer release()

	snap := newSnapshotter(cfg, nil)
	w := c.App.Writer

	if c.Bool("one") {
		n, err := snap.FindOne(c.Context, dev, f)
		if err != nil {
			printCandidates(w, err)
			return err
		}
		printNode(w, n)
		return nil
	}

	nodes := snap.Collect(c.Context, dev, f)
	for _, n := range nodes {
		printNode(w, n)
	}
	fmt.Fprintf(w, "%s%d matches for %s%s\n", color(colorGray), len(nodes), f.Describe(), color(colorReset))
	return nil
}

func printNode(w io.Writer, n *view.Node) {
	text := ""
	if v, ok := n.Value("text:text"); ok && v != "" {
		text = fmt.Sprintf(" %q", v)
	}
	fmt.Fprintf(w, "%s %s%s%s %s%s  [%s]\n",
		view.AbsoluteRect(n), color(colorBold), n.Name, color(colorReset), n.ID, text, n.Window.Title)
}

// printCandidates lists the elements behind an ambiguous match.
func printCandidates(w io.Writer, err error) {
	if !errors.Is(err, core.ErrAmbiguousMatch) {
		return
	}
	for _, cand := range snapshot.Candidates(err) {
		fmt.Fprintf(w, "  %s?%s ", color(colorYellow), color(colorReset))
		printNode(w, cand.Node)
	}
}
