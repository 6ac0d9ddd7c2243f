package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/suite"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run JavaScript test scripts against the device",
	ArgsUsage: "<script.js|dir>...",
	Description: `Load test scripts, which register tests with test(name, fn), and run them
in order. Failed tests get a screenshot and a view dump in the output
directory.

Examples:
  cyborg run tests/login.js
  cyborg run tests/ --test "login button"
  cyborg run tests/ -e USER=alice --output reports/`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "test",
			Aliases: []string{"t"},
			Usage:   "Run only the test with this name",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory for report.json and attachments (default: config output or ./reports)",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variable exposed to scripts as env.KEY (KEY=VALUE)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-test timeout (0 = none)",
		},
		&cli.BoolFlag{
			Name:  "capture-on-success",
			Usage: "Also capture artifacts for passing tests",
		},
		&cli.BoolFlag{
			Name:  "no-screenshots",
			Usage: "Do not capture screenshots",
		},
	},
	Action: runTests,
}

func runTests(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script file or folder is required")
	}
	scripts, err := collectScripts(c.Args().Slice())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	outputDir := c.String("output")
	if outputDir == "" {
		outputDir = cfg.Output
	}
	if outputDir == "" {
		outputDir = "reports"
	}

	live, err := connect(c, cfg)
	if err != nil {
		return err
	}
	defer live.Close()

	snap := live.snapshotter(nil)
	cy := live.facade(snap)
	w := c.App.Writer

	engine := suite.NewScripts(cy, parseEnvVars(c.StringSlice("env")), w)
	defer engine.Close()

	reg := suite.NewRegistry()
	for _, path := range scripts {
		if err := engine.LoadFile(reg, path); err != nil {
			return err
		}
	}
	if reg.Len() == 0 {
		return fmt.Errorf("no tests registered by %s", strings.Join(scripts, ", "))
	}

	artifacts := core.DefaultArtifactConfig()
	artifacts.CaptureOnSuccess = c.Bool("capture-on-success")
	artifacts.Screenshot = !c.Bool("no-screenshots")

	total := reg.Len()
	if c.String("test") != "" {
		total = 1
	}
	started := 0

	fmt.Fprintf(w, "\n%sRunning %d tests on %s%s\n", color(colorBold), total, live.device.Serial(), color(colorReset))
	res, err := reg.Run(c.Context, suite.RunOptions{
		Name:       filepath.Base(scripts[0]),
		Device:     live.device.Serial(),
		Only:       c.String("test"),
		Timeout:    c.Duration("timeout"),
		OutputDir:  outputDir,
		Artifacts:  artifacts,
		Screenshot: cy.Screenshot,
		ViewDump:   viewDump(snap, live.target),
		OnTestStart: func(name string) {
			started++
			printTestStart(w, started, total, name)
		},
		OnTestEnd: func(r core.TestResult) { printTestEnd(w, r) },
	})
	if err != nil {
		return err
	}

	printSummary(w, res)
	reportPath := filepath.Join(outputDir, suite.ReportFile)
	if err := suite.WriteReport(reportPath, res); err != nil {
		return err
	}
	fmt.Fprintf(w, "  Report: %s\n\n", reportPath)

	if !res.Success() {
		return fmt.Errorf("%d of %d tests failed", res.FailedTests, res.TotalTests-res.SkippedTests)
	}
	return nil
}

// viewDump renders every window's tree for failure attachments.
func viewDump(snap *snapshot.Snapshotter, dev snapshot.Device) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		var buf bytes.Buffer
		for _, t := range snap.Trees(ctx, dev) {
			fmt.Fprintf(&buf, "== %s / %s [%s] ==\n", t.Process, t.Window.Title, t.Window.Encode())
			if err := view.WriteTree(&buf, t.Root, view.TreeOptions{Layout: true, Hidden: true}); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	}
}

// collectScripts expands directories into the .js files they contain,
// sorted by path.
func collectScripts(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".js") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no .js scripts found in %s", strings.Join(paths, ", "))
	}
	return out, nil
}
