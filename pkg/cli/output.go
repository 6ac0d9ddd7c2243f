package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/cyborg/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow test threshold
const slowThreshold = 10 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printTestStart(w io.Writer, idx, total int, name string) {
	fmt.Fprintf(w, "  %s[%d/%d]%s %s", color(colorCyan), idx, total, color(colorReset), name)
}

func printTestEnd(w io.Writer, r core.TestResult) {
	dur := formatDuration(r.Duration.Milliseconds())
	switch r.Status {
	case core.StatusPassed:
		durColor := color(colorGray)
		if r.Duration >= slowThreshold {
			durColor = color(colorYellow)
		}
		fmt.Fprintf(w, " %s✓%s %s(%s)%s\n", color(colorGreen), color(colorReset), durColor, dur, color(colorReset))
	default:
		fmt.Fprintf(w, " %s✗ %s%s (%s)\n", color(colorRed), r.Status, color(colorReset), dur)
		if r.Error != "" {
			fmt.Fprintf(w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		}
		for _, a := range r.Attachments {
			if a.Path != "" {
				fmt.Fprintf(w, "      %s%s: %s%s\n", color(colorGray), a.Name, a.Path, color(colorReset))
			}
		}
	}
}

func printSummary(w io.Writer, res *core.SuiteResult) {
	const tableWidth = 72
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-48s %8s %10s\n", "Test", "Status", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, tr := range res.Tests {
		var status, statusColor string
		switch tr.Status {
		case core.StatusPassed:
			status, statusColor = "✓ PASS", color(colorGreen)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✗ FAIL", color(colorRed)
		}

		name := tr.Name
		if len(name) > 48 {
			name = name[:45] + "..."
		}
		fmt.Fprintf(w, "  %-48s %s%8s%s %10s\n",
			name, statusColor, status, color(colorReset), formatDuration(tr.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if res.FailedTests > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-48s%s %s%8s%s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", res.PassedTests, res.TotalTests-res.SkippedTests), color(colorReset),
		formatDuration(res.Duration.Milliseconds()))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
