package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
)

// slowThreshold marks steps that took suspiciously long.
const slowThreshold = 5 * time.Second

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

func printBanner(w io.Writer, f *flow.Flow, url string) {
	name := f.Name()
	if name == "" {
		name = "Todo application end-to-end"
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %stodo-runner %s%s\n", color(colorBold), Version, color(colorReset))
	fmt.Fprintf(w, "  %s%s%s (%d steps) against %s\n", color(colorCyan), name, color(colorReset), len(f.Steps), url)
	fmt.Fprintln(w, "  "+strings.Repeat("─", 60))
}

// printStep prints one finished step as it completes.
func printStep(w io.Writer, res core.StepResult, desc string) {
	if res.Label != "" {
		desc = res.Label
	}
	dur := formatDuration(res.Duration)

	switch res.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if res.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, dur, color(colorReset))
	case core.StatusWarned:
		fmt.Fprintf(w, "    %s⚠%s %s (%s)\n", color(colorYellow), color(colorReset), desc, dur)
		printStepError(w, res.Error)
	default:
		fmt.Fprintf(w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, dur)
		printStepError(w, res.Error)
	}
}

func printStepError(w io.Writer, msg string) {
	if msg != "" {
		fmt.Fprintf(w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), msg)
	}
}

// printSummary prints step totals, recorded counts and outcome counters.
func printSummary(w io.Writer, result *core.ScenarioResult) {
	fmt.Fprintln(w)
	if result.PassedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), result.PassedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if result.WarnedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps warned%s\n", color(colorYellow), result.WarnedSteps, color(colorReset))
	}
	if result.FailedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), result.FailedSteps, color(colorReset))
	}
	if result.SkippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), result.SkippedSteps, color(colorReset))
	}
	if result.Error != "" {
		fmt.Fprintf(w, "  %sAborted:%s %s\n", color(colorRed), color(colorReset), result.Error)
	}
	fmt.Fprintln(w)

	tableWidth := 44
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	names := make([]string, 0, len(result.Counts))
	for name := range result.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-30s %10d\n", name+" todos", result.Counts[name])
	}
	if len(names) > 0 {
		fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	}
	s := result.Stats
	for _, row := range []struct {
		name  string
		value int
	}{
		{"added", s.Added},
		{"completed", s.Completed},
		{"deleted", s.Deleted},
		{"updated", s.Updated},
		{"errors", s.Errors},
	} {
		fmt.Fprintf(w, "  %-30s %10d\n", row.name, row.value)
	}
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	status := "✓ PASS"
	statusColor := color(colorGreen)
	if !result.Success() {
		status, statusColor = "✗ FAIL", color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-30s%s %s%10s%s\n", color(colorBold), "RESULT", color(colorReset), statusColor, status, color(colorReset))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

func printReports(w io.Writer, dir string, noHTML bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Reports:")
	if !noHTML {
		fmt.Fprintf(w, "    HTML:     %s\n", filepath.Join(dir, report.HTMLFile))
	}
	fmt.Fprintf(w, "    JSON:     %s\n", filepath.Join(dir, report.ReportFile))
	fmt.Fprintf(w, "    Metrics:  %s\n", filepath.Join(dir, report.MetricsFile))
	fmt.Fprintln(w)
}

// formatDuration shows milliseconds below one second and seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
}
