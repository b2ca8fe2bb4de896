// Package cli provides the command-line interface for todo-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// Driver names accepted by --driver.
const (
	DriverPlaywright = "playwright"
	DriverMock       = "mock"
)

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Browser driver to use (playwright, mock)",
		Value:   DriverPlaywright,
		EnvVars: []string{"TODO_RUNNER_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"TODO_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "headless",
		Usage: "Run Chromium without a window",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the todo-runner application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "todo-runner",
		Usage:   "End-to-end test runner for a browser to-do application",
		Version: Version,
		Description: `todo-runner drives a to-do web application in Chromium, verifies the
effect of every add, toggle, delete, update and filter action, and writes a
run report with screenshots.

Examples:
  todo-runner run
  todo-runner run --url http://localhost:8080 --timeout 15s
  todo-runner --driver mock run --flow scenarios/smoke.yaml
  todo-runner selectors --config config.yaml`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			selectorsCommand,
			reportCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
