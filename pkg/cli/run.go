package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/todo-runner/pkg/config"
	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/driver/chromium"
	"github.com/devicelab-dev/todo-runner/pkg/driver/mock"
	"github.com/devicelab-dev/todo-runner/pkg/executor"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
	"github.com/devicelab-dev/todo-runner/pkg/report"
)

// mockLatency delays mock page updates like a real re-render.
const mockLatency = 50 * time.Millisecond

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the to-do scenario against the application",
	Description: `Run the built-in end-to-end scenario, or the scenario given with --flow.

Configuration is layered: defaults, config.yaml (or --config), .env, the
environment (TODO_APP_URL, WAIT_TIMEOUT, TODO_EMAIL, TODO_PASSWORD, HEADLESS)
and finally these flags.

Reports are written to ./reports/<timestamp>/ unless --output is given:
  - report.json, report.html, metrics.prom
  - screenshots/<name>_<HH-MM-SS>.png
  - todo_test_<timestamp>.log

Examples:
  todo-runner run
  todo-runner run --url http://localhost:8080 -e UPDATED_TEXT="Renamed"
  todo-runner --driver mock run --fail-fast`,
	Flags: []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml (default: ./config.yaml if present)",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to a .env file",
			Value: ".env",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Scenario variables (KEY=VALUE)",
		},

		// Scenario
		&cli.StringFlag{
			Name:  "flow",
			Usage: "Scenario file (default: built-in scenario)",
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "Application URL",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Budget of every wait",
		},
		&cli.DurationFlag{
			Name:  "grace",
			Usage: "Pause before the browser is closed",
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "Stop at the first failed required step",
		},

		// Browser
		&cli.BoolFlag{
			Name:  "install",
			Usage: "Download the playwright driver and Chromium before starting",
		},

		// Output
		&cli.StringFlag{
			Name:  "output",
			Usage: "Run directory (default: ./reports/<timestamp>)",
		},
		&cli.BoolFlag{
			Name:  "no-html",
			Usage: "Skip report.html",
		},
	},
	Action: runScenario,
}

// flagLookup reads flags from the command context or, for global flags,
// from the parent context.
type flagLookup struct {
	c *cli.Context
}

func (f flagLookup) ctx(name string) *cli.Context {
	for _, c := range f.c.Lineage() {
		if c != nil && c.IsSet(name) {
			return c
		}
	}
	return f.c
}

func (f flagLookup) isSet(name string) bool { return f.ctx(name).IsSet(name) }

func (f flagLookup) str(name string) string { return f.ctx(name).String(name) }

func (f flagLookup) boolean(name string) bool { return f.ctx(name).Bool(name) }

func (f flagLookup) dur(name string) time.Duration { return f.ctx(name).Duration(name) }

func (f flagLookup) slice(name string) []string { return f.ctx(name).StringSlice(name) }

func runScenario(c *cli.Context) error {
	flags := flagLookup{c}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	driverName := flags.str("driver")
	factory, err := sessionFactory(driverName, cfg)
	if err != nil {
		return err
	}

	f, err := loadFlow(cfg.Flow)
	if err != nil {
		return err
	}

	outputDir := cfg.OutputDir(time.Now())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(outputDir, logger.FileName(time.Now()))
	if err := logger.Init(logPath, c.App.ErrWriter); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(flags.boolean("verbose"))

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", outputDir)
	logger.Info("Application URL: %s", cfg.URL)
	logger.Info("Driver: %s", driverName)

	// Cancel the run on Ctrl+C or kill; the runner still closes the browser.
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal %v, cleaning up...", sig)
			fmt.Fprintf(c.App.ErrWriter, "\nReceived %v, stopping the scenario...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	out := c.App.Writer
	printBanner(out, f, cfg.URL)

	rc := executor.FromConfig(cfg, outputDir)
	rc.RunnerVersion = Version
	rc.DriverName = driverName
	rc.NoHTML = flags.boolean("no-html")
	rc.OnStepComplete = func(res core.StepResult, desc string) {
		printStep(out, res, desc)
	}

	result, err := executor.New(factory, rc).Run(ctx, f)
	if err != nil {
		logger.Error("Scenario execution failed: %v", err)
		return err
	}
	logger.Info("Scenario completed: %d passed, %d failed, %d skipped, %d warned",
		result.PassedSteps, result.FailedSteps, result.SkippedSteps, result.WarnedSteps)

	printSummary(out, result)
	printReports(out, outputDir, rc.NoHTML)

	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// loadConfig layers defaults, config file, .env, environment and flags.
func loadConfig(flags flagLookup) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := flags.str("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.LoadDotEnv(flags.str("env-file")); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if flags.isSet("url") {
		cfg.URL = flags.str("url")
	}
	if flags.isSet("timeout") {
		cfg.WaitTimeout = flags.dur("timeout")
	}
	if flags.isSet("grace") {
		cfg.Grace = flags.dur("grace")
	}
	if flags.isSet("headless") {
		cfg.Headless = flags.boolean("headless")
	}
	if flags.isSet("fail-fast") {
		cfg.FailFast = flags.boolean("fail-fast")
	}
	if flags.isSet("install") {
		cfg.InstallBrowser = flags.boolean("install")
	}
	if flags.isSet("flow") {
		cfg.Flow = flags.str("flow")
	}
	if flags.isSet("output") {
		cfg.Output = flags.str("output")
	}

	// CLI variables override config variables
	env := parseEnvVars(flags.slice("env"))
	if len(env) > 0 {
		merged := make(map[string]string, len(cfg.Env)+len(env))
		for k, v := range cfg.Env {
			merged[k] = v
		}
		for k, v := range env {
			merged[k] = v
		}
		cfg.Env = merged
	}
	return cfg, nil
}

// loadFlow parses the scenario file, or the built-in scenario when path is empty.
func loadFlow(path string) (*flow.Flow, error) {
	if path == "" {
		return flow.Default()
	}
	f, err := flow.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return f, nil
}

// sessionFactory returns the constructor of the selected driver.
func sessionFactory(driver string, cfg *config.Config) (executor.SessionFactory, error) {
	switch driver {
	case DriverPlaywright, "chromium":
		opts := chromium.Options{
			Headless:  cfg.Headless,
			SlowMo:    cfg.SlowMo,
			Timeout:   cfg.WaitTimeout,
			Install:   cfg.InstallBrowser,
			DriverDir: driversDir(cfg.InstallBrowser),
		}
		return func(context.Context) (core.Session, error) {
			d, err := chromium.Launch(opts)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil

	case DriverMock:
		return func(context.Context) (core.Session, error) {
			return mock.New(mock.Config{
				Latency:      mockLatency,
				RequireLogin: cfg.HasCredentials(),
				Email:        cfg.Email,
				Password:     cfg.Password,
			}), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown driver %q (want %s or %s)", driver, DriverPlaywright, DriverMock)
}

// driversDir returns the todo-runner managed playwright directory when it is
// in use, or "" for the playwright default cache.
func driversDir(install bool) string {
	dir := config.GetDriversDir()
	if install {
		return dir
	}
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	return ""
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

// reportDir returns the run directory a report command works on.
func reportDir(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("exactly one run directory is required")
	}
	dir := c.Args().First()
	if _, err := report.ReadReport(dir); err != nil {
		return "", fmt.Errorf("not a run directory: %w", err)
	}
	return dir, nil
}
