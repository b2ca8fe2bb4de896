package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/todo-runner/pkg/config"
	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/driver/mock"
	"github.com/devicelab-dev/todo-runner/pkg/report"
)

func init() {
	colorsEnabled = false
}

func TestParseEnvVars(t *testing.T) {
	got := parseEnvVars([]string{"A=1", "B=x=y", "broken", "C="})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, got)
}

func TestSessionFactory_Mock(t *testing.T) {
	cfg := config.Default()
	factory, err := sessionFactory(DriverMock, cfg)
	require.NoError(t, err)

	session, err := factory(context.Background())
	require.NoError(t, err)
	_, ok := session.(*mock.Driver)
	assert.True(t, ok, "expected mock driver, got %T", session)
	assert.NoError(t, session.Close())
}

func TestSessionFactory_Unknown(t *testing.T) {
	_, err := sessionFactory("firefox", config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "firefox"`)
}

// captureConfig runs a throwaway app with the run flags and returns the
// config loadConfig produced.
func captureConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	var cfg *config.Config
	app := &cli.App{
		Name:  "todo-runner",
		Flags: GlobalFlags,
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runCommand.Flags,
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = loadConfig(flagLookup{c})
				return err
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"todo-runner"}, args...)))
	require.NotNil(t, cfg)
	return cfg
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvWaitTimeout, "7")
	t.Setenv(config.EnvHeadless, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`url: http://from-file:4000
waitTimeout: 2s
grace: 1s
env:
  ITEM: file
  KEEP: yes
`), 0o644))

	cfg := captureConfig(t, "--headless", "run",
		"--config", path,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--grace", "0s",
		"-e", "ITEM=flag",
	)

	assert.Equal(t, "http://from-file:4000", cfg.URL)
	assert.Equal(t, 7*time.Second, cfg.WaitTimeout, "environment overrides the file")
	assert.Equal(t, time.Duration(0), cfg.Grace, "flag overrides the file")
	assert.True(t, cfg.Headless, "global flag is read from the parent context")
	assert.Equal(t, map[string]string{"ITEM": "flag", "KEEP": "yes"}, cfg.Env)
}

func TestLoadConfig_FlagsAndDotEnv(t *testing.T) {
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvWaitTimeout, "")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TODO_RUNNER_DOTENV_PROBE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TODO_RUNNER_DOTENV_PROBE") })
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("failFast: false\n"), 0o644))

	cfg := captureConfig(t, "run",
		"--config", cfgFile,
		"--env-file", envFile,
		"--url", "https://flag.example",
		"--timeout", "9s",
		"--fail-fast",
	)

	assert.Equal(t, "https://flag.example", cfg.URL)
	assert.Equal(t, 9*time.Second, cfg.WaitTimeout)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, "loaded", os.Getenv("TODO_RUNNER_DOTENV_PROBE"))
}

func TestLoadConfig_InvalidEnvTimeout(t *testing.T) {
	t.Setenv(config.EnvWaitTimeout, "soon")
	app := &cli.App{
		Name: "todo-runner",
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runCommand.Flags,
			Action: func(c *cli.Context) error {
				_, err := loadConfig(flagLookup{c})
				return err
			},
		}},
	}
	err := app.Run([]string{"todo-runner", "run"})
	require.Error(t, err)
}

func TestSelectorsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selectors:\n  input: '#new-todo'\n"), 0o644))

	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"todo-runner", "selectors", "--config", path}))

	var got core.Selectors
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "#new-todo", got.Input)
	assert.Equal(t, core.DefaultSelectors().Container, got.Container)
	assert.Equal(t, core.DefaultSelectors().DeleteButton, got.DeleteButton)
}

func TestRunCommand_MockDriver(t *testing.T) {
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvEmail, "")
	t.Setenv(config.EnvPassword, "")
	t.Setenv(config.EnvWaitTimeout, "")

	runDir := filepath.Join(t.TempDir(), "run")
	var out, errOut bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run([]string{"todo-runner", "--driver", "mock", "run",
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--output", runDir,
		"--grace", "0s",
	})
	require.NoError(t, err, "stdout:\n%s\nstderr:\n%s", out.String(), errOut.String())

	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "PASS")
	assert.Contains(t, out.String(), filepath.Join(runDir, report.HTMLFile))
	assert.Contains(t, errOut.String(), "[OK]")

	r, err := report.ReadReport(runDir)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPassed, r.Status)
	assert.Equal(t, 5, r.Stats.Added)
	assert.FileExists(t, filepath.Join(runDir, report.HTMLFile))
	assert.FileExists(t, filepath.Join(runDir, report.MetricsFile))

	logs, err := filepath.Glob(filepath.Join(runDir, "todo_test_*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRunCommand_UnknownDriver(t *testing.T) {
	app := NewApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"todo-runner", "--driver", "lynx", "run", "--output", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	f, err := loadFlow("")
	require.NoError(t, err)
	w, err := report.NewWriter(dir, report.BuildSkeleton(f, report.BuilderConfig{RunID: "r1"}))
	require.NoError(t, err)
	w.Close()

	out := filepath.Join(t.TempDir(), "shared.html")
	var buf bytes.Buffer
	app := NewApp()
	app.Writer = &buf
	require.NoError(t, app.Run([]string{"todo-runner", "report", "--output", out, "--title", "Shared", dir}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Shared")
	assert.Contains(t, buf.String(), out)
}

func TestReportCommand_NotARunDir(t *testing.T) {
	app := NewApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"todo-runner", "report", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a run directory")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{75 * time.Second, "1m 15s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestPrintStep(t *testing.T) {
	var buf bytes.Buffer
	printStep(&buf, core.StepResult{Status: core.StatusPassed, Duration: 10 * time.Millisecond}, "addTodo: Milk")
	printStep(&buf, core.StepResult{Status: core.StatusFailed, Label: "remove ninth", Error: "index 9 out of range"}, "deleteTodo: 9")
	printStep(&buf, core.StepResult{Status: core.StatusWarned, Error: "no filters"}, "applyFilter: active")

	out := buf.String()
	assert.Contains(t, out, "✓ addTodo: Milk (10ms)")
	assert.Contains(t, out, "✗ remove ninth")
	assert.Contains(t, out, "╰─ index 9 out of range")
	assert.Contains(t, out, "⚠ applyFilter: active")
}
