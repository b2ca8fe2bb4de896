// Package config handles configuration for todo-runner.
//
// Values are layered: built-in defaults, then config.yaml, then .env and the
// process environment, then command-line flags (applied by the cli package).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Defaults
const (
	DefaultURL          = "http://localhost:3000"
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultGrace        = 3 * time.Second
	DefaultReportsDir   = "reports"
)

// Environment variables read by ApplyEnv.
const (
	EnvURL         = "TODO_APP_URL"
	EnvWaitTimeout = "WAIT_TIMEOUT" // whole seconds
	EnvEmail       = "TODO_EMAIL"
	EnvPassword    = "TODO_PASSWORD"
	EnvHeadless    = "HEADLESS"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Application under test
	URL      string `yaml:"url"`
	Email    string `yaml:"email"`    // Sign in first when set
	Password string `yaml:"password"` // Used with Email

	// Timing
	WaitTimeout  time.Duration `yaml:"waitTimeout"`  // Budget of every wait
	PollInterval time.Duration `yaml:"pollInterval"` // Delay between polls
	Grace        time.Duration `yaml:"grace"`        // Pause before the browser closes

	// Browser settings
	Headless       bool          `yaml:"headless"`
	SlowMo         time.Duration `yaml:"slowMo"`
	InstallBrowser bool          `yaml:"installBrowser"` // Download driver and Chromium on start

	// Scenario
	Flow     string            `yaml:"flow"`     // Scenario file; empty runs the built-in one
	Env      map[string]string `yaml:"env"`      // Variables for ${NAME} substitution in scenarios
	FailFast bool              `yaml:"failFast"` // Stop at the first failed required step

	// Output
	Output    string              `yaml:"output"` // Report directory; empty = reports/<timestamp>
	Artifacts core.ArtifactConfig `yaml:"artifacts"`

	// UI contract; unset fields keep the defaults
	Selectors core.Selectors `yaml:"selectors"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		URL:          DefaultURL,
		WaitTimeout:  DefaultWaitTimeout,
		PollInterval: DefaultPollInterval,
		Grace:        DefaultGrace,
		Artifacts:    core.DefaultArtifactConfig(),
		Selectors:    core.DefaultSelectors(),
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays values from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvWaitTimeout); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s must be whole seconds, got %q", EnvWaitTimeout, v))
		}
		c.WaitTimeout = time.Duration(secs) * time.Second
	}
	if v, ok := lookup(EnvEmail); ok && v != "" {
		c.Email = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Password = v
	}
	if v, ok := lookup(EnvHeadless); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s must be a boolean, got %q", EnvHeadless, v))
		}
		c.Headless = b
	}
	return nil
}

// Validate checks the values the run depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("url must be an http(s) address, got %q", c.URL))
	}
	if c.WaitTimeout <= 0 {
		return core.ErrInvalidConfig.WithMessage("waitTimeout must be positive")
	}
	if c.PollInterval <= 0 || c.PollInterval > c.WaitTimeout {
		return core.ErrInvalidConfig.WithMessage("pollInterval must be positive and not exceed waitTimeout")
	}
	if c.Grace < 0 {
		return core.ErrInvalidConfig.WithMessage("grace must not be negative")
	}
	if (c.Email == "") != (c.Password == "") {
		return core.ErrInvalidConfig.WithMessage("email and password must be set together")
	}
	return nil
}

// HasCredentials reports whether the run should sign in first.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// OutputDir returns the report directory for a run started at t.
func (c *Config) OutputDir(t time.Time) string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(DefaultReportsDir, t.Format("2006-01-02_15-04-05"))
}
