// Package flow handles parsing and representation of to-do scenario files.
//
// A scenario is YAML in the flow format: an optional config document, a
// "---" separator, then a list of steps.
package flow

import (
	_ "embed"
)

// Flow represents a parsed scenario file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, url, env)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name string            `yaml:"name"`
	URL  string            `yaml:"url"` // Overrides the configured application URL
	Env  map[string]string `yaml:"env"`
}

// Name returns the configured name, or the source path.
func (f *Flow) Name() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}

//go:embed default.yaml
var defaultScenario []byte

// Default returns the built-in end-to-end scenario.
func Default() (*Flow, error) {
	return Parse(defaultScenario, "default.yaml")
}
