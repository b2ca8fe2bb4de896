package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/todo-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string // Unique run identifier
	URL           string // Application under test
	RunnerVersion string // todo-runner version
	DriverName    string // playwright, mock
}

// BuildSkeleton creates the initial report structure from a parsed scenario.
// All steps are set to "pending" status.
func BuildSkeleton(f *flow.Flow, cfg BuilderConfig) *Report {
	now := time.Now()
	commands := buildCommands(f.Steps)

	return &Report{
		Version:     Version,
		RunID:       cfg.RunID,
		Name:        extractFlowName(f),
		SourceFile:  f.SourcePath,
		URL:         cfg.URL,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
		},
		Summary: Summary{
			Total:   len(commands),
			Pending: len(commands),
		},
		Commands: commands,
	}
}

// extractFlowName extracts a display name from the scenario.
func extractFlowName(f *flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	// Use filename without extension
	base := filepath.Base(f.SourcePath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// buildCommands creates Command entries from scenario steps.
func buildCommands(steps []flow.Step) []Command {
	commands := make([]Command, len(steps))
	for i, step := range steps {
		commands[i] = Command{
			ID:     fmt.Sprintf("cmd-%03d", i),
			Index:  i,
			Type:   string(step.Type()),
			Label:  step.Label(),
			YAML:   step.Describe(),
			Status: StatusPending,
		}
	}
	return commands
}
