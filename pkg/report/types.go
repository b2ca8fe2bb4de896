// Package report provides the JSON run report and the on-disk artifact store.
//
// Layout of one run directory:
//   - report.json: the run report, rewritten after every step
//   - report.html: a static view of report.json with screenshots
//   - metrics.prom: outcome counters in the Prometheus text format
//   - screenshots/: named phase screenshots (<name>_<HH-MM-SS>.png)
//   - failures/: screenshot and page markup captured when a step fails
package report

import (
	"time"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// File and directory names inside a run directory.
const (
	ReportFile     = "report.json"
	HTMLFile       = "report.html"
	MetricsFile    = "metrics.prom"
	ScreenshotsDir = "screenshots"
	FailuresDir    = "failures"
)

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusWarned:
		return true
	}
	return false
}

// FromStepStatus maps an execution status to its report status.
func FromStepStatus(s core.StepStatus) Status {
	switch s {
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed, core.StatusErrored:
		return StatusFailed
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusWarned:
		return StatusWarned
	default:
		return StatusPending
	}
}

// ============================================================================
// REPORT (report.json)
// ============================================================================

// Report is the run report.
type Report struct {
	Version     string         `json:"version"`
	UpdateSeq   uint64         `json:"updateSeq"`
	RunID       string         `json:"runId"`
	Name        string         `json:"name"`
	SourceFile  string         `json:"sourceFile,omitempty"`
	URL         string         `json:"url"`
	Status      Status         `json:"status"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Duration    *int64         `json:"duration,omitempty"` // milliseconds
	LastUpdated time.Time      `json:"lastUpdated"`
	Runner      RunnerInfo     `json:"runner"`
	Summary     Summary        `json:"summary"`
	Stats       core.Stats     `json:"stats"`
	Counts      map[string]int `json:"counts,omitempty"`
	Commands    []Command      `json:"commands"`
	Screenshots []string       `json:"screenshots,omitempty"` // Named screenshots in capture order
	Error       *string        `json:"error,omitempty"`
}

// RunnerInfo contains todo-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // playwright, mock
}

// Summary contains aggregated step counts.
type Summary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Warned  int  `json:"warned"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running step index
}

// Command represents a single step execution.
type Command struct {
	ID        string           `json:"id"`
	Index     int              `json:"index"`
	Type      string           `json:"type"`
	Label     string           `json:"label,omitempty"` // Human-readable description from YAML label field
	YAML      string           `json:"yaml,omitempty"`
	Status    Status           `json:"status"`
	StartTime *time.Time       `json:"startTime,omitempty"`
	EndTime   *time.Time       `json:"endTime,omitempty"`
	Duration  *int64           `json:"duration,omitempty"` // milliseconds
	Message   string           `json:"message,omitempty"`
	Data      interface{}      `json:"data,omitempty"`
	Error     *Error           `json:"error,omitempty"`
	Artifacts CommandArtifacts `json:"artifacts"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, session, config
	Message string `json:"message"`
}

// CommandArtifacts contains step-level artifact paths, relative to the run directory.
type CommandArtifacts struct {
	Screenshot string `json:"screenshot,omitempty"`
	DOM        string `json:"dom,omitempty"`
}
