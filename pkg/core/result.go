package core

import (
	"time"
)

// ActionResult is the outcome of one action executor call.
// Executors never return errors past their boundary; failures are carried here.
type ActionResult struct {
	Action    string          `json:"action"`           // add, toggle, delete, update, filter
	Target    string          `json:"target,omitempty"` // index, text or filter the action was aimed at
	Succeeded bool            `json:"succeeded"`
	Err       *ExecutionError `json:"-"`
	Duration  time.Duration   `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// ListSize is the number of visible rows observed when the action finished.
	// -1 if the list could not be read.
	ListSize int `json:"listSize"`
}

// Error returns the failure message, or "" on success.
func (r *ActionResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Fatal returns true if the failure means the session is gone.
func (r *ActionResult) Fatal() bool {
	return r.Err != nil && r.Err.Fatal()
}

// Category returns the error category, or ErrCategoryNone on success.
func (r *ActionResult) Category() ErrorCategory {
	if r.Err == nil {
		return ErrCategoryNone
	}
	return r.Err.Category
}

// Stats is a consistent snapshot of the outcome counters.
type Stats struct {
	Added     int `json:"added"`
	Completed int `json:"completed"`
	Deleted   int `json:"deleted"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// StepResult captures the complete outcome of executing a single scenario step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in the scenario
	Command string `json:"command"` // Step type: addTodo, toggleTodo, etc.
	Label   string `json:"label,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"` // Command-specific data (counts, positions)

	// Error Details
	Error string `json:"error,omitempty"`

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScenarioResult captures the complete outcome of one scenario run
type ScenarioResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"`
	URL   string `json:"url"`

	// Status (aggregated from steps)
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps  []StepResult   `json:"steps"`
	Stats  Stats          `json:"stats"`
	Counts map[string]int `json:"counts,omitempty"` // Named list counts recorded by countTodos steps

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	// Error info (if the run aborted)
	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ScenarioResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0
	r.WarnedSteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		case StatusWarned:
			r.WarnedSteps++
		}
	}
}

// AggregateStatus determines the run status from step results
// Rules:
// - Aborted run (Error set) → StatusFailed
// - Any failed/errored/skipped step → StatusFailed
// - All passed (with optional warned) → StatusPassed or StatusWarned
func (r *ScenarioResult) AggregateStatus() StepStatus {
	if r.Error != "" {
		return StatusFailed
	}
	warned := false
	for _, step := range r.Steps {
		switch step.Status {
		case StatusFailed, StatusErrored, StatusSkipped:
			return StatusFailed
		case StatusWarned:
			warned = true
		}
	}
	if warned {
		return StatusWarned
	}
	return StatusPassed
}

// Success returns true if the run passed (including warned)
func (r *ScenarioResult) Success() bool {
	return r.Status.IsSuccess() && len(r.Steps) > 0
}
