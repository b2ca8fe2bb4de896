// Package executor runs a scenario against one browser session, connecting
// the to-do engine to the run report.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/todo-runner/pkg/config"
	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
	"github.com/devicelab-dev/todo-runner/pkg/report"
	"github.com/devicelab-dev/todo-runner/pkg/todo"
)

// SessionFactory starts the browser session a run drives.
type SessionFactory func(ctx context.Context) (core.Session, error)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	// Application under test
	URL      string
	Email    string
	Password string

	// Timing
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Grace        time.Duration // Pause before the session is closed

	FailFast  bool              // Abort at the first failed required step
	Env       map[string]string // Variables visible to every scenario
	Selectors core.Selectors
	Artifacts core.ArtifactConfig

	OutputDir string // Run directory
	NoHTML    bool   // Skip report.html

	// Runner metadata
	RunnerVersion string
	DriverName    string

	// Live progress callback
	OnStepComplete func(res core.StepResult, desc string)
}

// FromConfig maps the workspace configuration onto a runner configuration.
func FromConfig(c *config.Config, outputDir string) RunnerConfig {
	return RunnerConfig{
		URL:          c.URL,
		Email:        c.Email,
		Password:     c.Password,
		WaitTimeout:  c.WaitTimeout,
		PollInterval: c.PollInterval,
		Grace:        c.Grace,
		FailFast:     c.FailFast,
		Env:          c.Env,
		Selectors:    c.Selectors,
		Artifacts:    c.Artifacts,
		OutputDir:    outputDir,
	}
}

// Runner orchestrates scenario execution.
type Runner struct {
	config  RunnerConfig
	factory SessionFactory
}

// New creates a new Runner.
func New(factory SessionFactory, cfg RunnerConfig) *Runner {
	return &Runner{
		config:  cfg,
		factory: factory,
	}
}

// Run executes the scenario and writes the run directory. The session is
// closed exactly once on every exit path. The error is non-nil only when the
// run directory cannot be created.
func (r *Runner) Run(ctx context.Context, f *flow.Flow) (*core.ScenarioResult, error) {
	runID := uuid.NewString()
	url := r.config.URL
	if f.Config.URL != "" {
		url = f.Config.URL
	}

	skeleton := report.BuildSkeleton(f, report.BuilderConfig{
		RunID:         runID,
		URL:           url,
		RunnerVersion: r.config.RunnerVersion,
		DriverName:    r.config.DriverName,
	})
	writer, err := report.NewWriter(r.config.OutputDir, skeleton)
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	defer writer.Close()

	result := &core.ScenarioResult{
		Name:      skeleton.Name,
		RunID:     runID,
		URL:       url,
		StartTime: time.Now(),
		Counts:    make(map[string]int),
	}
	tracker := todo.NewTracker()

	logger.Section("Starting Todo application test: " + result.Name)
	writer.Start()

	session, err := r.factory(ctx)
	if err != nil {
		logger.Fail("Failed to start browser: %v", err)
		result.Error = fmt.Sprintf("start browser: %v", err)
		result.Steps = skippedSteps(f.Steps, 0)
		writer.SkipRemaining(0)
		r.finish(result, tracker, writer)
		return result, nil
	}

	teardown := r.teardown(ctx, session)
	defer teardown()

	fr := &FlowRunner{
		ctx:     ctx,
		flow:    f,
		url:     url,
		session: session,
		engine: todo.NewEngine(session, tracker, todo.Options{
			Selectors: r.config.Selectors,
			Timeout:   r.config.WaitTimeout,
			Interval:  r.config.PollInterval,
		}),
		config: r.config,
		writer: writer,
		result: result,
	}
	fr.Run()

	fr.logFinalReport()
	teardown()
	r.finish(result, tracker, writer)
	return result, nil
}

// teardown returns a function that waits out the grace delay and closes the
// session. Only the first call has an effect.
func (r *Runner) teardown(ctx context.Context, session core.Session) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if r.config.Grace > 0 && ctx.Err() == nil {
				logger.Info("Closing browser in %s", r.config.Grace)
				select {
				case <-time.After(r.config.Grace):
				case <-ctx.Done():
				}
			}
			if err := session.Close(); err != nil {
				logger.Warn("Error closing browser: %v", err)
				return
			}
			logger.Info("Browser closed")
		})
	}
}

// finish aggregates the result and writes metrics, report.json and report.html.
func (r *Runner) finish(result *core.ScenarioResult, tracker *todo.Tracker, writer *report.Writer) {
	result.Stats = tracker.Snapshot()
	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()
	result.Status = result.AggregateStatus()

	if _, err := writer.WriteMetrics(tracker.Registry()); err != nil {
		logger.Warn("%v", err)
	}
	writer.End(result)
	writer.Close()

	if !r.config.NoHTML {
		if err := report.GenerateHTML(writer.Dir(), report.HTMLConfig{}); err != nil {
			logger.Warn("Failed to generate HTML report: %v", err)
		}
	}
	logger.Info("Report written to %s", writer.Dir())
}

// skippedSteps returns skipped results for steps[from:].
func skippedSteps(steps []flow.Step, from int) []core.StepResult {
	var out []core.StepResult
	for i := from; i < len(steps); i++ {
		out = append(out, core.StepResult{
			Index:   i,
			Command: string(steps[i].Type()),
			Label:   steps[i].Label(),
			Status:  core.StatusSkipped,
		})
	}
	return out
}
