package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
)

// Writer keeps report.json in step with the run and owns the run directory.
// Terminal step updates flush immediately; progress updates are debounced.
type Writer struct {
	mu        sync.Mutex
	outputDir string
	path      string
	report    *Report
	timer     *time.Timer
	closed    bool
}

// NewWriter creates the run directory layout and writes the initial report.
func NewWriter(outputDir string, r *Report) (*Writer, error) {
	for _, dir := range []string{outputDir, filepath.Join(outputDir, ScreenshotsDir), filepath.Join(outputDir, FailuresDir)} {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	w := &Writer{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, ReportFile),
		report:    r,
	}
	if err := atomicWriteJSON(w.path, r); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return w, nil
}

// Dir returns the run directory.
func (w *Writer) Dir() string {
	return w.outputDir
}

// Start marks the run as started.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.report.Status = StatusRunning
	w.report.StartTime = now
	w.flushLocked()
}

// StepStart marks a step as running.
func (w *Writer) StepStart(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx < 0 || idx >= len(w.report.Commands) {
		return
	}
	now := time.Now()
	cmd := &w.report.Commands[idx]
	cmd.Status = StatusRunning
	cmd.StartTime = &now

	// Debounced flush for progress updates (100ms)
	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(100*time.Millisecond, w.flush)
	}
}

// StepEnd records the outcome of a step and flushes.
func (w *Writer) StepEnd(res core.StepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if res.Index < 0 || res.Index >= len(w.report.Commands) {
		return
	}
	cmd := &w.report.Commands[res.Index]

	start := res.StartTime
	end := start.Add(res.Duration)
	dur := res.Duration.Milliseconds()
	cmd.Status = FromStepStatus(res.Status)
	cmd.StartTime = &start
	cmd.EndTime = &end
	cmd.Duration = &dur
	cmd.Message = res.Message
	cmd.Data = res.Data

	if res.Error != "" {
		cmd.Error = &Error{
			Type:    res.Category.String(),
			Message: res.Error,
		}
	}

	for _, a := range res.Attachments {
		switch a.Name {
		case core.AttachmentScreenshot:
			cmd.Artifacts.Screenshot = a.Path
		case core.AttachmentDOM:
			cmd.Artifacts.DOM = a.Path
		}
	}

	w.flushLocked()
}

// SkipRemaining marks pending steps from fromIndex onwards as skipped.
func (w *Writer) SkipRemaining(fromIndex int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := fromIndex; i < len(w.report.Commands); i++ {
		if w.report.Commands[i].Status == StatusPending || w.report.Commands[i].Status == StatusRunning {
			w.report.Commands[i].Status = StatusSkipped
		}
	}
	w.flushLocked()
}

// End records the final outcome of the run.
func (w *Writer) End(result *core.ScenarioResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	dur := now.Sub(w.report.StartTime).Milliseconds()
	w.report.EndTime = &now
	w.report.Duration = &dur
	w.report.Status = FromStepStatus(result.Status)
	w.report.Stats = result.Stats
	w.report.Counts = result.Counts
	if result.Error != "" {
		msg := result.Error
		w.report.Error = &msg
	}
	if err := w.flushLocked(); err != nil {
		logger.Warn("Failed to write %s: %v", ReportFile, err)
	}
}

// Close stops pending progress flushes and writes the final state.
// Safe to call multiple times.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.flushLocked(); err != nil {
		logger.Warn("Failed to write %s: %v", ReportFile, err)
	}
	w.closed = true
}

// Report returns a copy of the current report.
func (w *Writer) Report() Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := *w.report
	r.Commands = append([]Command(nil), w.report.Commands...)
	r.Screenshots = append([]string(nil), w.report.Screenshots...)
	return r
}

// SaveScreenshot stores a named phase screenshot as screenshots/<name>_<HH-MM-SS>.png
// and returns its path relative to the run directory.
func (w *Writer) SaveScreenshot(name string, at time.Time, data []byte) (string, error) {
	rel := filepath.Join(ScreenshotsDir, fmt.Sprintf("%s_%s.png", name, at.Format("15-04-05")))
	if err := os.WriteFile(filepath.Join(w.outputDir, rel), data, 0o644); err != nil {
		return "", err
	}

	w.mu.Lock()
	w.report.Screenshots = append(w.report.Screenshots, rel)
	w.mu.Unlock()
	return rel, nil
}

// SaveFailureScreenshot stores the screenshot taken when step idx failed.
func (w *Writer) SaveFailureScreenshot(idx int, data []byte) (string, error) {
	return w.saveFailure(fmt.Sprintf("cmd-%03d.png", idx), data)
}

// SaveFailureDOM stores the page markup captured when step idx failed.
func (w *Writer) SaveFailureDOM(idx int, data []byte) (string, error) {
	return w.saveFailure(fmt.Sprintf("cmd-%03d.html", idx), data)
}

func (w *Writer) saveFailure(filename string, data []byte) (string, error) {
	rel := filepath.Join(FailuresDir, filename)
	if err := os.WriteFile(filepath.Join(w.outputDir, rel), data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// WriteMetrics writes the gathered metrics to metrics.prom.
func (w *Writer) WriteMetrics(g prometheus.Gatherer) (string, error) {
	path := filepath.Join(w.outputDir, MetricsFile)
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return "", fmt.Errorf("write metrics: %w", err)
	}
	return path, nil
}

// flush applies pending progress and writes to disk.
func (w *Writer) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.flushLocked()
}

// flushLocked writes the report while holding the lock. A failed write
// leaves the previous report in place; progress flushes ignore it.
func (w *Writer) flushLocked() error {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	w.report.UpdateSeq++
	w.report.LastUpdated = time.Now()
	w.report.Summary = w.computeSummary()
	return atomicWriteJSON(w.path, w.report)
}

// computeSummary calculates the summary from step statuses.
func (w *Writer) computeSummary() Summary {
	var s Summary
	for i, c := range w.report.Commands {
		s.Total++
		switch c.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusWarned:
			s.Warned++
		case StatusRunning:
			s.Running++
			idx := i
			s.Current = &idx
		case StatusPending:
			s.Pending++
		}
	}
	return s
}
