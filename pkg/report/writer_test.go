package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
)

func testFlow(t *testing.T) *flow.Flow {
	t.Helper()
	f, err := flow.Parse([]byte(`
name: Smoke
---
- openApp
- addTodo: Milk
- countTodos:
    expect: 1
    label: one todo
`), "flows/smoke.yaml")
	if err != nil {
		t.Fatalf("parse flow: %v", err)
	}
	return f
}

func createTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run")
	r := BuildSkeleton(testFlow(t), BuilderConfig{RunID: "run-1", URL: "http://localhost:3000", RunnerVersion: "dev", DriverName: "mock"})
	w, err := NewWriter(dir, r)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(w.Close)
	return w, dir
}

func TestBuildSkeleton(t *testing.T) {
	r := BuildSkeleton(testFlow(t), BuilderConfig{RunID: "run-1", DriverName: "mock"})

	if r.Name != "Smoke" || r.RunID != "run-1" || r.Runner.Driver != "mock" {
		t.Errorf("unexpected header %+v", r)
	}
	if r.Status != StatusPending {
		t.Errorf("status=%s", r.Status)
	}
	if len(r.Commands) != 3 || r.Summary.Pending != 3 {
		t.Fatalf("expected 3 pending commands, got %d/%d", len(r.Commands), r.Summary.Pending)
	}
	if r.Commands[1].ID != "cmd-001" || r.Commands[1].Type != "addTodo" || r.Commands[1].YAML != `addTodo: "Milk"` {
		t.Errorf("command 1 = %+v", r.Commands[1])
	}
	if r.Commands[2].Label != "one todo" {
		t.Errorf("label=%q", r.Commands[2].Label)
	}
}

func TestBuildSkeleton_NameFromFile(t *testing.T) {
	f, err := flow.Parse([]byte("- openApp"), "flows/regression.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if r := BuildSkeleton(f, BuilderConfig{}); r.Name != "regression" {
		t.Errorf("name=%q", r.Name)
	}
}

func TestNewWriter_CreatesLayout(t *testing.T) {
	_, dir := createTestWriter(t)

	for _, p := range []string{ReportFile, ScreenshotsDir, FailuresDir} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	r, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("status=%s", r.Status)
	}
}

func TestWriter_StepLifecycle(t *testing.T) {
	w, dir := createTestWriter(t)
	w.Start()

	w.StepStart(0)
	if got := w.Report(); got.Commands[0].Status != StatusRunning {
		t.Errorf("status after StepStart=%s", got.Commands[0].Status)
	}

	start := time.Now()
	w.StepEnd(core.StepResult{Index: 0, Status: core.StatusPassed, StartTime: start, Duration: 250 * time.Millisecond, Message: "opened"})
	w.StepEnd(core.StepResult{
		Index:     1,
		Status:    core.StatusFailed,
		Category:  core.ErrCategoryAssertion,
		StartTime: start,
		Error:     "effect not observed",
		Attachments: []core.Attachment{
			core.NewScreenshotAttachment("failures/cmd-001.png", nil),
			core.NewDOMAttachment("failures/cmd-001.html", nil),
		},
	})
	w.SkipRemaining(2)

	r, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	c0, c1, c2 := r.Commands[0], r.Commands[1], r.Commands[2]
	if c0.Status != StatusPassed || c0.Duration == nil || *c0.Duration != 250 || c0.Message != "opened" {
		t.Errorf("command 0 = %+v", c0)
	}
	if c1.Status != StatusFailed || c1.Error == nil || c1.Error.Type != "assertion" {
		t.Errorf("command 1 = %+v", c1)
	}
	if c1.Artifacts.Screenshot != "failures/cmd-001.png" || c1.Artifacts.DOM != "failures/cmd-001.html" {
		t.Errorf("artifacts = %+v", c1.Artifacts)
	}
	if c2.Status != StatusSkipped {
		t.Errorf("command 2 status=%s", c2.Status)
	}
	if r.Summary.Passed != 1 || r.Summary.Failed != 1 || r.Summary.Skipped != 1 {
		t.Errorf("summary = %+v", r.Summary)
	}
}

func TestWriter_StepEndOutOfRangeIgnored(t *testing.T) {
	w, _ := createTestWriter(t)
	w.StepStart(99)
	w.StepEnd(core.StepResult{Index: -1, Status: core.StatusPassed})
	if got := w.Report(); got.Summary.Pending != 3 {
		t.Errorf("expected untouched report, got %+v", got.Summary)
	}
}

func TestWriter_End(t *testing.T) {
	w, dir := createTestWriter(t)
	w.Start()

	result := &core.ScenarioResult{
		Status: core.StatusFailed,
		Stats:  core.Stats{Added: 1, Errors: 1},
		Counts: map[string]int{"total": 1},
		Error:  "session lost",
	}
	w.End(result)
	w.Close()

	r, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if r.Status != StatusFailed || r.EndTime == nil || r.Duration == nil {
		t.Errorf("unexpected end state %+v", r)
	}
	if r.Stats.Added != 1 || r.Stats.Errors != 1 || r.Counts["total"] != 1 {
		t.Errorf("stats=%+v counts=%v", r.Stats, r.Counts)
	}
	if r.Error == nil || *r.Error != "session lost" {
		t.Errorf("error=%v", r.Error)
	}
}

func TestWriter_SaveScreenshot(t *testing.T) {
	w, dir := createTestWriter(t)
	at := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

	rel, err := w.SaveScreenshot("01_initial_state", at, []byte("png"))
	if err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
	if want := filepath.Join(ScreenshotsDir, "01_initial_state_14-05-09.png"); rel != want {
		t.Errorf("rel=%q, want %q", rel, want)
	}
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil || string(data) != "png" {
		t.Errorf("file content %q, err %v", data, err)
	}
	if got := w.Report().Screenshots; len(got) != 1 || got[0] != rel {
		t.Errorf("screenshots=%v", got)
	}
}

func TestWriter_SaveFailureArtifacts(t *testing.T) {
	w, dir := createTestWriter(t)

	shot, err := w.SaveFailureScreenshot(4, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	dom, err := w.SaveFailureDOM(4, []byte("<html></html>"))
	if err != nil {
		t.Fatal(err)
	}
	if shot != filepath.Join(FailuresDir, "cmd-004.png") || dom != filepath.Join(FailuresDir, "cmd-004.html") {
		t.Errorf("paths %q %q", shot, dom)
	}
	if _, err := os.Stat(filepath.Join(dir, dom)); err != nil {
		t.Errorf("dom not written: %v", err)
	}
}

func TestWriter_WriteMetrics(t *testing.T) {
	w, _ := createTestWriter(t)

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "todo_runner_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	path, err := w.WriteMetrics(reg)
	if err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "todo_runner_test_total 3") {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestReadReport_Missing(t *testing.T) {
	_, err := ReadReport(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestAtomicWriteJSON_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	if err := atomicWriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "x.json" {
		t.Errorf("unexpected entries %v", entries)
	}
}

func TestFromStepStatus(t *testing.T) {
	tests := []struct {
		in   core.StepStatus
		want Status
	}{
		{core.StatusPending, StatusPending},
		{core.StatusRunning, StatusRunning},
		{core.StatusPassed, StatusPassed},
		{core.StatusFailed, StatusFailed},
		{core.StatusErrored, StatusFailed},
		{core.StatusSkipped, StatusSkipped},
		{core.StatusWarned, StatusWarned},
	}
	for _, tt := range tests {
		if got := FromStepStatus(tt.in); got != tt.want {
			t.Errorf("FromStepStatus(%s)=%s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestWriter_EndLogsWriteFailure(t *testing.T) {
	w, dir := createTestWriter(t)

	// A non-empty directory in place of report.json makes the final rename fail
	path := filepath.Join(dir, ReportFile)
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	w.End(&core.ScenarioResult{Status: core.StatusPassed})

	if !strings.Contains(buf.String(), "[WARNING] Failed to write report.json") {
		t.Errorf("expected a warning about report.json, got %q", buf.String())
	}
}
