package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
	"github.com/devicelab-dev/todo-runner/pkg/report"
	"github.com/devicelab-dev/todo-runner/pkg/todo"
)

// domScript returns the page markup saved next to failure screenshots.
const domScript = "() => document.documentElement.outerHTML"

// FlowRunner executes the steps of one scenario on an open session.
type FlowRunner struct {
	ctx     context.Context
	flow    *flow.Flow
	url     string
	session core.Session
	engine  *todo.Engine
	script  *ScriptEngine
	config  RunnerConfig
	writer  *report.Writer
	result  *core.ScenarioResult

	panicked bool
}

// Run executes every step in order. A failed step is recorded and the run
// continues, unless the failure aborts the run; the remaining steps are then
// reported as skipped.
func (fr *FlowRunner) Run() {
	fr.script = NewScriptEngine(fr.engine.Tracker().Snapshot)
	defer fr.script.Close()

	fr.script.ImportSystemEnv()
	fr.script.SetVariable("APP_URL", fr.url)
	fr.script.SetVariables(fr.config.Env)
	fr.script.SetVariables(fr.flow.Config.Env)

	for i, step := range fr.flow.Steps {
		if err := fr.ctx.Err(); err != nil {
			fr.abort(i, "run cancelled: "+err.Error())
			return
		}

		fr.writer.StepStart(i)
		res := fr.executeStep(i, step)
		fr.result.Steps = append(fr.result.Steps, res)
		fr.writer.StepEnd(res)

		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(res, step.Describe())
		}

		if reason := fr.abortReason(step, res); reason != "" {
			fr.abort(i+1, reason)
			return
		}
	}
}

// abortReason decides whether the run can go on after res.
func (fr *FlowRunner) abortReason(step flow.Step, res core.StepResult) string {
	if fr.panicked {
		return res.Error
	}
	if res.Category == core.ErrCategorySession {
		return "session lost: " + res.Error
	}
	if err := fr.ctx.Err(); err != nil {
		return "run cancelled: " + err.Error()
	}
	if res.Status != core.StatusFailed && res.Status != core.StatusErrored {
		return ""
	}
	switch step.Type() {
	case flow.StepOpenApp, flow.StepSignIn:
		return fmt.Sprintf("%s failed: %s", step.Type(), res.Error)
	}
	if fr.config.FailFast {
		return fmt.Sprintf("step %d (%s) failed: %s", res.Index, step.Type(), res.Error)
	}
	return ""
}

// abort marks steps from index on as skipped and records why the run stopped.
func (fr *FlowRunner) abort(from int, reason string) {
	logger.Fail("Aborting scenario: %s", reason)
	fr.result.Error = reason
	fr.result.Steps = append(fr.result.Steps, skippedSteps(fr.flow.Steps, from)...)
	fr.writer.SkipRemaining(from)
}

// executeStep runs one step and converts its outcome into a StepResult.
// A panic is recorded as an errored step and aborts the run.
func (fr *FlowRunner) executeStep(idx int, step flow.Step) (res core.StepResult) {
	start := time.Now()
	res = core.StepResult{
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		StartTime: start,
	}
	logger.Debug("Step %d: %s", idx, step.Describe())

	defer func() {
		if p := recover(); p != nil {
			fr.panicked = true
			res.Status = core.StatusErrored
			res.Category = core.ErrCategorySession
			res.Error = fmt.Sprintf("panic in %s: %v", step.Type(), p)
			res.Duration = time.Since(start)
			logger.Fail("%s", res.Error)
		}
	}()

	action, data := fr.dispatch(step)

	res.Duration = time.Since(start)
	res.Message = action.Message
	res.Data = data
	res.Status = stepStatus(step, action.Err)
	if action.Err != nil {
		res.Category = action.Err.Category
		res.Error = action.Err.Error()
	}

	if res.Status != core.StatusPassed && res.Category != core.ErrCategorySession {
		res.Attachments = fr.captureArtifacts(idx)
	}
	return res
}

// stepStatus maps an executor error onto a step status.
func stepStatus(step flow.Step, err *core.ExecutionError) core.StepStatus {
	switch {
	case err == nil:
		return core.StatusPassed
	case err.Fatal():
		return core.StatusErrored
	case step.IsOptional(), errors.Is(err, core.ErrFilterUnavailable):
		return core.StatusWarned
	case err.Category == core.ErrCategoryTimeout:
		return core.StatusErrored
	default:
		return core.StatusFailed
	}
}

// dispatch routes a step to its executor.
func (fr *FlowRunner) dispatch(step flow.Step) (core.ActionResult, interface{}) {
	action := string(step.Type())

	switch s := step.(type) {
	case *flow.OpenAppStep:
		return fr.executeOpenApp(s), nil

	case *flow.SignInStep:
		email, password, err := fr.credentials(s.Email, s.Password)
		if err != nil {
			return failed(action, email, err), nil
		}
		return fr.engine.SignIn(fr.ctx, email, password), nil

	case *flow.AddTodoStep:
		text, err := fr.script.ExpandVariables(s.Text)
		if err != nil {
			return failed(action, s.Text, err), nil
		}
		return fr.engine.Add(fr.ctx, text), nil

	case *flow.AddTodosStep:
		return fr.executeAddTodos(s)

	case *flow.ToggleTodoStep:
		return fr.engine.Toggle(fr.ctx, s.Index, s.WantComplete()), nil

	case *flow.DeleteTodoStep:
		return fr.engine.Delete(fr.ctx, s.Index), nil

	case *flow.UpdateTodoStep:
		text, err := fr.script.ExpandVariables(s.Text)
		if err != nil {
			return failed(action, s.Text, err), nil
		}
		return fr.engine.Update(fr.ctx, s.Index, text), nil

	case *flow.ApplyFilterStep:
		name, err := fr.script.ExpandVariables(s.Filter)
		if err != nil {
			return failed(action, s.Filter, err), nil
		}
		kind, err := core.ParseFilter(name)
		if err != nil {
			return failed(action, name, err), nil
		}
		return fr.engine.ApplyFilter(fr.ctx, kind), nil

	case *flow.CountTodosStep:
		return fr.executeCountTodos(s)

	case *flow.FindTodoStep:
		return fr.executeFindTodo(s)

	case *flow.AssertTrueStep:
		return fr.script.ExecuteAssertTrue(s), nil

	case *flow.TakeScreenshotStep:
		return fr.executeTakeScreenshot(s)

	case *flow.SectionStep:
		title, err := fr.script.ExpandVariables(s.Title)
		if err != nil {
			return failed(action, s.Title, err), nil
		}
		logger.Section(title)
		return core.ActionResult{Action: action, Target: title, Succeeded: true, Message: title}, nil

	case *flow.DefineVariablesStep:
		return fr.script.ExecuteDefineVariables(s), nil
	}

	return failed(action, "", core.ErrInvalidConfig.WithMessage("unsupported step type: "+action)), nil
}

// executeOpenApp loads the application, signs in when credentials are
// configured and waits until the list is ready.
func (fr *FlowRunner) executeOpenApp(s *flow.OpenAppStep) core.ActionResult {
	url := fr.url
	if s.URL != "" {
		expanded, err := fr.script.ExpandVariables(s.URL)
		if err != nil {
			return failed(string(s.Type()), s.URL, err)
		}
		url = expanded
	}

	res := fr.engine.Open(fr.ctx, url)
	if !res.Succeeded {
		return res
	}
	if fr.config.Email != "" && fr.config.Password != "" {
		if signIn := fr.engine.SignIn(fr.ctx, fr.config.Email, fr.config.Password); !signIn.Succeeded {
			return signIn
		}
	}
	ready := fr.engine.WaitReady(fr.ctx)
	if !ready.Succeeded {
		return ready
	}
	res.Message = ready.Message
	res.Duration += ready.Duration
	res.ListSize = ready.ListSize
	return res
}

// credentials resolves sign-in values from the step, falling back to the
// configuration.
func (fr *FlowRunner) credentials(email, password string) (string, string, error) {
	if email == "" {
		email = fr.config.Email
	}
	if password == "" {
		password = fr.config.Password
	}
	var err error
	if email, err = fr.script.ExpandVariables(email); err != nil {
		return email, "", err
	}
	if password, err = fr.script.ExpandVariables(password); err != nil {
		return email, "", err
	}
	if email == "" || password == "" {
		return email, "", core.ErrInvalidConfig.WithMessage("signIn needs an email and a password")
	}
	return email, password, nil
}

// executeAddTodos adds each text in order. Individual failures are logged and
// the step fails with the first of them; session loss stops immediately.
func (fr *FlowRunner) executeAddTodos(s *flow.AddTodosStep) (core.ActionResult, interface{}) {
	action := string(s.Type())
	start := time.Now()
	added := 0
	var firstErr *core.ExecutionError
	last := core.ActionResult{ListSize: -1}

	for _, raw := range s.Texts {
		text, err := fr.script.ExpandVariables(raw)
		if err != nil {
			return failed(action, raw, err), map[string]int{"added": added}
		}
		last = fr.engine.Add(fr.ctx, text)
		if last.Succeeded {
			added++
			continue
		}
		if firstErr == nil {
			firstErr = last.Err
		}
		if last.Fatal() || fr.ctx.Err() != nil {
			break
		}
	}

	msg := fmt.Sprintf("Added %d/%d todos", added, len(s.Texts))
	if firstErr == nil {
		logger.OK("%s", msg)
	} else {
		logger.Fail("%s", msg)
	}
	return core.ActionResult{
		Action:    action,
		Target:    fmt.Sprintf("%d items", len(s.Texts)),
		Succeeded: firstErr == nil,
		Err:       firstErr,
		Duration:  time.Since(start),
		Message:   msg,
		ListSize:  last.ListSize,
	}, map[string]int{"added": added}
}

// executeCountTodos reads the visible count, stores it and checks the
// expectation.
func (fr *FlowRunner) executeCountTodos(s *flow.CountTodosStep) (core.ActionResult, interface{}) {
	action := string(s.Type())
	n, err := fr.engine.Count()
	if err != nil {
		return failed(action, s.As, err), nil
	}

	if s.As != "" {
		fr.script.SetVariable(s.As, n)
		fr.result.Counts[s.As] = n
	}
	data := map[string]int{"count": n}

	if s.Expect != nil && n != *s.Expect {
		logger.Fail("Expected %d todos, found %d", *s.Expect, n)
		res := failed(action, s.As, core.ErrVerificationFailed.
			WithMessage(fmt.Sprintf("expected %d todos, found %d", *s.Expect, n)).
			WithDetails(map[string]interface{}{"expected": *s.Expect, "actual": n}))
		res.ListSize = n
		return res, data
	}

	return core.ActionResult{
		Action:    action,
		Target:    s.As,
		Succeeded: true,
		Message:   fmt.Sprintf("%d todos visible", n),
		ListSize:  n,
	}, data
}

// executeFindTodo locates the first row containing the text.
func (fr *FlowRunner) executeFindTodo(s *flow.FindTodoStep) (core.ActionResult, interface{}) {
	action := string(s.Type())
	text, err := fr.script.ExpandVariables(s.Text)
	if err != nil {
		return failed(action, s.Text, err), nil
	}

	pos, ok, err := fr.engine.FindByText(text)
	if err != nil {
		return failed(action, text, err), nil
	}
	if s.As != "" {
		fr.script.SetVariable(s.As, pos)
	}
	data := map[string]int{"position": pos}

	if !ok {
		if s.Required {
			return failed(action, text, core.ErrElementNotFound.
				WithMessage(fmt.Sprintf("no todo contains '%s'", text))), data
		}
		return core.ActionResult{Action: action, Target: text, Succeeded: true,
			Message: fmt.Sprintf("No todo contains '%s'", text), ListSize: -1}, data
	}
	return core.ActionResult{
		Action:    action,
		Target:    text,
		Succeeded: true,
		Message:   fmt.Sprintf("Todo containing '%s' is at position %d", text, pos),
		ListSize:  -1,
	}, data
}

// executeTakeScreenshot saves a named screenshot into the run directory.
func (fr *FlowRunner) executeTakeScreenshot(s *flow.TakeScreenshotStep) (core.ActionResult, interface{}) {
	action := string(s.Type())
	name, err := fr.script.ExpandVariables(s.Name)
	if err != nil {
		return failed(action, s.Name, err), nil
	}

	data, err := fr.session.Screenshot()
	if err != nil {
		logger.Fail("Failed to take screenshot: %v", err)
		return failed(action, name, err), nil
	}
	rel, err := fr.writer.SaveScreenshot(name, time.Now(), data)
	if err != nil {
		logger.Fail("Failed to take screenshot: %v", err)
		return failed(action, name, core.ErrInvalidConfig.WithMessage("save screenshot").WithCause(err)), nil
	}

	logger.OK("Screenshot saved: %s", rel)
	return core.ActionResult{
		Action:    action,
		Target:    name,
		Succeeded: true,
		Message:   "Screenshot saved: " + rel,
		ListSize:  -1,
	}, map[string]string{"path": rel}
}

// captureArtifacts saves the failure screenshot and page markup per the
// artifact configuration. Capture errors are logged and ignored.
func (fr *FlowRunner) captureArtifacts(idx int) []core.Attachment {
	cfg := fr.config.Artifacts
	if !cfg.CaptureOnFailure {
		return nil
	}

	var out []core.Attachment
	if cfg.Screenshot {
		if data, err := fr.session.Screenshot(); err != nil {
			logger.Debug("failure screenshot: %v", err)
		} else if rel, err := fr.writer.SaveFailureScreenshot(idx, data); err != nil {
			logger.Debug("save failure screenshot: %v", err)
		} else {
			out = append(out, core.NewScreenshotAttachment(rel, nil))
		}
	}
	if cfg.DOM {
		if v, err := fr.session.ExecuteScript(domScript); err != nil {
			logger.Debug("failure DOM: %v", err)
		} else if html, ok := v.(string); ok {
			if rel, err := fr.writer.SaveFailureDOM(idx, []byte(html)); err != nil {
				logger.Debug("save failure DOM: %v", err)
			} else {
				out = append(out, core.NewDOMAttachment(rel, nil))
			}
		}
	}
	return out
}

// logFinalReport writes the counts recorded by the scenario and the outcome
// counters.
func (fr *FlowRunner) logFinalReport() {
	logger.Section("Final Report")

	names := make([]string, 0, len(fr.result.Counts))
	for name := range fr.result.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Note("%s todos: %d", capitalize(name), fr.result.Counts[name])
	}

	s := fr.engine.Tracker().Snapshot()
	logger.Info("Automation statistics:")
	logger.Info("  Added: %d", s.Added)
	logger.Info("  Completed: %d", s.Completed)
	logger.Info("  Deleted: %d", s.Deleted)
	logger.Info("  Updated: %d", s.Updated)
	logger.Info("  Errors: %d", s.Errors)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
