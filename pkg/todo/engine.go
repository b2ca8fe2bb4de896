// Package todo drives a to-do application page: it resolves rows by position
// or text, performs one mutation per executor call, verifies its effect and
// records confirmed outcomes.
package todo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
	"github.com/devicelab-dev/todo-runner/pkg/wait"
)

// Options configures an Engine. Zero values use defaults.
type Options struct {
	Selectors core.Selectors
	Timeout   time.Duration
	Interval  time.Duration
}

// Engine executes verified actions against one page.
// It is driven from a single goroutine; only the tracker is shared.
type Engine struct {
	session  core.Session
	sel      core.Selectors
	waiter   *wait.Waiter
	resolver *Resolver
	tracker  *Tracker
}

// NewEngine creates an engine. A nil tracker gets a fresh one.
func NewEngine(session core.Session, tracker *Tracker, opts Options) *Engine {
	if tracker == nil {
		tracker = NewTracker()
	}
	sel := opts.Selectors.WithDefaults()
	return &Engine{
		session:  session,
		sel:      sel,
		waiter:   wait.New(session, opts.Timeout, opts.Interval),
		resolver: NewResolver(session, sel),
		tracker:  tracker,
	}
}

// Tracker returns the outcome counters.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Resolver returns the row resolver bound to the same page.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Selectors returns the effective UI contract.
func (e *Engine) Selectors() core.Selectors {
	return e.sel
}

// outcome is what an executor body reports on success.
type outcome struct {
	msg  string
	note bool // already in the desired state, nothing was done
}

// perform runs one executor body and converts everything it returns into an
// ActionResult. Failures are logged with the list size and counted.
func (e *Engine) perform(action, target, what string, body func() (outcome, error)) core.ActionResult {
	start := time.Now()
	out, err := body()

	res := core.ActionResult{
		Action:   action,
		Target:   target,
		Duration: time.Since(start),
		ListSize: e.listSize(),
	}
	fields := logrus.Fields{"action": action, "listSize": res.ListSize}

	if err == nil {
		res.Succeeded = true
		res.Message = out.msg
		if out.note {
			logger.With(fields).Info(logger.TagInfo + " " + out.msg)
		} else {
			logger.With(fields).Info(logger.TagOK + " " + out.msg)
		}
		return res
	}

	res.Err = core.AsExecutionError(err)
	res.Message = fmt.Sprintf("Failed to %s: %v", what, res.Err)
	if errors.Is(res.Err, core.ErrFilterUnavailable) {
		logger.With(fields).Warn(logger.TagWarning + " " + res.Err.Message)
		return res
	}
	e.tracker.recordError()
	logger.With(fields).Error(logger.TagFail + " " + res.Message)
	return res
}

// listSize returns the visible row count, or -1 if it cannot be read.
func (e *Engine) listSize() int {
	n, err := e.resolver.Count()
	if err != nil {
		return -1
	}
	return n
}

// verify waits for a post-condition. A condition that never holds means the
// action had no observable effect.
func (e *Engine) verify(ctx context.Context, cond wait.Condition) error {
	err := e.waiter.Until(ctx, cond)
	if err == nil || core.IsSessionLost(err) {
		return err
	}
	if errors.Is(err, core.ErrWaitTimeout) {
		return core.ErrVerificationFailed.
			WithMessage("effect not observed").
			WithDetails(map[string]interface{}{"condition": cond.Name}).
			WithCause(err)
	}
	return err
}
