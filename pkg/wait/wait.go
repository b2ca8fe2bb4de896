// Package wait implements condition polling against a browser session.
//
// It is the only blocking primitive of the engine: every "wait for the page
// to settle" behavior is a Condition handed to Waiter.Until.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Polling defaults.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// errNotYet marks a probe that ran cleanly but whose condition does not hold yet.
var errNotYet = errors.New("condition not met yet")

// Condition is a named predicate over the current page state.
// Check returns (false, nil) while the condition does not hold; a non-nil
// error is remembered as the reason and polling continues, except for
// ErrSessionLost which aborts the wait.
type Condition struct {
	Name  string
	Check func(s core.Session) (bool, error)
}

// Waiter polls conditions against one session.
type Waiter struct {
	session  core.Session
	timeout  time.Duration
	interval time.Duration
}

// New creates a Waiter. Zero durations use the defaults.
func New(session core.Session, timeout, interval time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Waiter{
		session:  session,
		timeout:  timeout,
		interval: interval,
	}
}

// Timeout returns the per-wait budget.
func (w *Waiter) Timeout() time.Duration {
	return w.timeout
}

// Until blocks until cond holds, the timeout elapses or ctx is done.
// On timeout it returns a WaitTimeout error naming the condition.
func (w *Waiter) Until(ctx context.Context, cond Condition) error {
	return w.UntilWithin(ctx, w.timeout, cond)
}

// UntilWithin is Until with an explicit budget.
func (w *Waiter) UntilWithin(ctx context.Context, timeout time.Duration, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var fatal, lastErr error
	probe := func() error {
		ok, err := cond.Check(w.session)
		if err != nil {
			if core.IsSessionLost(err) {
				fatal = err
				return nil
			}
			lastErr = err
			return err
		}
		if !ok {
			lastErr = nil
			return errNotYet
		}
		return nil
	}

	err := backoff.Retry(probe, backoff.WithContext(backoff.NewConstantBackOff(w.interval), ctx))
	if fatal != nil {
		return fatal
	}
	if err != nil {
		return core.NewWaitTimeout(cond.Name, lastErr)
	}
	return nil
}

// Present waits until selector matches an element and returns it.
func (w *Waiter) Present(ctx context.Context, selector string) (core.Element, error) {
	var found core.Element
	err := w.Until(ctx, Condition{
		Name: "element " + selector + " to be present",
		Check: func(s core.Session) (bool, error) {
			el, err := s.Find(selector)
			if err != nil {
				return false, err
			}
			found = el
			return true, nil
		},
	})
	return found, err
}

// Clickable waits until selector matches a visible, enabled element and returns it.
func (w *Waiter) Clickable(ctx context.Context, selector string) (core.Element, error) {
	var found core.Element
	err := w.Until(ctx, Condition{
		Name: "element " + selector + " to be clickable",
		Check: func(s core.Session) (bool, error) {
			el, err := s.Find(selector)
			if err != nil {
				return false, err
			}
			ok, err := el.IsClickable()
			if err != nil || !ok {
				return false, err
			}
			found = el
			return true, nil
		},
	})
	return found, err
}
