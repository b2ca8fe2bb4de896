package todo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
	"github.com/devicelab-dev/todo-runner/pkg/wait"
)

// ============================================================================
// Page lifecycle
// ============================================================================

// Open navigates to url and waits until either the list screen or the login
// screen has rendered.
func (e *Engine) Open(ctx context.Context, url string) core.ActionResult {
	logger.Info("Opening Todo application at %s", url)
	return e.perform("open", url, "load Todo application", func() (outcome, error) {
		if err := e.session.Open(ctx, url); err != nil {
			return outcome{}, err
		}
		if err := e.waiter.Until(ctx, wait.DocumentReady()); err != nil {
			return outcome{}, err
		}
		err := e.waiter.Until(ctx, wait.Predicate("todo or login screen to render", func(s core.Session) (bool, error) {
			for _, sel := range []string{e.sel.Container, e.sel.LoginContainer} {
				_, err := s.Find(sel)
				if err == nil {
					return true, nil
				}
				if !core.IsNotFound(err) {
					return false, err
				}
			}
			return false, nil
		}))
		if err != nil {
			return outcome{}, err
		}
		return outcome{msg: "Todo application loaded successfully"}, nil
	})
}

// WaitReady waits until the list container is present and the input accepts clicks.
func (e *Engine) WaitReady(ctx context.Context) core.ActionResult {
	return e.perform("ready", "", "wait for Todo application", func() (outcome, error) {
		if _, err := e.waiter.Present(ctx, e.sel.Container); err != nil {
			return outcome{}, err
		}
		if _, err := e.waiter.Clickable(ctx, e.sel.Input); err != nil {
			return outcome{}, err
		}
		return outcome{msg: "Todo application is ready"}, nil
	})
}

// SignIn submits the login form. It succeeds without acting when the list
// screen is already shown.
func (e *Engine) SignIn(ctx context.Context, email, password string) core.ActionResult {
	return e.perform("signIn", email, "sign in as "+email, func() (outcome, error) {
		if _, err := e.session.Find(e.sel.Container); err == nil {
			return outcome{msg: "Already signed in", note: true}, nil
		} else if !core.IsNotFound(err) {
			return outcome{}, err
		}

		if _, err := e.waiter.Present(ctx, e.sel.LoginContainer); err != nil {
			return outcome{}, err
		}
		for _, field := range []struct{ selector, value string }{
			{e.sel.Email, email},
			{e.sel.Password, password},
		} {
			el, err := e.waiter.Clickable(ctx, field.selector)
			if err != nil {
				return outcome{}, err
			}
			if err := el.Clear(); err != nil {
				return outcome{}, err
			}
			if err := el.SendKeys(field.value); err != nil {
				return outcome{}, err
			}
		}
		button, err := e.waiter.Clickable(ctx, e.sel.LoginButton)
		if err != nil {
			return outcome{}, err
		}
		if err := button.Click(); err != nil {
			return outcome{}, err
		}
		if err := e.verify(ctx, wait.ElementPresent(e.sel.Container)); err != nil {
			return outcome{}, err
		}
		return outcome{msg: "Signed in as " + email}, nil
	})
}

// ============================================================================
// Mutations
// ============================================================================

// Add types text into the input, submits it and waits for one more row.
func (e *Engine) Add(ctx context.Context, text string) core.ActionResult {
	return e.perform("add", text, fmt.Sprintf("add todo '%s'", text), func() (outcome, error) {
		if strings.TrimSpace(text) == "" {
			return outcome{}, core.ErrInvalidConfig.WithMessage("todo text must not be empty")
		}
		input, err := e.waiter.Clickable(ctx, e.sel.Input)
		if err != nil {
			return outcome{}, err
		}
		submit, err := e.waiter.Clickable(ctx, e.sel.Submit)
		if err != nil {
			return outcome{}, err
		}
		before, err := e.resolver.Count()
		if err != nil {
			return outcome{}, err
		}

		if err := input.Clear(); err != nil {
			return outcome{}, err
		}
		if err := input.SendKeys(text); err != nil {
			return outcome{}, err
		}
		if err := submit.Click(); err != nil {
			return outcome{}, err
		}

		if err := e.verify(ctx, wait.CountIs(e.sel.Item, before+1)); err != nil {
			return outcome{}, err
		}
		e.tracker.recordAdded()
		return outcome{msg: fmt.Sprintf("Added todo: '%s'", text)}, nil
	})
}

// Toggle sets the completion state of the row at index. A row already in the
// wanted state is left alone and reported as success.
func (e *Engine) Toggle(ctx context.Context, index int, wantComplete bool) core.ActionResult {
	state := "active"
	if wantComplete {
		state = "completed"
	}
	target := strconv.Itoa(index)
	return e.perform("toggle", target, fmt.Sprintf("toggle todo %d", index), func() (outcome, error) {
		item, err := e.resolver.ByIndex(index)
		if err != nil {
			return outcome{}, err
		}
		if item.Completed == wantComplete {
			return outcome{msg: fmt.Sprintf("Todo %d already has the desired status", index), note: true}, nil
		}

		checkbox, err := item.Element.Find(e.sel.Checkbox)
		if err != nil {
			return outcome{}, err
		}
		if err := checkbox.ScrollIntoView(); err != nil {
			return outcome{}, err
		}
		if err := checkbox.Click(); err != nil {
			return outcome{}, err
		}

		name := fmt.Sprintf("todo %d to become %s", index, state)
		if err := e.verify(ctx, wait.Predicate(name, e.toggled(index, item.ID, wantComplete))); err != nil {
			return outcome{}, err
		}
		if wantComplete {
			e.tracker.recordCompleted()
		}
		return outcome{msg: fmt.Sprintf("Todo %d marked as %s", index, state)}, nil
	})
}

// toggled checks the post-condition of a toggle on a fresh query. The row is
// found again by its id; a row that left a filtered view counts as toggled.
func (e *Engine) toggled(index int, rowID string, want bool) func(core.Session) (bool, error) {
	return func(s core.Session) (bool, error) {
		if rowID == "" {
			item, err := e.resolver.ByIndex(index)
			if err != nil {
				return false, err
			}
			return item.Completed == want, nil
		}

		rows, err := s.FindAll(e.sel.Item)
		if err != nil {
			return false, err
		}
		for _, row := range rows {
			id, err := row.GetAttribute("id")
			if err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return false, err
			}
			if id != rowID {
				continue
			}
			checkbox, err := row.Find(e.sel.Checkbox)
			if err != nil {
				return false, err
			}
			checked, err := checkbox.IsChecked()
			if err != nil {
				return false, err
			}
			if checked != want {
				return false, fmt.Errorf("checkbox still %t", checked)
			}
			return true, nil
		}

		filter, err := e.CurrentFilter()
		if err != nil {
			return false, err
		}
		if filter == core.FilterAll {
			return false, fmt.Errorf("row %s disappeared", rowID)
		}
		return true, nil
	}
}

// Delete removes the row at index and waits for the list to shrink by one.
func (e *Engine) Delete(ctx context.Context, index int) core.ActionResult {
	return e.perform("delete", strconv.Itoa(index), fmt.Sprintf("delete todo %d", index), func() (outcome, error) {
		item, err := e.resolver.ByIndex(index)
		if err != nil {
			return outcome{}, err
		}
		before, err := e.resolver.Count()
		if err != nil {
			return outcome{}, err
		}

		if err := item.Element.ScrollIntoView(); err != nil {
			return outcome{}, err
		}
		button, err := item.Element.Find(e.sel.DeleteButton)
		if err != nil {
			return outcome{}, err
		}
		if err := button.Click(); err != nil {
			return outcome{}, err
		}

		if err := e.verify(ctx, wait.CountIs(e.sel.Item, before-1)); err != nil {
			return outcome{}, err
		}
		e.tracker.recordDeleted()
		return outcome{msg: fmt.Sprintf("Todo %d deleted successfully", index)}, nil
	})
}

// Update edits the text of the row at index and waits until a fresh query
// shows that same row containing newText.
func (e *Engine) Update(ctx context.Context, index int, newText string) core.ActionResult {
	return e.perform("update", strconv.Itoa(index), fmt.Sprintf("update todo %d", index), func() (outcome, error) {
		if strings.TrimSpace(newText) == "" {
			return outcome{}, core.ErrInvalidConfig.WithMessage("todo text must not be empty")
		}
		item, err := e.resolver.ByIndex(index)
		if err != nil {
			return outcome{}, err
		}

		if err := item.Element.ScrollIntoView(); err != nil {
			return outcome{}, err
		}
		edit, err := item.Element.Find(e.sel.EditButton)
		if err != nil {
			return outcome{}, err
		}
		if err := edit.Click(); err != nil {
			return outcome{}, err
		}

		// Edit mode is entered once the input holds the current text.
		input, err := e.waiter.Clickable(ctx, e.sel.Input)
		if err != nil {
			return outcome{}, err
		}
		err = e.waiter.Until(ctx, wait.Predicate(fmt.Sprintf("input to hold the text of todo %d", index), func(core.Session) (bool, error) {
			value, err := input.GetAttribute("value")
			if err != nil {
				return false, err
			}
			return strings.TrimSpace(value) == strings.TrimSpace(item.Text), nil
		}))
		if err != nil {
			return outcome{}, err
		}

		if err := input.Clear(); err != nil {
			return outcome{}, err
		}
		if err := input.SendKeys(newText); err != nil {
			return outcome{}, err
		}
		submit, err := e.waiter.Clickable(ctx, e.sel.Submit)
		if err != nil {
			return outcome{}, err
		}
		if err := submit.Click(); err != nil {
			return outcome{}, err
		}

		name := fmt.Sprintf("todo %d to contain '%s'", index, newText)
		if err := e.verify(ctx, wait.Predicate(name, e.edited(item, input, newText))); err != nil {
			return outcome{}, err
		}
		e.tracker.recordUpdated()
		return outcome{msg: fmt.Sprintf("Todo %d updated to: '%s'", index, newText)}, nil
	})
}

// edited checks the post-condition of an update on a fresh query. The row is
// found again by its id. A row that already held newText must also have left
// edit mode, so an ignored submit is not taken for an edit. Without an id any
// row containing newText is accepted.
func (e *Engine) edited(item core.ListItem, input core.Element, newText string) func(core.Session) (bool, error) {
	return func(s core.Session) (bool, error) {
		if item.ID == "" {
			items, err := e.resolver.Items()
			if err != nil {
				return false, err
			}
			for _, it := range items {
				if strings.Contains(it.Text, newText) {
					return true, nil
				}
			}
			return false, nil
		}

		text, found, err := e.rowText(s, item.ID)
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("row %s disappeared", item.ID)
		}
		if !strings.Contains(text, newText) {
			return false, fmt.Errorf("row %s still reads '%s'", item.ID, text)
		}
		if !strings.Contains(item.Text, newText) {
			return true, nil
		}
		value, err := input.GetAttribute("value")
		if err != nil {
			if core.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		if strings.TrimSpace(value) == strings.TrimSpace(newText) {
			return false, errors.New("edit was not submitted")
		}
		return true, nil
	}
}

// rowText returns the text of the row carrying rowID.
func (e *Engine) rowText(s core.Session, rowID string) (string, bool, error) {
	rows, err := s.FindAll(e.sel.Item)
	if err != nil {
		return "", false, err
	}
	for _, row := range rows {
		id, err := row.GetAttribute("id")
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return "", false, err
		}
		if id != rowID {
			continue
		}
		el, err := row.Find(e.sel.ItemText)
		if err != nil {
			return "", false, err
		}
		text, err := el.Text()
		if err != nil {
			return "", false, err
		}
		return strings.TrimSpace(text), true, nil
	}
	return "", false, nil
}

// ApplyFilter selects a list filter and waits until its control is marked
// active. An empty list shows no filter controls; that is reported as a
// failure with a warning and is not counted as an error.
func (e *Engine) ApplyFilter(ctx context.Context, kind core.FilterKind) core.ActionResult {
	return e.perform("filter", string(kind), fmt.Sprintf("apply filter '%s'", kind), func() (outcome, error) {
		kind, err := core.ParseFilter(string(kind))
		if err != nil {
			return outcome{}, err
		}
		if _, err := e.session.Find(e.sel.FilterContainer); err != nil {
			if core.IsNotFound(err) {
				return outcome{}, core.ErrFilterUnavailable.WithMessage("Filter container not found - no todos to filter")
			}
			return outcome{}, err
		}

		selector := e.sel.Filter(kind)
		button, err := e.waiter.Clickable(ctx, selector)
		if err != nil {
			return outcome{}, err
		}
		if err := button.ScrollIntoView(); err != nil {
			return outcome{}, err
		}
		if err := button.Click(); err != nil {
			return outcome{}, err
		}
		if err := e.verify(ctx, wait.HasClass(selector, e.sel.ActiveClass)); err != nil {
			return outcome{}, err
		}
		return outcome{msg: fmt.Sprintf("Filter '%s' applied successfully", kind)}, nil
	})
}

// ============================================================================
// Queries
// ============================================================================

// Count returns the number of visible rows.
func (e *Engine) Count() (int, error) {
	n, err := e.resolver.Count()
	if err != nil {
		logger.Fail("Failed to get todo count: %v", err)
		return 0, err
	}
	logger.Note("Current todo count: %d", n)
	return n, nil
}

// CurrentFilter returns the filter whose control carries the active class.
// With no marked control, or no controls at all, the full list is shown.
func (e *Engine) CurrentFilter() (core.FilterKind, error) {
	for _, kind := range core.Filters {
		el, err := e.session.Find(e.sel.Filter(kind))
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return "", err
		}
		class, err := el.GetAttribute("class")
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return "", err
		}
		if wait.ClassListContains(class, e.sel.ActiveClass) {
			return kind, nil
		}
	}
	return core.FilterAll, nil
}

// FindByText returns the 1-based position of the first row containing fragment.
func (e *Engine) FindByText(fragment string) (int, bool, error) {
	pos, ok, err := e.resolver.ByTextFragment(fragment)
	if err != nil {
		logger.Error("Error finding todo by text: %v", err)
		return 0, false, err
	}
	if ok {
		logger.Note("Todo containing '%s' is at position %d", fragment, pos)
	} else {
		logger.Note("No todo contains '%s'", fragment)
	}
	return pos, ok, nil
}
