// Package mock provides an in-memory to-do page for testing without a real browser.
//
// The page follows the DOM contract of the reference application: the same
// ids, classes and conditional rendering. Handles to removed nodes go stale,
// clicks can be delayed to mimic asynchronous re-rendering, and a closed
// session reports ErrSessionLost.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Todo is one entry of the in-memory application state.
type Todo struct {
	ID        string
	Text      string
	Completed bool
}

// Config configures mock page behavior.
type Config struct {
	// Latency delays the effect of every click, like a slow re-render.
	Latency time.Duration

	// Todos seeds the list. Entries without an ID get one.
	Todos []Todo

	// RequireLogin shows the login screen until Email/Password are submitted.
	RequireLogin bool
	Email        string
	Password     string

	// ClickHook runs before every click with the target element id.
	// A non-nil error is returned from Click and the click has no effect.
	ClickHook func(id string) error

	// DropClick swallows clicks on matching ids without an error,
	// like an application that ignores the interaction.
	DropClick func(id string) bool
}

// Driver is a mock implementation of core.Session.
type Driver struct {
	// Configuration
	Config Config

	mu sync.Mutex

	// Page state
	url      string
	opened   bool
	closed   bool
	authed   bool
	todos    []Todo
	filter   core.FilterKind
	input    string
	email    string
	password string
	editing  string
	pending  []change

	// Recorded interactions
	clicks      []string
	scrolls     []string
	screenshots int
	closeCount  int
}

type change struct {
	due   time.Time
	apply func()
}

// New creates a new mock page.
func New(cfg Config) *Driver {
	d := &Driver{Config: cfg, filter: core.FilterAll}
	for _, t := range cfg.Todos {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		d.todos = append(d.todos, t)
	}
	d.authed = !cfg.RequireLogin
	return d
}

// ============================================================================
// core.Session
// ============================================================================

// Open loads the page.
func (d *Driver) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return core.ErrSessionLost
	}
	d.url = url
	d.opened = true
	return nil
}

// Find returns the first element matching selector.
func (d *Driver) Find(selector string) (core.Element, error) {
	els, err := d.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + selector)
	}
	return els[0], nil
}

// FindAll returns every element matching selector in document order.
func (d *Driver) FindAll(selector string) ([]core.Element, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid selector").WithCause(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, core.ErrSessionLost
	}
	d.settle()
	return d.wrap(d.render().query(sel)), nil
}

// ExecuteScript understands the few page scripts the engine and runner issue.
func (d *Driver) ExecuteScript(script string, _ ...interface{}) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, core.ErrSessionLost
	}
	d.settle()
	switch {
	case strings.Contains(script, "readyState"):
		if !d.opened {
			return "loading", nil
		}
		return "complete", nil
	case strings.Contains(script, "outerHTML"):
		return d.render().html(), nil
	}
	return nil, nil
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, core.ErrSessionLost
	}
	d.screenshots++
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Close ends the session. Later calls fail with ErrSessionLost.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCount++
	d.closed = true
	return nil
}

// ============================================================================
// Test helpers
// ============================================================================

// Crash makes the session unusable without counting a Close, like a browser crash.
func (d *Driver) Crash() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Todos returns the settled application state.
func (d *Driver) Todos() []Todo {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settle()
	return append([]Todo(nil), d.todos...)
}

// Filter returns the selected filter.
func (d *Driver) Filter() core.FilterKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settle()
	return d.filter
}

// Clicks returns the ids of every clicked element in order.
func (d *Driver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Scrolls returns the ids of every element scrolled into view.
func (d *Driver) Scrolls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scrolls...)
}

// CloseCount returns how many times Close was called.
func (d *Driver) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeCount
}

// ScreenshotCount returns how many screenshots were taken.
func (d *Driver) ScreenshotCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenshots
}

// URL returns the last opened address.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// ============================================================================
// Rendering and state changes (callers hold mu)
// ============================================================================

// settle applies every queued change whose time has come.
func (d *Driver) settle() {
	now := time.Now()
	i := 0
	for ; i < len(d.pending) && !d.pending[i].due.After(now); i++ {
		d.pending[i].apply()
	}
	d.pending = d.pending[i:]
}

func (d *Driver) schedule(apply func()) {
	if d.Config.Latency <= 0 && len(d.pending) == 0 {
		apply()
		return
	}
	d.pending = append(d.pending, change{due: time.Now().Add(d.Config.Latency), apply: apply})
}

func (d *Driver) render() *node {
	root := el("div", "root", "App")
	if !d.opened {
		return root
	}
	if !d.authed {
		return root.add(
			el("div", "login-container", "login-container").add(
				el("h2", "login-title").withText("Sign In"),
				el("form", "login-form", "login-form").add(
					el("input", "email").withAttr("type", "email").withAttr("value", d.email),
					el("input", "password").withAttr("type", "password").withAttr("value", d.password),
					el("button", "login-button", "login-button").withAttr("type", "submit").withText("Sign In"),
				),
			),
		)
	}

	submit := "Add"
	if d.editing != "" {
		submit = "Update"
	}
	container := el("div", "todo-container", "todo-container").add(
		el("h1", "todo-title").withText("To-Do test Creation"),
		el("form", "todo-form", "todo-form").add(
			el("input", "todo-input", "todo-input").withAttr("type", "text").withAttr("value", d.input),
			el("button", "todo-submit-btn", "todo-submit-btn").withAttr("type", "submit").withText(submit),
		),
	)

	if len(d.todos) > 0 {
		filters := el("div", "filter-container", "filter-container")
		for _, kind := range core.Filters {
			classes := []string{"filter-btn"}
			if kind == d.filter {
				classes = append(classes, "active")
			}
			label := strings.ToUpper(string(kind[:1])) + string(kind[1:])
			filters.add(el("button", "filter-"+string(kind), classes...).withText(label))
		}
		container.add(filters)
	}

	list := el("ul", "todo-list", "todo-list")
	for _, t := range d.todos {
		if !visible(t, d.filter) {
			continue
		}
		itemClasses := []string{"todo-item"}
		textClasses := []string{"todo-text"}
		if t.Completed {
			itemClasses = append(itemClasses, "completed")
			textClasses = append(textClasses, "completed")
		}
		checkbox := el("input", "todo-checkbox-"+t.ID, "todo-checkbox").withAttr("type", "checkbox")
		checkbox.checked = t.Completed
		list.add(el("li", "todo-item-"+t.ID, itemClasses...).add(
			el("div", "todo-content-"+t.ID, "todo-content").add(
				checkbox,
				el("span", "todo-text-"+t.ID, textClasses...).withText(t.Text),
			),
			el("div", "todo-actions-"+t.ID, "todo-actions").add(
				el("button", "edit-btn-"+t.ID, "action-btn", "edit-btn").withAttr("title", "Edit"),
				el("button", "delete-btn-"+t.ID, "action-btn", "delete-btn").withAttr("title", "Delete"),
			),
		))
	}
	return root.add(container.add(list))
}

func visible(t Todo, filter core.FilterKind) bool {
	switch filter {
	case core.FilterActive:
		return !t.Completed
	case core.FilterCompleted:
		return t.Completed
	}
	return true
}

func (d *Driver) wrap(nodes []*node) []core.Element {
	out := make([]core.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{d: d, id: n.id}
	}
	return out
}

// lookup resolves a handle against the current page.
func (d *Driver) lookup(id string) (*node, error) {
	if d.closed {
		return nil, core.ErrSessionLost
	}
	d.settle()
	n := d.render().byID(id)
	if n == nil {
		return nil, core.ErrStaleElement.WithMessage("element " + id + " is no longer attached to the page")
	}
	return n, nil
}

func (d *Driver) click(id string) {
	switch {
	case id == "todo-submit-btn":
		text := strings.TrimSpace(d.input)
		editing := d.editing
		d.schedule(func() {
			if text == "" {
				return
			}
			if editing != "" {
				for i := range d.todos {
					if d.todos[i].ID == editing {
						d.todos[i].Text = text
					}
				}
				d.editing = ""
			} else {
				d.todos = append(d.todos, Todo{ID: uuid.NewString(), Text: text})
			}
			d.input = ""
		})
	case id == "login-button":
		ok := d.email == d.Config.Email && d.password == d.Config.Password
		d.schedule(func() {
			if ok {
				d.authed = true
			}
		})
	case strings.HasPrefix(id, "todo-checkbox-"):
		todoID := strings.TrimPrefix(id, "todo-checkbox-")
		d.schedule(func() {
			for i := range d.todos {
				if d.todos[i].ID == todoID {
					d.todos[i].Completed = !d.todos[i].Completed
				}
			}
		})
	case strings.HasPrefix(id, "delete-btn-"):
		todoID := strings.TrimPrefix(id, "delete-btn-")
		d.schedule(func() {
			for i := range d.todos {
				if d.todos[i].ID == todoID {
					d.todos = append(d.todos[:i], d.todos[i+1:]...)
					break
				}
			}
			if d.editing == todoID {
				d.editing = ""
			}
		})
	case strings.HasPrefix(id, "edit-btn-"):
		todoID := strings.TrimPrefix(id, "edit-btn-")
		d.schedule(func() {
			for _, t := range d.todos {
				if t.ID == todoID {
					d.input = t.Text
					d.editing = todoID
				}
			}
		})
	case strings.HasPrefix(id, "filter-") && id != "filter-container":
		kind := core.FilterKind(strings.TrimPrefix(id, "filter-"))
		d.schedule(func() { d.filter = kind })
	}
}

// ============================================================================
// core.Element
// ============================================================================

type element struct {
	d  *Driver
	id string
}

func (e *element) Text() (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return "", err
	}
	return n.innerText(), nil
}

func (e *element) IsChecked() (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return false, err
	}
	return n.checked, nil
}

func (e *element) IsClickable() (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return false, err
	}
	return !n.disabled, nil
}

func (e *element) Click() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if _, err := e.d.lookup(e.id); err != nil {
		return err
	}
	if hook := e.d.Config.ClickHook; hook != nil {
		if err := hook(e.id); err != nil {
			return err
		}
	}
	e.d.clicks = append(e.d.clicks, e.id)
	if drop := e.d.Config.DropClick; drop != nil && drop(e.id) {
		return nil
	}
	e.d.click(e.id)
	return nil
}

func (e *element) SendKeys(text string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return err
	}
	if n.tag != "input" {
		return fmt.Errorf("element %s is not editable", e.id)
	}
	switch e.id {
	case "todo-input":
		e.d.input += text
	case "email":
		e.d.email += text
	case "password":
		e.d.password += text
	}
	return nil
}

func (e *element) Clear() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return err
	}
	if n.tag != "input" {
		return fmt.Errorf("element %s is not editable", e.id)
	}
	switch e.id {
	case "todo-input":
		e.d.input = ""
	case "email":
		e.d.email = ""
	case "password":
		e.d.password = ""
	}
	return nil
}

func (e *element) GetAttribute(name string) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return "", err
	}
	v, _ := n.attr(name)
	return v, nil
}

func (e *element) ScrollIntoView() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if _, err := e.d.lookup(e.id); err != nil {
		return err
	}
	e.d.scrolls = append(e.d.scrolls, e.id)
	return nil
}

func (e *element) Find(selector string) (core.Element, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid selector").WithCause(err)
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.d.lookup(e.id)
	if err != nil {
		return nil, err
	}
	found := n.query(sel)
	if len(found) == 0 {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + selector)
	}
	return &element{d: e.d, id: found[0].id}, nil
}
