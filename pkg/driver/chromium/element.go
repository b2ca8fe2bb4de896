package chromium

import (
	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// element wraps an element handle. Handles stay bound to their DOM node, so
// a re-rendered row makes them stale instead of silently retargeting.
type element struct {
	d *Driver
	h playwright.ElementHandle
}

func (e *element) Text() (string, error) {
	s, err := e.h.InnerText()
	return s, e.d.classify(err)
}

func (e *element) IsChecked() (bool, error) {
	v, err := e.h.IsChecked()
	return v, e.d.classify(err)
}

func (e *element) IsClickable() (bool, error) {
	visible, err := e.h.IsVisible()
	if err != nil || !visible {
		return false, e.d.classify(err)
	}
	enabled, err := e.h.IsEnabled()
	return enabled, e.d.classify(err)
}

func (e *element) Click() error {
	return e.d.classify(e.h.Click())
}

func (e *element) SendKeys(text string) error {
	return e.d.classify(e.h.Type(text))
}

func (e *element) Clear() error {
	return e.d.classify(e.h.Fill(""))
}

// GetAttribute reads "value" from the live input state rather than the markup.
func (e *element) GetAttribute(name string) (string, error) {
	if name == "value" {
		v, err := e.h.InputValue()
		return v, e.d.classify(err)
	}
	v, err := e.h.GetAttribute(name)
	return v, e.d.classify(err)
}

func (e *element) ScrollIntoView() error {
	return e.d.classify(e.h.ScrollIntoViewIfNeeded())
}

func (e *element) Find(selector string) (core.Element, error) {
	h, err := e.h.QuerySelector(selector)
	if err != nil {
		return nil, e.d.classify(err)
	}
	if h == nil {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + selector)
	}
	return &element{d: e.d, h: h}, nil
}
