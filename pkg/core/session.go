package core

import (
	"context"
	"fmt"
	"strings"
)

// Session is the narrow view of one browser page the engine depends on.
// Implementations: playwright (real Chromium page), mock (in-memory to-do page).
// A Session is not safe for concurrent use; the runner drives it from one goroutine.
type Session interface {
	// Open navigates the page to url.
	Open(ctx context.Context, url string) error

	// Find returns the first element matching selector, or ErrElementNotFound.
	Find(selector string) (Element, error)

	// FindAll returns every element matching selector in document order.
	// An empty slice (not an error) means no match.
	FindAll(selector string) ([]Element, error)

	// ExecuteScript evaluates a JavaScript expression in the page.
	ExecuteScript(script string, args ...interface{}) (interface{}, error)

	// Screenshot captures the current page as PNG
	Screenshot() ([]byte, error)

	// Close releases the page and its browser.
	Close() error
}

// Element is a handle to one node of the page.
// Handles go stale when the node is removed; calls then fail with ErrStaleElement.
type Element interface {
	Text() (string, error)
	IsChecked() (bool, error)
	// IsClickable reports whether the element is visible and enabled.
	IsClickable() (bool, error)
	Click() error
	SendKeys(text string) error
	Clear() error
	GetAttribute(name string) (string, error)
	ScrollIntoView() error
	// Find returns the first descendant matching selector.
	Find(selector string) (Element, error)
}

// ListItem is a transient view of one to-do row.
// It is only valid until the next mutation of the list.
type ListItem struct {
	Position  int    `json:"position"` // 1-based, in document order at query time
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`

	// Element is the live row handle, used only for the action that resolved it.
	Element Element `json:"-"`
}

// FilterKind names one of the list filters offered by the application.
type FilterKind string

// FilterKind values
const (
	FilterAll       FilterKind = "all"
	FilterActive    FilterKind = "active"
	FilterCompleted FilterKind = "completed"
)

// Filters lists every filter in display order.
var Filters = []FilterKind{FilterAll, FilterActive, FilterCompleted}

// ParseFilter converts a user-supplied filter name.
func ParseFilter(s string) (FilterKind, error) {
	k := FilterKind(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range Filters {
		if f == k {
			return k, nil
		}
	}
	return "", ErrInvalidFilter.WithMessage(fmt.Sprintf("unknown filter %q (want all, active or completed)", s))
}
