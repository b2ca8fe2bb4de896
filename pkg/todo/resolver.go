package todo

import (
	"strings"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Resolver maps logical positions and text fragments to the live list.
// Every call re-queries the page; nothing is cached between calls.
type Resolver struct {
	session   core.Session
	selectors core.Selectors
}

// NewResolver creates a resolver for the given page and UI contract.
func NewResolver(session core.Session, selectors core.Selectors) *Resolver {
	return &Resolver{session: session, selectors: selectors.WithDefaults()}
}

// Count returns the number of rows currently visible.
func (r *Resolver) Count() (int, error) {
	rows, err := r.session.FindAll(r.selectors.Item)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ByIndex returns the row at 1-based position i in document order.
// Out-of-range positions fail with IndexOutOfRange without touching any element.
func (r *Resolver) ByIndex(i int) (core.ListItem, error) {
	rows, err := r.session.FindAll(r.selectors.Item)
	if err != nil {
		return core.ListItem{}, err
	}
	if i < 1 || i > len(rows) {
		return core.ListItem{}, core.NewIndexOutOfRange(i, len(rows))
	}
	return r.describe(i, rows[i-1])
}

// Items returns a snapshot of every visible row.
func (r *Resolver) Items() ([]core.ListItem, error) {
	rows, err := r.session.FindAll(r.selectors.Item)
	if err != nil {
		return nil, err
	}
	items := make([]core.ListItem, 0, len(rows))
	for i, row := range rows {
		item, err := r.describe(i+1, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ByTextFragment returns the 1-based position of the first row whose text
// contains fragment, ignoring case. ok is false when no row matches.
func (r *Resolver) ByTextFragment(fragment string) (position int, ok bool, err error) {
	items, err := r.Items()
	if err != nil {
		return 0, false, err
	}
	needle := strings.ToLower(fragment)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Text), needle) {
			return item.Position, true, nil
		}
	}
	return 0, false, nil
}

// describe reads the text, completion state and id of one row.
func (r *Resolver) describe(position int, row core.Element) (core.ListItem, error) {
	item := core.ListItem{Position: position, Element: row}

	textEl, err := row.Find(r.selectors.ItemText)
	if err != nil {
		return item, err
	}
	if item.Text, err = textEl.Text(); err != nil {
		return item, err
	}

	checkbox, err := row.Find(r.selectors.Checkbox)
	if err != nil {
		return item, err
	}
	if item.Completed, err = checkbox.IsChecked(); err != nil {
		return item, err
	}

	if item.ID, err = row.GetAttribute("id"); err != nil {
		return item, err
	}
	return item, nil
}
