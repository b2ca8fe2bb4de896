package core

import "strings"

// Selectors describes the DOM contract expected from the to-do application.
// Every value is a CSS selector except ActiveClass and FilterButton, which is
// a pattern where "{kind}" is replaced by the filter name.
type Selectors struct {
	Container       string `yaml:"container" json:"container"`
	Input           string `yaml:"input" json:"input"`
	Submit          string `yaml:"submit" json:"submit"`
	Item            string `yaml:"item" json:"item"`
	ItemText        string `yaml:"itemText" json:"itemText"`
	Checkbox        string `yaml:"checkbox" json:"checkbox"`
	DeleteButton    string `yaml:"deleteButton" json:"deleteButton"`
	EditButton      string `yaml:"editButton" json:"editButton"`
	FilterContainer string `yaml:"filterContainer" json:"filterContainer"`
	FilterButton    string `yaml:"filterButton" json:"filterButton"`
	ActiveClass     string `yaml:"activeClass" json:"activeClass"`

	// Login screen (only used when credentials are configured)
	LoginContainer string `yaml:"loginContainer" json:"loginContainer"`
	Email          string `yaml:"email" json:"email"`
	Password       string `yaml:"password" json:"password"`
	LoginButton    string `yaml:"loginButton" json:"loginButton"`
}

// DefaultSelectors returns the identities used by the reference to-do app.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:       "#todo-container",
		Input:           "#todo-input",
		Submit:          "#todo-submit-btn",
		Item:            ".todo-item",
		ItemText:        ".todo-text",
		Checkbox:        "input[type='checkbox']",
		DeleteButton:    "button[id*='delete-btn']",
		EditButton:      "button[id*='edit-btn']",
		FilterContainer: "#filter-container",
		FilterButton:    "#filter-{kind}",
		ActiveClass:     "active",
		LoginContainer:  "#login-container",
		Email:           "#email",
		Password:        "#password",
		LoginButton:     "#login-button",
	}
}

// Filter returns the selector of the control for the given filter.
func (s Selectors) Filter(kind FilterKind) string {
	return strings.ReplaceAll(s.FilterButton, "{kind}", string(kind))
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Container, d.Container)
	fill(&s.Input, d.Input)
	fill(&s.Submit, d.Submit)
	fill(&s.Item, d.Item)
	fill(&s.ItemText, d.ItemText)
	fill(&s.Checkbox, d.Checkbox)
	fill(&s.DeleteButton, d.DeleteButton)
	fill(&s.EditButton, d.EditButton)
	fill(&s.FilterContainer, d.FilterContainer)
	fill(&s.FilterButton, d.FilterButton)
	fill(&s.ActiveClass, d.ActiveClass)
	fill(&s.LoginContainer, d.LoginContainer)
	fill(&s.Email, d.Email)
	fill(&s.Password, d.Password)
	fill(&s.LoginButton, d.LoginButton)
	return s
}
