package flow

import (
	"fmt"
	"strings"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Page
	StepOpenApp StepType = "openApp"
	StepSignIn  StepType = "signIn"

	// List mutations
	StepAddTodo    StepType = "addTodo"
	StepAddTodos   StepType = "addTodos"
	StepToggleTodo StepType = "toggleTodo"
	StepDeleteTodo StepType = "deleteTodo"
	StepUpdateTodo StepType = "updateTodo"

	// Filters and queries
	StepApplyFilter StepType = "applyFilter"
	StepCountTodos  StepType = "countTodos"
	StepFindTodo    StepType = "findTodo"

	// Assertions
	StepAssertTrue StepType = "assertTrue"

	// Other
	StepTakeScreenshot  StepType = "takeScreenshot"
	StepSection         StepType = "section"
	StepDefineVariables StepType = "defineVariables"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"` // Failure is reported as a warning
	StepLabel string   `yaml:"label"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Page Steps
// ============================================

// OpenAppStep loads the application, signs in when credentials are
// configured and waits until the list is ready.
type OpenAppStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"` // Overrides flow and workspace URL
}

// SignInStep submits the login form.
type SignInStep struct {
	BaseStep `yaml:",inline"`
	Email    string `yaml:"email"`    // Defaults to the configured email
	Password string `yaml:"password"` // Defaults to the configured password
}

// ============================================
// List Mutation Steps
// ============================================

// AddTodoStep adds one item.
type AddTodoStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// AddTodosStep adds several items in order.
type AddTodosStep struct {
	BaseStep `yaml:",inline"`
	Texts    []string `yaml:"texts"`
}

// ToggleTodoStep sets the completion state of the item at Index (1-based).
type ToggleTodoStep struct {
	BaseStep `yaml:",inline"`
	Index    int   `yaml:"index"`
	Complete *bool `yaml:"complete"` // Default: true
}

// WantComplete returns the requested state.
func (s *ToggleTodoStep) WantComplete() bool {
	return s.Complete == nil || *s.Complete
}

// DeleteTodoStep deletes the item at Index (1-based).
type DeleteTodoStep struct {
	BaseStep `yaml:",inline"`
	Index    int `yaml:"index"`
}

// UpdateTodoStep replaces the text of the item at Index (1-based).
type UpdateTodoStep struct {
	BaseStep `yaml:",inline"`
	Index    int    `yaml:"index"`
	Text     string `yaml:"text"`
}

// ============================================
// Filter and Query Steps
// ============================================

// ApplyFilterStep selects a list filter (all, active, completed).
type ApplyFilterStep struct {
	BaseStep `yaml:",inline"`
	Filter   string `yaml:"filter"`
}

// CountTodosStep reads the visible item count.
type CountTodosStep struct {
	BaseStep `yaml:",inline"`
	Expect   *int   `yaml:"expect"` // Fails the step on a different count
	As       string `yaml:"as"`     // Stores the count under this variable
}

// FindTodoStep locates the first item containing Text, ignoring case.
type FindTodoStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
	As       string `yaml:"as"`       // Stores the position (0 when absent)
	Required bool   `yaml:"required"` // Fails the step when no item matches
}

// ============================================
// Assertion Steps
// ============================================

// AssertTrueStep evaluates a ${...} expression over the scenario variables.
type AssertTrueStep struct {
	BaseStep  `yaml:",inline"`
	Condition string `yaml:"condition"`
}

// ============================================
// Other Steps
// ============================================

// TakeScreenshotStep saves a named screenshot.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Name     string `yaml:"name"`
}

// SectionStep writes a phase header to the log.
type SectionStep struct {
	BaseStep `yaml:",inline"`
	Title    string `yaml:"title"`
}

// DefineVariablesStep sets scenario variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the open step.
func (s *OpenAppStep) Describe() string {
	if s.URL != "" {
		return "openApp: " + s.URL
	}
	return "openApp"
}

// Describe returns a human-readable description of the add step.
func (s *AddTodoStep) Describe() string {
	return fmt.Sprintf("addTodo: %q", s.Text)
}

// Describe returns a human-readable description of the bulk add step.
func (s *AddTodosStep) Describe() string {
	return fmt.Sprintf("addTodos: %d items", len(s.Texts))
}

// Describe returns a human-readable description of the toggle step.
func (s *ToggleTodoStep) Describe() string {
	state := "active"
	if s.WantComplete() {
		state = "completed"
	}
	return fmt.Sprintf("toggleTodo: %d -> %s", s.Index, state)
}

// Describe returns a human-readable description of the delete step.
func (s *DeleteTodoStep) Describe() string {
	return fmt.Sprintf("deleteTodo: %d", s.Index)
}

// Describe returns a human-readable description of the update step.
func (s *UpdateTodoStep) Describe() string {
	return fmt.Sprintf("updateTodo: %d -> %q", s.Index, s.Text)
}

// Describe returns a human-readable description of the filter step.
func (s *ApplyFilterStep) Describe() string {
	return "applyFilter: " + s.Filter
}

// Describe returns a human-readable description of the count step.
func (s *CountTodosStep) Describe() string {
	var parts []string
	if s.Expect != nil {
		parts = append(parts, fmt.Sprintf("expect %d", *s.Expect))
	}
	if s.As != "" {
		parts = append(parts, "as "+s.As)
	}
	if len(parts) == 0 {
		return "countTodos"
	}
	return "countTodos: " + strings.Join(parts, ", ")
}

// Describe returns a human-readable description of the find step.
func (s *FindTodoStep) Describe() string {
	return fmt.Sprintf("findTodo: %q", s.Text)
}

// Describe returns a human-readable description of the assertion.
func (s *AssertTrueStep) Describe() string {
	return "assertTrue: " + s.Condition
}

// Describe returns a human-readable description of the screenshot step.
func (s *TakeScreenshotStep) Describe() string {
	return "takeScreenshot: " + s.Name
}

// Describe returns a human-readable description of the section step.
func (s *SectionStep) Describe() string {
	return "section: " + s.Title
}
