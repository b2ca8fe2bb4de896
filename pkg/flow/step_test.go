package flow

import "testing"

func TestBaseStep(t *testing.T) {
	b := &BaseStep{StepType: StepSection, Optional: true, StepLabel: "phase"}
	if b.Type() != StepSection {
		t.Errorf("Type()=%s", b.Type())
	}
	if !b.IsOptional() {
		t.Error("expected optional")
	}
	if b.Label() != "phase" {
		t.Errorf("Label()=%q", b.Label())
	}
	if b.Describe() != "section" {
		t.Errorf("Describe()=%q", b.Describe())
	}
}

func TestToggleTodoStep_WantComplete(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name     string
		complete *bool
		want     bool
	}{
		{"default", nil, true},
		{"explicit true", &yes, true},
		{"explicit false", &no, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ToggleTodoStep{Complete: tt.complete}
			if got := s.WantComplete(); got != tt.want {
				t.Errorf("WantComplete()=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	five := 5
	no := false
	tests := []struct {
		step Step
		want string
	}{
		{&OpenAppStep{}, "openApp"},
		{&OpenAppStep{URL: "http://x"}, "openApp: http://x"},
		{&AddTodoStep{Text: "Milk"}, `addTodo: "Milk"`},
		{&AddTodosStep{Texts: []string{"a", "b"}}, "addTodos: 2 items"},
		{&ToggleTodoStep{Index: 1}, "toggleTodo: 1 -> completed"},
		{&ToggleTodoStep{Index: 2, Complete: &no}, "toggleTodo: 2 -> active"},
		{&DeleteTodoStep{Index: 3}, "deleteTodo: 3"},
		{&UpdateTodoStep{Index: 1, Text: "New"}, `updateTodo: 1 -> "New"`},
		{&ApplyFilterStep{Filter: "active"}, "applyFilter: active"},
		{&CountTodosStep{}, "countTodos"},
		{&CountTodosStep{Expect: &five, As: "total"}, "countTodos: expect 5, as total"},
		{&FindTodoStep{Text: "UPD"}, `findTodo: "UPD"`},
		{&AssertTrueStep{Condition: "${a}"}, "assertTrue: ${a}"},
		{&TakeScreenshotStep{Name: "01"}, "takeScreenshot: 01"},
		{&SectionStep{Title: "Filters"}, "section: Filters"},
	}
	for _, tt := range tests {
		if got := tt.step.Describe(); got != tt.want {
			t.Errorf("Describe()=%q, want %q", got, tt.want)
		}
	}
}
