package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
)

func newTestScriptEngine(t *testing.T) *ScriptEngine {
	t.Helper()
	se := NewScriptEngine(func() core.Stats { return core.Stats{Added: 3, Errors: 1} })
	t.Cleanup(se.Close)
	return se
}

func TestScriptEngine_ExpandVariables(t *testing.T) {
	se := newTestScriptEngine(t)
	se.SetVariable("NAME", "milk")
	se.SetVariable("NAME_LONG", "oat milk")
	se.SetVariable("count", 2)

	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"Buy ${NAME}", "Buy milk"},
		{"Buy $NAME", "Buy milk"},
		{"Buy $NAME_LONG", "Buy oat milk"},
		{"$NAMEX stays", "$NAMEX stays"},
		{"${count + 1} items", "3 items"},
		{"${todo.added} added", "3 added"},
		{"costs $5", "costs $5"},
	}
	for _, tt := range tests {
		got, err := se.ExpandVariables(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestScriptEngine_ExpandVariablesError(t *testing.T) {
	se := newTestScriptEngine(t)

	got, err := se.ExpandVariables("Hello ${missing.field}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
	assert.Equal(t, "Hello ${missing.field}", got)
}

func TestScriptEngine_EvalCondition(t *testing.T) {
	se := newTestScriptEngine(t)
	se.SetVariable("total", 4)
	se.SetVariable("active", 3)
	se.SetVariable("completed", 1)

	ok, err := se.EvalCondition("${total == active + completed}")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = se.EvalCondition("todo.errors > 0")
	require.NoError(t, err)
	assert.True(t, ok)

	// Unset env-style names are falsy
	ok, err = se.EvalCondition("${UNSET_FLAG}")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = se.EvalCondition("${undefinedLower > 1}")
	assert.Error(t, err)
}

func TestScriptEngine_ExecuteAssertTrue(t *testing.T) {
	se := newTestScriptEngine(t)
	se.SetVariable("total", 2)

	res := se.ExecuteAssertTrue(&flow.AssertTrueStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTrue}, Condition: "${total == 2}"})
	assert.True(t, res.Succeeded)

	res = se.ExecuteAssertTrue(&flow.AssertTrueStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTrue}, Condition: "${total == 3}"})
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrVerificationFailed))

	res = se.ExecuteAssertTrue(&flow.AssertTrueStep{BaseStep: flow.BaseStep{StepType: flow.StepAssertTrue}, Condition: "${total ==}"})
	assert.False(t, res.Succeeded)
	assert.True(t, errors.Is(res.Err, core.ErrInvalidConfig))
}

func TestScriptEngine_ExecuteDefineVariables(t *testing.T) {
	se := newTestScriptEngine(t)
	se.SetVariable("BASE", "Task")

	res := se.ExecuteDefineVariables(&flow.DefineVariablesStep{
		BaseStep: flow.BaseStep{StepType: flow.StepDefineVariables},
		Env:      map[string]string{"FIRST": "$BASE one", "SECOND": "${BASE + ' two'}"},
	})
	require.True(t, res.Succeeded, res.Message)
	assert.Equal(t, "Task one", se.GetVariable("FIRST"))
	assert.Equal(t, "Task two", se.GetVariable("SECOND"))
}

func TestExtractJS(t *testing.T) {
	assert.Equal(t, "a == b", extractJS("${a == b}"))
	assert.Equal(t, "a == b", extractJS("  ${a == b} "))
	assert.Equal(t, "a == b", extractJS("a == b"))
}

func TestExpandDollarVar(t *testing.T) {
	assert.Equal(t, "x=1;", expandDollarVar("x=$A;", "A", "1"))
	assert.Equal(t, "$AB", expandDollarVar("$AB", "A", "1"))
	assert.Equal(t, "1 1", expandDollarVar("$A $A", "A", "1"))
}
