package executor

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/flow"
	"github.com/devicelab-dev/todo-runner/pkg/jsengine"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles expression evaluation and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine. stats backs the todo.* counters.
func NewScriptEngine(stats jsengine.StatsFunc) *ScriptEngine {
	js := jsengine.New()
	if stats != nil {
		js.SetStats(stats)
	}
	return &ScriptEngine{
		js:        js,
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable in both Go map and JS engine.
// Numbers keep their type in JS so conditions can do arithmetic.
func (se *ScriptEngine) SetVariable(name string, value interface{}) {
	se.variables[name] = fmt.Sprintf("%v", value)
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple string variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
// An expression that cannot be evaluated is an error.
func (se *ScriptEngine) ExpandVariables(text string) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}

	// First pass: JS engine for ${expression} syntax
	result, err := se.js.ExpandVariables(text)
	if err != nil {
		return text, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("cannot expand %q", text)).WithCause(err)
	}

	// Second pass: $VAR syntax (without braces)
	return se.expandDollarVars(result), nil
}

// expandDollarVars replaces $VAR references, longest names first to avoid
// partial matches.
func (se *ScriptEngine) expandDollarVars(text string) string {
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// EvalCondition evaluates a condition with JS truthiness.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = extractJS(script)
	script = se.expandDollarVars(script)

	// Unset env-style names are falsy rather than a ReferenceError
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}

	return se.js.EvalBool(script)
}

// extractJS strips a single ${...} wrapper.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// ExecuteDefineVariables sets every variable of the step, expanding values
// against what is already defined.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) core.ActionResult {
	names := make([]string, 0, len(step.Env))
	for k := range step.Env {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		value, err := se.ExpandVariables(step.Env[name])
		if err != nil {
			return failed(string(step.Type()), name, err)
		}
		se.SetVariable(name, value)
	}
	return core.ActionResult{
		Action:    string(step.Type()),
		Succeeded: true,
		Message:   fmt.Sprintf("Defined %d variables", len(names)),
	}
}

// ExecuteAssertTrue evaluates the step condition.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) core.ActionResult {
	action := string(step.Type())
	ok, err := se.EvalCondition(step.Condition)
	if err != nil {
		return failed(action, step.Condition, core.ErrInvalidConfig.
			WithMessage("cannot evaluate "+step.Condition).WithCause(err))
	}
	if !ok {
		logger.Fail("Assertion failed: %s", step.Condition)
		return failed(action, step.Condition, core.ErrVerificationFailed.
			WithMessage("condition is false: "+step.Condition))
	}
	logger.OK("Assertion passed: %s", step.Condition)
	return core.ActionResult{
		Action:    action,
		Target:    step.Condition,
		Succeeded: true,
		Message:   "Assertion passed: " + step.Condition,
	}
}

// failed builds an unsuccessful result.
func failed(action, target string, err error) core.ActionResult {
	e := core.AsExecutionError(err)
	return core.ActionResult{
		Action:   action,
		Target:   target,
		Err:      e,
		Message:  e.Error(),
		ListSize: -1,
	}
}
