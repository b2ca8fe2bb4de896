// Package jsengine provides JavaScript expression evaluation for scenario files.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
)

// StatsFunc returns the current outcome counters.
type StatsFunc func() core.Stats

// Engine wraps a goja runtime with the globals scenarios can use:
// console, json(), output and todo.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	output    map[string]interface{}
	stats     StatsFunc
	mu        sync.Mutex
	closeOnce sync.Once
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		output:    make(map[string]interface{}),
	}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// JSON helper
	e.runtime.Set("json", e.jsonFunc())

	// Output object (for storing values to pass back to the scenario)
	e.runtime.Set("output", e.output)

	e.runtime.Set("todo", e.todoObject())
}

// setupConsole routes console.log, console.warn and console.error to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(emit func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			emit("%s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		str := call.Arguments[0].String()

		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}

		return result
	}
}

// todoObject returns the todo global exposing the outcome counters.
func (e *Engine) todoObject() *goja.Object {
	obj := e.runtime.NewObject()

	counter := func(pick func(core.Stats) int) goja.Value {
		return e.runtime.ToValue(func() int {
			if e.stats == nil {
				return 0
			}
			return pick(e.stats())
		})
	}

	obj.DefineAccessorProperty("added", counter(func(s core.Stats) int { return s.Added }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("completed", counter(func(s core.Stats) int { return s.Completed }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("deleted", counter(func(s core.Stats) int { return s.Deleted }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("updated", counter(func(s core.Stats) int { return s.Updated }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("errors", counter(func(s core.Stats) int { return s.Errors }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

// SetStats installs the source behind the todo.* counters.
func (e *Engine) SetStats(fn StatsFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = fn
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	outputVal := e.runtime.Get("output")
	var source map[string]interface{}

	if outputVal != nil && !goja.IsUndefined(outputVal) {
		if m, ok := outputVal.Export().(map[string]interface{}); ok {
			source = m
		}
	}

	if source == nil {
		source = e.output
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

func (e *Engine) run(script string) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.RunString(script)
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	result, err := e.run(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// EvalBool evaluates a JavaScript expression using JS truthiness.
func (e *Engine) EvalBool(script string) (bool, error) {
	result, err := e.run(script)
	if err != nil {
		return false, fmt.Errorf("JS eval error: %w", err)
	}
	return result.ToBoolean(), nil
}

// RunScript runs a JavaScript script
func (e *Engine) RunScript(script string) error {
	if _, err := e.run(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// DefineUndefinedIfMissing defines a variable as undefined if it's not already defined.
// This prevents ReferenceError when scripts reference variables that may not exist.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	val := e.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) {
		if _, exists := e.variables[name]; !exists {
			e.runtime.Set(name, goja.Undefined())
		}
	}
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// Expressions that fail to evaluate are left as-is and reported in the error.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0
	var firstErr error

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			if result[end] == '{' {
				depth++
			} else if result[end] == '}' {
				depth--
			}
			end++
		}

		if depth != 0 {
			// Unmatched brace, skip
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]

		value, err := e.EvalString(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("expand %q: %w", expr, err)
			}
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, firstErr
}

// Close interrupts any running script. Safe to call multiple times.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.runtime.Interrupt("engine closed")
	})
}
