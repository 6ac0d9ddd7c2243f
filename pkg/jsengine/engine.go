// Package jsengine runs JavaScript test scripts on top of goja.
package jsengine

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/cyborg/pkg/logger"
)

var log = logger.Component("js")

// Engine wraps a goja runtime. Go methods and fields exposed to scripts use
// lowerCamelCase names. The runtime is not reentrant; Engine serializes all
// access to it.
type Engine struct {
	runtime *goja.Runtime
	output  map[string]interface{}
	console io.Writer
	mu      sync.Mutex
}

// New creates a new JS engine instance.
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		output:  make(map[string]interface{}),
		console: io.Discard,
	}
	e.runtime.SetFieldNameMapper(goja.UncapFieldNameMapper())
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
	// values scripts hand back to the runner
	e.runtime.Set("output", e.output)
}

// SetConsole directs console output to w in addition to the log.
func (e *Engine) SetConsole(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	e.console = w
}

func (e *Engine) setupConsole() {
	makeConsoleFunc := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprint(arg.Export())
			}
			line := strings.Join(parts, " ")
			switch level {
			case "error":
				log.Error("%s", line)
				fmt.Fprintln(e.console, "ERROR: "+line)
			case "warn":
				log.Warn("%s", line)
				fmt.Fprintln(e.console, "WARN: "+line)
			default:
				log.Info("%s", line)
				fmt.Fprintln(e.console, line)
			}
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc("log"))
	console.Set("error", makeConsoleFunc("error"))
	console.Set("warn", makeConsoleFunc("warn"))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper that parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, _ := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		v, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return v
	}
}

// Set exposes a Go value to scripts as a global.
func (e *Engine) Set(name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.Set(name, value)
}

// SetVariables exposes several values.
func (e *Engine) SetVariables(vars map[string]interface{}) error {
	for k, v := range vars {
		if err := e.Set(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// Output returns a copy of the values scripts stored on `output`.
func (e *Engine) Output() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := e.output
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			source = m
		}
	}
	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the exported result.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", scriptError(err))
	}
	return result.Export(), nil
}

// RunScript compiles and runs src. name appears in error positions.
func (e *Engine) RunScript(name, src string) error {
	prg, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, scriptError(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.runtime.RunProgram(prg); err != nil {
		return fmt.Errorf("JS runtime error: %w", scriptError(err))
	}
	return nil
}

// Call invokes a script function with no arguments. A thrown value or an
// interrupt is returned as an error.
func (e *Engine) Call(fn goja.Callable) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runtime.ClearInterrupt()
	if _, err := fn(goja.Undefined()); err != nil {
		return scriptError(err)
	}
	return nil
}

// Interrupt aborts the running script with reason. Safe to call from any
// goroutine.
func (e *Engine) Interrupt(reason string) {
	e.runtime.Interrupt(reason)
}

// Close releases the engine. Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}

// ScriptError is a failure raised by script code.
type ScriptError struct {
	Message string
	Stack   string
	cause   error
}

func (e *ScriptError) Error() string { return e.Message }
func (e *ScriptError) Unwrap() error { return e.cause }

// scriptError flattens goja exceptions into ScriptError. Errors returned by
// Go bindings and rethrown by the script are kept reachable through Unwrap.
func scriptError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		se := &ScriptError{Message: ex.Value().String(), Stack: ex.String()}
		if goErr := ex.Unwrap(); goErr != nil {
			se.cause = goErr
			se.Message = goErr.Error()
		}
		return se
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return &ScriptError{Message: fmt.Sprintf("interrupted: %v", ie.Value()), cause: err}
	}
	return err
}
