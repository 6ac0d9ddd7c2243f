package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/cyborg"
	"github.com/devicelab-dev/cyborg/pkg/filter"
	"github.com/devicelab-dev/cyborg/pkg/jsengine"
)

// Scripts loads JavaScript test files into a Registry. A script registers
// tests with test(name, fn) and drives the device through the `device`
// global; `by` builds filters and assert(cond, msg) fails the current test:
//
//	test("login button", function () {
//	    device.tapOn(by.and(by.id("login"), by.clickable()));
//	    assert(device.isVisible(by.text("Welcome")), "no welcome text");
//	});
type Scripts struct {
	engine *jsengine.Engine
	device *scriptDevice
}

// NewScripts prepares an engine bound to c. Variables are exposed to scripts
// as the `env` object.
func NewScripts(c *cyborg.Cyborg, env map[string]string, console io.Writer) *Scripts {
	s := &Scripts{
		engine: jsengine.New(),
		device: &scriptDevice{c: c, ctx: context.Background()},
	}
	s.engine.SetConsole(console)
	if env == nil {
		env = map[string]string{}
	}
	s.engine.Set("env", env)
	s.engine.Set("by", filters{})
	s.engine.Set("device", s.device)
	s.engine.Set("assert", assert)
	return s
}

// Close releases the engine.
func (s *Scripts) Close() { s.engine.Close() }

// Output returns values the scripts stored on `output`.
func (s *Scripts) Output() map[string]interface{} { return s.engine.Output() }

// LoadFile runs the script at path, registering its tests in reg.
func (s *Scripts) LoadFile(reg *Registry, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return s.Load(reg, filepath.Base(path), string(src))
}

// Load runs src, registering its tests in reg. Registration errors such as
// a duplicate name abort the script.
func (s *Scripts) Load(reg *Registry, name, src string) error {
	var regErr error
	s.engine.Set("test", func(testName string, body goja.Value) error {
		fn, ok := goja.AssertFunction(body)
		if !ok {
			regErr = fmt.Errorf("test %q: body is not a function", testName)
			return regErr
		}
		if err := reg.register(testName, name, s.wrap(fn)); err != nil {
			regErr = err
			return err
		}
		return nil
	})

	if err := s.engine.RunScript(name, src); err != nil {
		if regErr != nil {
			return fmt.Errorf("%s: %w", name, regErr)
		}
		return err
	}
	return nil
}

// wrap turns a script function into a Func. The engine is interrupted when
// ctx ends so a script stuck in a loop cannot outlive its test.
func (s *Scripts) wrap(fn goja.Callable) Func {
	return func(ctx context.Context) error {
		s.device.setContext(ctx)
		defer s.device.setContext(context.Background())

		stop := context.AfterFunc(ctx, func() { s.engine.Interrupt(ctx.Err().Error()) })
		defer stop()

		err := s.engine.Call(fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.ErrTimeout.WithCause(ctxErr).WithMessage(err.Error())
		}
		var se *jsengine.ScriptError
		if errors.As(err, &se) && se.Unwrap() == nil {
			// thrown by the script itself
			return core.ErrAssertionFailed.WithMessage(se.Message)
		}
		return err
	}
}

func assert(cond bool, msg string) error {
	if cond {
		return nil
	}
	if msg == "" {
		msg = "assertion failed"
	}
	return core.ErrAssertionFailed.WithMessage(msg)
}

// scriptDevice is the `device` global. Calls use the context of the test
// currently running.
type scriptDevice struct {
	c   *cyborg.Cyborg
	mu  sync.Mutex
	ctx context.Context
}

func (d *scriptDevice) setContext(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

func (d *scriptDevice) current() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

func (d *scriptDevice) IsVisible(f filter.Filter) bool {
	return d.c.IsVisible(d.current(), f)
}

func (d *scriptDevice) Rects(f filter.Filter) []core.Rect {
	return d.c.Rects(d.current(), f)
}

// Count returns the number of visible matches.
func (d *scriptDevice) Count(f filter.Filter) int {
	return len(d.c.Nodes(d.current(), f))
}

// Find returns the rect of the single visible match.
func (d *scriptDevice) Find(f filter.Filter) (core.Rect, error) {
	n, err := d.c.Find(d.current(), f)
	if err != nil {
		return core.Rect{}, err
	}
	return cyborg.RectFor(n), nil
}

// Text returns the text of the single visible match.
func (d *scriptDevice) Text(f filter.Filter) (string, error) {
	n, err := d.c.Find(d.current(), f)
	if err != nil {
		return "", err
	}
	text, _ := n.Value("text:text")
	return text, nil
}

func (d *scriptDevice) Tap(r core.Rect) error {
	return d.c.Tap(d.current(), r)
}

func (d *scriptDevice) TapOn(f filter.Filter) error {
	return d.c.TapOn(d.current(), f)
}

func (d *scriptDevice) DragAndDrop(src, dst core.Rect, durationMs int) error {
	return d.c.DragAndDrop(src, dst, durationMs)
}

func (d *scriptDevice) PressHome() error {
	return d.c.PressHome(d.current())
}

func (d *scriptDevice) PressKey(code int) error {
	return d.c.PressKey(d.current(), code)
}

func (d *scriptDevice) Shell(cmd string) (string, error) {
	return d.c.RunShell(cmd)
}

// Wait sleeps for ms milliseconds.
func (d *scriptDevice) Wait(ms int) error {
	return d.c.Wait(d.current(), time.Duration(ms)*time.Millisecond)
}

// WaitFor polls until f has a visible match or timeoutMs elapses.
func (d *scriptDevice) WaitFor(f filter.Filter, timeoutMs int) error {
	ctx, cancel := context.WithTimeout(d.current(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()
	for {
		if d.c.IsVisible(ctx, f) {
			return nil
		}
		if err := d.c.Wait(ctx, 250*time.Millisecond); err != nil {
			return core.ErrElementNotVisible.WithMessage(fmt.Sprintf("%s not visible after %dms", f, timeoutMs))
		}
	}
}

// filters is the `by` global.
type filters struct{}

func (filters) Id(id string) filter.Filter            { return filter.WithID(id) }
func (filters) Text(text string) filter.Filter        { return filter.WithText(text) }
func (filters) DescStart(text string) filter.Filter   { return filter.WithContentDescriptionStart(text) }
func (filters) DescEnd(text string) filter.Filter     { return filter.WithContentDescriptionEnd(text) }
func (filters) ParentId(id string) filter.Filter      { return filter.WithParentWithID(id) }
func (filters) Name(class string) filter.Filter       { return filter.WithName(class) }
func (filters) Clickable() filter.Filter              { return filter.Clickable() }
func (filters) Focused() filter.Filter                { return filter.IsFocused() }
func (filters) And(fs ...filter.Filter) filter.Filter { return filter.And(fs...) }
func (filters) Or(fs ...filter.Filter) filter.Filter  { return filter.Or(fs...) }
func (filters) Not(f filter.Filter) filter.Filter     { return filter.Not(f) }

func (filters) NthChild(i int, parentID string) filter.Filter {
	return filter.NthChildOfParentWithID(i, parentID)
}
