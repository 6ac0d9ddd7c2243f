// Package suite runs explicitly registered tests against a device and
// records their results.
package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/logger"
)

var log = logger.Component("suite")

// Func is the body of a registered test. A non-nil error fails the test.
type Func func(ctx context.Context) error

type entry struct {
	name   string
	source string
	fn     Func
}

// Registry holds tests in registration order. It replaces discovery by
// reflection: a test exists only if something registered it.
type Registry struct {
	entries []entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a test. Names must be unique.
func (r *Registry) Register(name string, fn Func) error {
	return r.register(name, "", fn)
}

func (r *Registry) register(name, source string, fn Func) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("test name is required")
	}
	if fn == nil {
		return fmt.Errorf("test %q has no body", name)
	}
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("test %q already registered", name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, source: source, fn: fn})
	return nil
}

// Names returns registered test names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered tests.
func (r *Registry) Len() int { return len(r.entries) }

// RunOptions configures Run.
type RunOptions struct {
	Name   string // suite name in the report
	Device string // device serial in the report
	Only   string // run just this test; the rest are skipped

	Timeout   time.Duration // per test, 0 = none
	OutputDir string        // where attachments are written; empty keeps them in memory
	Artifacts core.ArtifactConfig

	// Optional artifact sources, called after a test when Artifacts says so.
	Screenshot func() ([]byte, error)
	ViewDump   func(ctx context.Context) ([]byte, error)

	OnTestStart func(name string)
	OnTestEnd   func(result core.TestResult)
}

// Run executes the registered tests sequentially. Tests are independent:
// a failure never stops the run, cancellation of ctx skips the remainder.
func (r *Registry) Run(ctx context.Context, opts RunOptions) (*core.SuiteResult, error) {
	if opts.Only != "" {
		if _, ok := r.index[opts.Only]; !ok {
			return nil, fmt.Errorf("no test named %q", opts.Only)
		}
	}

	res := &core.SuiteResult{
		Name:      opts.Name,
		RunID:     uuid.NewString(),
		Device:    opts.Device,
		StartTime: time.Now(),
	}
	log.Info("run %s: %d tests", res.RunID, len(r.entries))

	for _, e := range r.entries {
		tr := core.TestResult{Name: e.name, Source: e.source, Status: core.StatusPending}
		switch {
		case opts.Only != "" && e.name != opts.Only:
			tr.Status = core.StatusSkipped
			tr.Message = "not selected"
		case ctx.Err() != nil:
			tr.Status = core.StatusSkipped
			tr.Message = "run cancelled"
		default:
			if opts.OnTestStart != nil {
				opts.OnTestStart(e.name)
			}
			tr = r.runTest(ctx, e, opts)
			if opts.OnTestEnd != nil {
				opts.OnTestEnd(tr)
			}
		}
		res.Tests = append(res.Tests, tr)
	}

	res.Duration = time.Since(res.StartTime)
	res.ComputeSummary()
	log.Info("run %s: %d passed, %d failed, %d skipped", res.RunID, res.PassedTests, res.FailedTests, res.SkippedTests)
	return res, nil
}

func (r *Registry) runTest(ctx context.Context, e entry, opts RunOptions) core.TestResult {
	tr := core.TestResult{
		Name:      e.name,
		Source:    e.source,
		Status:    core.StatusRunning,
		StartTime: time.Now(),
	}

	tctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	log.Debug("start %s", e.name)
	err := invoke(tctx, e.fn)
	tr.Duration = time.Since(tr.StartTime)
	tr.Status = classify(err)
	if err != nil {
		tr.Category = core.CategoryOf(err)
		tr.Error = err.Error()
		log.Warn("%s %s: %v", e.name, tr.Status, err)
	} else {
		log.Info("%s passed in %s", e.name, tr.Duration.Round(time.Millisecond))
	}

	if opts.Artifacts.ShouldCapture(tr.Status) {
		tr.Attachments = collectArtifacts(ctx, e.name, opts)
	}
	return tr
}

// invoke runs fn, turning a panic into an error.
func invoke(ctx context.Context, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("test panicked: %v", p)
		}
	}()
	return fn(ctx)
}

// classify maps an error to a status. Expectation failures (missing or
// ambiguous elements, failed assertions) fail the test, anything else is an
// error in the run itself.
func classify(err error) core.TestStatus {
	if err == nil {
		return core.StatusPassed
	}
	switch core.CategoryOf(err) {
	case core.ErrCategoryAssertion, core.ErrCategoryAmbiguity:
		return core.StatusFailed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.StatusFailed
	}
	return core.StatusErrored
}

func collectArtifacts(ctx context.Context, name string, opts RunOptions) []core.Attachment {
	var out []core.Attachment
	slug := slugify(name)

	if opts.Artifacts.Screenshot && opts.Screenshot != nil {
		data, err := opts.Screenshot()
		if err != nil {
			log.Warn("screenshot for %s: %v", name, err)
		} else if path, err := saveAsset(opts.OutputDir, slug+"-screenshot.png", data); err != nil {
			log.Warn("save screenshot for %s: %v", name, err)
		} else {
			out = append(out, core.NewScreenshotAttachment(path, data))
		}
	}

	if opts.ViewDump != nil {
		data, err := opts.ViewDump(ctx)
		if err != nil {
			log.Warn("view dump for %s: %v", name, err)
		} else if path, err := saveAsset(opts.OutputDir, slug+"-views.txt", data); err != nil {
			log.Warn("save view dump for %s: %v", name, err)
		} else {
			out = append(out, core.NewViewDumpAttachment(path, data))
		}
	}
	return out
}

// saveAsset writes data under dir/assets and returns the path relative to
// dir. With no dir nothing is written and the path is empty.
func saveAsset(dir, filename string, data []byte) (string, error) {
	if dir == "" {
		return "", nil
	}
	rel := filepath.Join("assets", filename)
	abs := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func slugify(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-")
	if s == "" {
		return "test"
	}
	return s
}
