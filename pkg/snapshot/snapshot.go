// Package snapshot captures the view hierarchies of every window on a device
// and queries them with filters.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/filter"
	"github.com/devicelab-dev/cyborg/pkg/logger"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

// Device is the source of processes and display geometry.
type Device interface {
	Processes(ctx context.Context) ([]Process, error)
	DisplaySize() (width, height int)
}

// Process is one debuggable application process.
type Process interface {
	Name() string
	HasViewHierarchy() bool
	Windows(ctx context.Context) ([]view.Window, error)
	// Dump returns the raw hierarchy dump of w. Nil data with a nil error
	// means the window had nothing to report.
	Dump(ctx context.Context, w view.Window) ([]byte, error)
}

// Recorder receives every raw dump fetched during a snapshot. It is called
// from worker goroutines and must be safe for concurrent use.
type Recorder interface {
	Record(process string, w view.Window, data []byte)
}

// Defaults for Options.
const (
	DefaultWindowListTimeout = 5 * time.Second
	DefaultDumpTimeout       = 20 * time.Second
	DefaultConcurrency       = 10
)

// Options tunes a Snapshotter. Zero fields take the defaults.
type Options struct {
	WindowListTimeout time.Duration
	DumpTimeout       time.Duration
	Concurrency       int
	Recorder          Recorder
}

func (o Options) withDefaults() Options {
	if o.WindowListTimeout <= 0 {
		o.WindowListTimeout = DefaultWindowListTimeout
	}
	if o.DumpTimeout <= 0 {
		o.DumpTimeout = DefaultDumpTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Snapshotter runs hierarchy queries. Each call takes a fresh snapshot; no
// tree outlives the call that built it unless the caller keeps the nodes.
type Snapshotter struct {
	opts Options
	log  logger.Logger
}

// New creates a Snapshotter.
func New(opts Options) *Snapshotter {
	return &Snapshotter{opts: opts.withDefaults(), log: logger.Component("snapshot")}
}

// Tree is the hierarchy of one window.
type Tree struct {
	Process string
	Window  view.Window
	Root    *view.Node
}

// Candidate is one of several nodes matched where exactly one was expected.
type Candidate struct {
	Node *view.Node
	Rect core.Rect
}

type target struct {
	process Process
	window  view.Window
}

type result struct {
	tree    Tree
	matches []*view.Node
}

// Collect returns every visible node accepted by f across all windows of all
// processes. Matches within one window are in depth-first order; windows
// appear in the order their dumps completed. Windows that fail or time out
// contribute nothing.
func (s *Snapshotter) Collect(ctx context.Context, dev Device, f filter.Filter) []*view.Node {
	var matches []*view.Node
	for _, r := range s.run(ctx, dev, f) {
		matches = append(matches, r.matches...)
	}
	return matches
}

// Trees returns the full hierarchy of every window that produced one.
func (s *Snapshotter) Trees(ctx context.Context, dev Device) []Tree {
	var trees []Tree
	for _, r := range s.run(ctx, dev, nil) {
		if r.tree.Root != nil {
			trees = append(trees, r.tree)
		}
	}
	return trees
}

// HasVisible reports whether any visible node matches f.
func (s *Snapshotter) HasVisible(ctx context.Context, dev Device, f filter.Filter) bool {
	return len(s.Collect(ctx, dev, f)) > 0
}

// Rects returns the absolute rectangles of all visible matches.
func (s *Snapshotter) Rects(ctx context.Context, dev Device, f filter.Filter) []core.Rect {
	nodes := s.Collect(ctx, dev, f)
	rects := make([]core.Rect, len(nodes))
	for i, n := range nodes {
		rects[i] = view.AbsoluteRect(n)
	}
	return rects
}

// FindOne returns the single visible node matching f. No match yields
// core.ErrElementNotFound; several yield core.ErrAmbiguousMatch with the
// candidates in its details.
func (s *Snapshotter) FindOne(ctx context.Context, dev Device, f filter.Filter) (*view.Node, error) {
	nodes := s.Collect(ctx, dev, f)
	switch len(nodes) {
	case 0:
		return nil, core.ErrElementNotFound.
			WithMessage(fmt.Sprintf("no visible element matches %s", f.Describe())).
			WithDetails(map[string]interface{}{"filter": f.Describe()})
	case 1:
		return nodes[0], nil
	}

	candidates := make([]Candidate, len(nodes))
	rects := make([]string, len(nodes))
	for i, n := range nodes {
		candidates[i] = Candidate{Node: n, Rect: view.AbsoluteRect(n)}
		rects[i] = candidates[i].Rect.String()
	}
	return nil, core.ErrAmbiguousMatch.
		WithMessage(fmt.Sprintf("%s matched %d elements: %s", f.Describe(), len(nodes), strings.Join(rects, ", "))).
		WithDetails(map[string]interface{}{
			"filter":     f.Describe(),
			"count":      len(nodes),
			"candidates": candidates,
		})
}

// Candidates extracts the candidates carried by an ambiguous-match error.
func Candidates(err error) []Candidate {
	var e *core.ExecutionError
	if !errors.As(err, &e) {
		return nil
	}
	c, _ := e.Details["candidates"].([]Candidate)
	return c
}

// run snapshots every window. With a nil filter no matching is done.
func (s *Snapshotter) run(ctx context.Context, dev Device, f filter.Filter) []result {
	procs, err := dev.Processes(ctx)
	if err != nil {
		s.log.Error("list processes: %v", err)
		return nil
	}

	var targets []target
	for _, p := range procs {
		if !p.HasViewHierarchy() {
			continue
		}
		for _, w := range s.windows(ctx, p) {
			targets = append(targets, target{process: p, window: w})
		}
	}
	if len(targets) == 0 {
		return nil
	}

	width, height := dev.DisplaySize()
	results := make(chan result, len(targets))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			results <- s.capture(ctx, t, f, width, height)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]result, 0, len(targets))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (s *Snapshotter) windows(ctx context.Context, p Process) []view.Window {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WindowListTimeout)
	defer cancel()

	ws, err := await(ctx, p.Windows)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = core.ErrWindowListTimeout.WithCause(err)
		}
		s.log.Warn("process %s: %v", p.Name(), err)
		return nil
	}
	return ws
}

func (s *Snapshotter) capture(ctx context.Context, t target, f filter.Filter, width, height int) result {
	r := result{tree: Tree{Process: t.process.Name(), Window: t.window}}

	dctx, cancel := context.WithTimeout(ctx, s.opts.DumpTimeout)
	defer cancel()
	data, err := await(dctx, func(ctx context.Context) ([]byte, error) {
		return t.process.Dump(ctx, t.window)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = core.ErrDumpTimeout.WithCause(err)
		}
		s.log.Warn("window %s of %s: %v", t.window.Encode(), r.tree.Process, err)
		return r
	}
	if len(data) == 0 {
		s.log.Debug("window %s of %s: empty dump", t.window.Encode(), r.tree.Process)
		return r
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.Record(r.tree.Process, t.window, data)
	}

	root, err := view.Build(data, t.window)
	if err != nil {
		s.log.Warn("window %s of %s: %v", t.window.Encode(), r.tree.Process, core.ErrDecode.WithCause(err))
		return r
	}
	r.tree.Root = root
	if f == nil {
		return r
	}

	view.Walk(root, func(n *view.Node) bool {
		if view.IsVisibleOn(n, width, height) && f.Apply(n) {
			r.matches = append(r.matches, n)
		}
		return true
	})
	return r
}

// await runs fn and gives up when ctx is done, even if fn ignores ctx. The
// abandoned goroutine finishes into a buffered channel and is collected.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
