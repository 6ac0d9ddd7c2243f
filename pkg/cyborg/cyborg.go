// Package cyborg is the caller-facing API: query the on-screen view tree of
// a device and interact with what it finds.
package cyborg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/filter"
	"github.com/devicelab-dev/cyborg/pkg/logger"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

// Input injects user interaction into a device.
type Input interface {
	Tap(x, y int) error
	Drag(x1, y1, x2, y2 int, durationMs int) error
	KeyEvent(key string) error
	Shell(cmd string) (string, error)
	Screenshot() ([]byte, error)
}

// DefaultSettleDelay is the pause after a tap or key press.
const DefaultSettleDelay = 300 * time.Millisecond

// Cyborg pairs a hierarchy source with an input channel on the same device.
type Cyborg struct {
	device snapshot.Device
	input  Input
	snap   *snapshot.Snapshotter
	settle time.Duration
	sleep  func(context.Context, time.Duration) error
	log    logger.Logger
}

// Option configures a Cyborg.
type Option func(*Cyborg)

// WithSnapshotter replaces the default snapshotter.
func WithSnapshotter(s *snapshot.Snapshotter) Option {
	return func(c *Cyborg) { c.snap = s }
}

// WithSettleDelay sets the pause after interactions. Zero keeps the default;
// a negative value disables it.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Cyborg) {
		if d != 0 {
			c.settle = d
		}
	}
}

// New creates a Cyborg. device and input normally wrap the same phone.
func New(device snapshot.Device, input Input, opts ...Option) *Cyborg {
	c := &Cyborg{
		device: device,
		input:  input,
		settle: DefaultSettleDelay,
		sleep:  sleepContext,
		log:    logger.Component("cyborg"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.snap == nil {
		c.snap = snapshot.New(snapshot.Options{})
	}
	return c
}

// Device returns the hierarchy source.
func (c *Cyborg) Device() snapshot.Device { return c.device }

// IsVisible reports whether any visible element matches f.
func (c *Cyborg) IsVisible(ctx context.Context, f filter.Filter) bool {
	return c.snap.HasVisible(ctx, c.device, f)
}

// Nodes returns all visible elements matching f.
func (c *Cyborg) Nodes(ctx context.Context, f filter.Filter) []*view.Node {
	return c.snap.Collect(ctx, c.device, f)
}

// Rects returns the on-screen rectangles of all visible elements matching f.
func (c *Cyborg) Rects(ctx context.Context, f filter.Filter) []core.Rect {
	return c.snap.Rects(ctx, c.device, f)
}

// Find returns the single visible element matching f.
func (c *Cyborg) Find(ctx context.Context, f filter.Filter) (*view.Node, error) {
	return c.snap.FindOne(ctx, c.device, f)
}

// RectFor returns the on-screen rectangle of n.
func RectFor(n *view.Node) core.Rect {
	return view.AbsoluteRect(n)
}

// Tap taps the center of r and waits for the UI to settle.
func (c *Cyborg) Tap(ctx context.Context, r core.Rect) error {
	x, y := r.Center()
	c.log.Debug("tap (%d, %d) in %s", x, y, r)
	if err := c.input.Tap(x, y); err != nil {
		return fmt.Errorf("tap %s: %w", r, err)
	}
	return c.afterInteraction(ctx, c.settle)
}

// TapOn taps the single visible element matching f. Zero or several matches
// fail without tapping.
func (c *Cyborg) TapOn(ctx context.Context, f filter.Filter) error {
	n, err := c.Find(ctx, f)
	if err != nil {
		return err
	}
	return c.Tap(ctx, RectFor(n))
}

// DragAndDrop drags from the center of src to the center of dst over
// durationMs. No settle wait follows.
func (c *Cyborg) DragAndDrop(src, dst core.Rect, durationMs int) error {
	x1, y1 := src.Center()
	x2, y2 := dst.Center()
	if err := c.input.Drag(x1, y1, x2, y2, durationMs); err != nil {
		return fmt.Errorf("drag %s to %s: %w", src, dst, err)
	}
	return nil
}

// PressHome presses the home key.
func (c *Cyborg) PressHome(ctx context.Context) error {
	return c.pressKey(ctx, "KEYCODE_HOME", c.settle)
}

// PressKey presses the key with the given Android key code.
func (c *Cyborg) PressKey(ctx context.Context, code int) error {
	return c.pressKey(ctx, strconv.Itoa(code), c.settle)
}

// PressKeyAndWait presses a key and waits for wait instead of the settle delay.
func (c *Cyborg) PressKeyAndWait(ctx context.Context, code int, wait time.Duration) error {
	return c.pressKey(ctx, strconv.Itoa(code), wait)
}

func (c *Cyborg) pressKey(ctx context.Context, key string, wait time.Duration) error {
	if err := c.input.KeyEvent(key); err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	return c.afterInteraction(ctx, wait)
}

// Screenshot captures the screen as PNG.
func (c *Cyborg) Screenshot() ([]byte, error) {
	return c.input.Screenshot()
}

// RunShell runs a shell command on the device and returns its output.
func (c *Cyborg) RunShell(cmd string) (string, error) {
	return c.input.Shell(cmd)
}

// Wait pauses for d or until ctx is done.
func (c *Cyborg) Wait(ctx context.Context, d time.Duration) error {
	return c.sleep(ctx, d)
}

func (c *Cyborg) afterInteraction(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	return c.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
