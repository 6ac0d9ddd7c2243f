package device

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

// Port range searched for a free forwarding port.
const (
	portRangeStart = 14939
	portRangeEnd   = 15939
)

// ConnectOptions configures Connect.
type ConnectOptions struct {
	ViewServerPort int // on-device port, default DefaultViewServerPort
	LocalPort      int // forwarded host port, 0 finds a free one
	DisplayWidth   int // overrides wm size when both are set
	DisplayHeight  int
}

// Target is a connected device ready for hierarchy snapshots. The window
// manager's view server serves every window on the device, so it is exposed
// as a single process.
type Target struct {
	Device *AndroidDevice
	Server *ViewServer

	localPort int
	width     int
	height    int
}

// Connect starts the view server if needed, forwards it to the host and
// resolves the display size.
func Connect(ctx context.Context, d *AndroidDevice, opts ConnectOptions) (*Target, error) {
	if opts.ViewServerPort == 0 {
		opts.ViewServerPort = DefaultViewServerPort
	}

	running, err := d.IsViewServerRunning(ctx)
	if err != nil {
		log.Warn("view server status unknown: %v", err)
	}
	if !running {
		if err := d.StartViewServer(ctx, opts.ViewServerPort); err != nil {
			return nil, err
		}
		log.Info("started view server on %s:%d", d.Serial(), opts.ViewServerPort)
	}

	local := opts.LocalPort
	if local == 0 {
		if local, err = findFreePort(portRangeStart, portRangeEnd); err != nil {
			return nil, err
		}
	}
	if err := d.Forward(local, opts.ViewServerPort); err != nil {
		return nil, fmt.Errorf("port forward failed: %w", err)
	}

	t := &Target{
		Device:    d,
		Server:    NewViewServer(net.JoinHostPort("127.0.0.1", strconv.Itoa(local))),
		localPort: local,
		width:     opts.DisplayWidth,
		height:    opts.DisplayHeight,
	}
	if t.width == 0 || t.height == 0 {
		if t.width, t.height, err = d.ScreenSize(); err != nil {
			t.Close()
			return nil, fmt.Errorf("display size: %w", err)
		}
	}
	log.Info("connected to %s, display %dx%d, view server at %s", d.Serial(), t.width, t.height, t.Server.Addr())
	return t, nil
}

// Processes returns the view server as the only debuggable process.
func (t *Target) Processes(context.Context) ([]snapshot.Process, error) {
	return []snapshot.Process{&serverProcess{name: "window_manager@" + t.Device.Serial(), vs: t.Server}}, nil
}

// DisplaySize returns the display size in pixels.
func (t *Target) DisplaySize() (int, int) {
	return t.width, t.height
}

// Close removes the port forward.
func (t *Target) Close() error {
	if t.localPort == 0 {
		return nil
	}
	err := t.Device.RemoveForward(t.localPort)
	t.localPort = 0
	return err
}

type serverProcess struct {
	name string
	vs   *ViewServer
}

func (p *serverProcess) Name() string           { return p.name }
func (p *serverProcess) HasViewHierarchy() bool { return true }

func (p *serverProcess) Windows(ctx context.Context) ([]view.Window, error) {
	return p.vs.Windows(ctx)
}

func (p *serverProcess) Dump(ctx context.Context, w view.Window) ([]byte, error) {
	return p.vs.Dump(ctx, w)
}

// findFreePort finds a free TCP port in the given range.
func findFreePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found in range %d-%d", start, end)
}
