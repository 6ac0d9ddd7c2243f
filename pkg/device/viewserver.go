package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

// DefaultViewServerPort is the port the window manager's view server listens on.
const DefaultViewServerPort = 4939

// Window manager binder transactions.
const (
	txStartViewServer     = 1
	txStopViewServer      = 2
	txIsViewServerRunning = 3
)

const doneMarker = "DONE."

// ViewServer talks to the window manager's view server through a forwarded
// port. The server answers one command per connection.
type ViewServer struct {
	addr   string
	dialer net.Dialer
}

// NewViewServer creates a client for the view server reachable at addr.
func NewViewServer(addr string) *ViewServer {
	return &ViewServer{addr: addr}
}

// Addr returns the host address the client dials.
func (v *ViewServer) Addr() string { return v.addr }

// Windows lists the windows the server can dump.
func (v *ViewServer) Windows(ctx context.Context) ([]view.Window, error) {
	out, err := v.command(ctx, "LIST")
	if err != nil {
		return nil, err
	}
	var windows []view.Window
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == doneMarker {
			continue
		}
		w, err := view.ParseWindow(line)
		if err != nil {
			log.Debug("skipping window line %q: %v", line, err)
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// Dump returns the hierarchy dump of w, including its DONE. terminator.
func (v *ViewServer) Dump(ctx context.Context, w view.Window) ([]byte, error) {
	return v.command(ctx, "DUMP "+w.Encode())
}

// FocusedWindow returns the window holding input focus.
func (v *ViewServer) FocusedWindow(ctx context.Context) (view.Window, error) {
	out, err := v.command(ctx, "GET_FOCUS")
	if err != nil {
		return view.Window{}, err
	}
	return view.ParseWindow(strings.TrimSpace(string(out)))
}

// Version returns the server and protocol versions.
func (v *ViewServer) Version(ctx context.Context) (server, protocol int, err error) {
	for _, q := range []struct {
		cmd string
		dst *int
	}{{"SERVER", &server}, {"PROTOCOL", &protocol}} {
		out, err := v.command(ctx, q.cmd)
		if err != nil {
			return 0, 0, err
		}
		if *q.dst, err = strconv.Atoi(strings.TrimSpace(string(out))); err != nil {
			return 0, 0, fmt.Errorf("%s: %w", q.cmd, err)
		}
	}
	return server, protocol, nil
}

// command sends one command and reads the reply until the DONE. line or EOF.
func (v *ViewServer) command(ctx context.Context, cmd string) ([]byte, error) {
	conn, err := v.dialer.DialContext(ctx, "tcp", v.addr)
	if err != nil {
		return nil, core.ErrViewServerUnavailable.WithCause(err)
	}
	defer conn.Close()

	// Closing the connection unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return nil, v.contextErr(ctx, fmt.Errorf("send %s: %w", cmd, err))
	}

	var buf bytes.Buffer
	r := bufio.NewReaderSize(conn, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if bytes.Equal(bytes.TrimRight(line, "\r\n"), []byte(doneMarker)) {
			break
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, v.contextErr(ctx, fmt.Errorf("read %s: %w", cmd, err))
		}
	}
	return buf.Bytes(), nil
}

// contextErr prefers the context's error when it caused the failure.
func (v *ViewServer) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// serviceCall runs a window manager binder transaction and returns the first
// result word.
func (d *AndroidDevice) serviceCall(ctx context.Context, code int, args ...string) (int, error) {
	cmd := "service call window " + strconv.Itoa(code)
	if len(args) > 0 {
		cmd += " " + strings.Join(args, " ")
	}
	out, err := d.ShellContext(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return parseParcel(out)
}

// parseParcel reads the status word after the exception word of
// "Result: Parcel(00000000 00000001   '........')".
func parseParcel(out string) (int, error) {
	start := strings.Index(out, "Parcel(")
	if start == -1 {
		return 0, fmt.Errorf("unexpected service call output: %q", strings.TrimSpace(out))
	}
	fields := strings.Fields(out[start+len("Parcel("):])
	if len(fields) < 2 {
		return 0, fmt.Errorf("short parcel: %q", strings.TrimSpace(out))
	}
	if fields[0] != "00000000" {
		return 0, fmt.Errorf("service call raised exception %s", fields[0])
	}
	v, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse parcel word %q: %w", fields[1], err)
	}
	return int(int32(uint32(v))), nil
}

// IsViewServerRunning asks the window manager whether its view server is up.
func (d *AndroidDevice) IsViewServerRunning(ctx context.Context) (bool, error) {
	v, err := d.serviceCall(ctx, txIsViewServerRunning)
	return v == 1, err
}

// StartViewServer starts the view server on port. Only debuggable builds
// allow it.
func (d *AndroidDevice) StartViewServer(ctx context.Context, port int) error {
	v, err := d.serviceCall(ctx, txStartViewServer, "i32", strconv.Itoa(port))
	if err != nil {
		return core.ErrViewServerUnavailable.WithCause(err)
	}
	if v != 1 {
		return core.ErrViewServerUnavailable.WithMessage("window manager refused to start the view server (is this a debuggable build?)")
	}
	return nil
}

// StopViewServer stops the view server.
func (d *AndroidDevice) StopViewServer(ctx context.Context) error {
	_, err := d.serviceCall(ctx, txStopViewServer)
	return err
}
