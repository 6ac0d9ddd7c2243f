package device

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/filter"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

const (
	listReply = "41a8c2 com.example/com.example.MainActivity\n" +
		"7f00 StatusBar\n" +
		"DONE.\n"
	mainDump = "com.android.internal.policy.DecorView@41a8 mID=8,id/NO_ID mLeft=1,0 mTop=1,0 getWidth()=4,1080 getHeight()=4,1920 getVisibility()=7,VISIBLE\n" +
		" android.widget.Button@99 mID=9,id/signin mLeft=3,100 mTop=3,200 getWidth()=3,300 getHeight()=3,120 text:mText=7,Sign in isClickable()=4,true getVisibility()=7,VISIBLE\n" +
		"DONE.\n"
	statusDump = "com.android.systemui.StatusBarWindowView@7f mID=8,id/NO_ID getWidth()=4,1080 getHeight()=2,60 getVisibility()=7,VISIBLE\n" +
		"DONE.\n"
)

// fakeViewServer answers view server commands on a loopback port.
type fakeViewServer struct {
	ln      net.Listener
	replies map[string]string
	stall   map[string]bool // commands that never answer
}

func startFakeViewServer(t *testing.T, replies map[string]string) *fakeViewServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeViewServer{ln: ln, replies: replies, stall: map[string]bool{}}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeViewServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			if s.stall[cmd] {
				time.Sleep(2 * time.Second)
				return
			}
			conn.Write([]byte(s.replies[cmd]))
		}(conn)
	}
}

func (s *fakeViewServer) addr() string { return s.ln.Addr().String() }

func (s *fakeViewServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func defaultReplies() map[string]string {
	return map[string]string{
		"LIST":        listReply,
		"DUMP 41a8c2": mainDump,
		"DUMP 7f00":   statusDump,
		"GET_FOCUS":   "41a8c2 com.example/com.example.MainActivity\n",
		"SERVER":      "4\n",
		"PROTOCOL":    "4\n",
	}
}

func TestViewServerWindows(t *testing.T) {
	srv := startFakeViewServer(t, defaultReplies())
	vs := NewViewServer(srv.addr())

	windows, err := vs.Windows(context.Background())
	if err != nil {
		t.Fatalf("Windows() error = %v", err)
	}
	want := []view.Window{
		{Title: "com.example/com.example.MainActivity", ID: 0x41a8c2},
		{Title: "StatusBar", ID: 0x7f00},
	}
	if len(windows) != len(want) {
		t.Fatalf("Windows() = %v", windows)
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Errorf("window %d = %+v, want %+v", i, windows[i], want[i])
		}
	}

	focus, err := vs.FocusedWindow(context.Background())
	if err != nil || focus.ID != 0x41a8c2 {
		t.Errorf("FocusedWindow() = %+v, %v", focus, err)
	}

	server, protocol, err := vs.Version(context.Background())
	if err != nil || server != 4 || protocol != 4 {
		t.Errorf("Version() = %d, %d, %v", server, protocol, err)
	}
}

func TestViewServerDump(t *testing.T) {
	srv := startFakeViewServer(t, defaultReplies())
	vs := NewViewServer(srv.addr())

	w := view.Window{ID: 0x41a8c2}
	data, err := vs.Dump(context.Background(), w)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	root, err := view.Build(data, w)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(root.Children) != 1 || root.Children[0].ID != "id/signin" {
		t.Errorf("unexpected tree from dump: %+v", root)
	}
}

func TestViewServerDumpTimeout(t *testing.T) {
	srv := startFakeViewServer(t, defaultReplies())
	srv.stall["DUMP 41a8c2"] = true
	vs := NewViewServer(srv.addr())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := vs.Dump(ctx, view.Window{ID: 0x41a8c2})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dump() error = %v, want deadline exceeded", err)
	}
}

func TestViewServerUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewViewServer(addr).Windows(context.Background())
	if !errors.Is(err, core.ErrViewServerUnavailable) {
		t.Errorf("Windows() error = %v, want view server unavailable", err)
	}
}

func TestParseParcel(t *testing.T) {
	tests := []struct {
		out     string
		want    int
		wantErr bool
	}{
		{"Result: Parcel(00000000 00000001   '........')\n", 1, false},
		{"Result: Parcel(00000000 00000000   '........')\n", 0, false},
		{"Result: Parcel(fffffffc 00000000 'Permission denied')", 0, true},
		{"service: not found", 0, true},
	}
	for _, tt := range tests {
		got, err := parseParcel(tt.out)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseParcel(%q) = %d, %v", tt.out, got, err)
		}
	}
}

func TestConnectAndSnapshot(t *testing.T) {
	srv := startFakeViewServer(t, defaultReplies())
	port := strconv.Itoa(srv.port())

	d, f := newFakeDevice(map[string]string{
		"shell service call window 3":          "Result: Parcel(00000000 00000000   '........')\n",
		"shell service call window 1 i32 4939": "Result: Parcel(00000000 00000001   '........')\n",
		"forward tcp:" + port + " tcp:4939":    "",
		"forward --remove tcp:" + port:         "",
		"shell wm size":                        "Physical size: 1080x1920\n",
	})

	target, err := Connect(context.Background(), d, ConnectOptions{LocalPort: srv.port()})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer target.Close()

	if !f.called("shell service call window 1 i32 4939") {
		t.Error("view server was not started")
	}
	if w, h := target.DisplaySize(); w != 1080 || h != 1920 {
		t.Errorf("DisplaySize() = %dx%d", w, h)
	}

	s := snapshot.New(snapshot.Options{})
	node, err := s.FindOne(context.Background(), target, filter.WithText("Sign in"))
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if r := view.AbsoluteRect(node); r != (core.Rect{X: 100, Y: 200, W: 300, H: 120}) {
		t.Errorf("rect = %v", r)
	}
	if !s.HasVisible(context.Background(), target, filter.Clickable()) {
		t.Error("clickable button not visible")
	}
}

func TestConnectDisplayOverride(t *testing.T) {
	d, f := newFakeDevice(map[string]string{
		"shell service call window 3": "Result: Parcel(00000000 00000001   '........')\n",
		"forward tcp:15000 tcp:4939":  "",
	})
	target, err := Connect(context.Background(), d, ConnectOptions{LocalPort: 15000, DisplayWidth: 720, DisplayHeight: 1280})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if w, h := target.DisplaySize(); w != 720 || h != 1280 {
		t.Errorf("DisplaySize() = %dx%d", w, h)
	}
	if f.called("shell wm size") {
		t.Error("wm size queried despite override")
	}
	if f.called("shell service call window 1 i32 4939") {
		t.Error("running view server was restarted")
	}
}

func TestConnectRefused(t *testing.T) {
	d, _ := newFakeDevice(map[string]string{
		"shell service call window 3":          "Result: Parcel(00000000 00000000   '........')\n",
		"shell service call window 1 i32 4939": "Result: Parcel(00000000 00000000   '........')\n",
	})
	_, err := Connect(context.Background(), d, ConnectOptions{})
	if !errors.Is(err, core.ErrViewServerUnavailable) {
		t.Errorf("Connect() error = %v, want view server unavailable", err)
	}
}
