package device

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
)

// skipIfNoDevice skips the test if no device is connected.
func skipIfNoDevice(t *testing.T) {
	t.Helper()
	cmd := exec.Command("adb", "devices")
	out, err := cmd.Output()
	if err != nil {
		t.Skip("adb not available")
	}
	deviceCount := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "\tdevice") {
			deviceCount++
		}
	}
	if deviceCount == 0 {
		t.Skip("no device connected")
	}
}

// fakeADB answers adb invocations from a table keyed by the command text
// after the serial. Unknown commands fail.
type fakeADB struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
}

func (f *fakeADB) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	key := strings.Join(args, " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	out, ok := f.responses[key]
	if !ok {
		return nil, errors.New("unexpected command " + key)
	}
	return []byte(out), nil
}

func (f *fakeADB) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func newFakeDevice(responses map[string]string) (*AndroidDevice, *fakeADB) {
	f := &fakeADB{responses: responses}
	return &AndroidDevice{serial: "emulator-5554", adbPath: "adb", run: f.run}, f
}

func TestParseDevices(t *testing.T) {
	out := "* daemon not running; starting now at tcp:5037\n" +
		"* daemon started successfully\n" +
		"List of devices attached\n" +
		"emulator-5554\tdevice\n" +
		"R58M12345\tunauthorized\n" +
		"\n"
	got := parseDevices(out)
	if len(got) != 2 {
		t.Fatalf("parseDevices() = %v", got)
	}
	if got[0] != (Entry{"emulator-5554", "device"}) || !got[0].Online() {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Online() {
		t.Error("unauthorized device reported online")
	}
}

func TestParseWMSize(t *testing.T) {
	tests := []struct {
		out     string
		w, h    int
		wantErr bool
	}{
		{"Physical size: 1080x1920\n", 1080, 1920, false},
		{"Physical size: 1440x3120\nOverride size: 1080x2340\n", 1080, 2340, false},
		{"error: no display", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseWMSize(tt.out)
		if (err != nil) != tt.wantErr || w != tt.w || h != tt.h {
			t.Errorf("parseWMSize(%q) = %d, %d, %v", tt.out, w, h, err)
		}
	}
}

func TestScreenSizeCached(t *testing.T) {
	d, f := newFakeDevice(map[string]string{"shell wm size": "Physical size: 720x1280\n"})
	for i := 0; i < 3; i++ {
		w, h, err := d.ScreenSize()
		if err != nil || w != 720 || h != 1280 {
			t.Fatalf("ScreenSize() = %d, %d, %v", w, h, err)
		}
	}
	if len(f.calls) != 1 {
		t.Errorf("wm size ran %d times, want 1", len(f.calls))
	}
}

func TestInputCommands(t *testing.T) {
	d, f := newFakeDevice(map[string]string{
		"shell input tap 540 960":                    "",
		"shell input draganddrop 10 20 300 400 1500": "",
		"shell input keyevent KEYCODE_HOME":          "",
		"shell input keyevent 66":                    "",
		"exec-out screencap -p":                      string(pngMagic) + "rest",
	})

	if err := d.Tap(540, 960); err != nil {
		t.Errorf("Tap() error = %v", err)
	}
	if err := d.Drag(10, 20, 300, 400, 1500); err != nil {
		t.Errorf("Drag() error = %v", err)
	}
	if err := d.PressHome(); err != nil {
		t.Errorf("PressHome() error = %v", err)
	}
	if err := d.KeyEvent("66"); err != nil {
		t.Errorf("KeyEvent() error = %v", err)
	}
	png, err := d.Screenshot()
	if err != nil || !strings.HasSuffix(string(png), "rest") {
		t.Errorf("Screenshot() = %q, %v", png, err)
	}
	if !f.called("shell input tap 540 960") {
		t.Error("tap command not issued")
	}
}

func TestScreenshotRejectsGarbage(t *testing.T) {
	d, _ := newFakeDevice(map[string]string{"exec-out screencap -p": "error: no display"})
	if _, err := d.Screenshot(); err == nil {
		t.Error("expected error for non-PNG output")
	}
}

func TestADBErrorIncludesCommand(t *testing.T) {
	d, _ := newFakeDevice(nil)
	_, err := d.Shell("echo hi")
	if err == nil || !strings.Contains(err.Error(), "adb shell echo hi") {
		t.Errorf("Shell() error = %v", err)
	}
}

func TestAndroidDevice_Real(t *testing.T) {
	skipIfNoDevice(t)

	d, err := New("", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	out, err := d.Shell("echo hello")
	if err != nil || !strings.Contains(out, "hello") {
		t.Errorf("Shell() = %q, %v", out, err)
	}
	info, err := d.Info()
	if err != nil || info.Serial == "" {
		t.Errorf("Info() = %+v, %v", info, err)
	}
	if w, h, err := d.ScreenSize(); err != nil || w == 0 || h == 0 {
		t.Errorf("ScreenSize() = %d, %d, %v", w, h, err)
	}
}
