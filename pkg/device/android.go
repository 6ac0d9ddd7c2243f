// Package device drives Android devices over ADB: shell access, input
// injection, the on-device view server and connection tracking.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/logger"
)

var log = logger.Component("device")

// runner executes a host command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(errMsg))
	}
	return stdout.Bytes(), nil
}

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
	run     runner

	sizeOnce sync.Once
	width    int
	height   int
	sizeErr  error
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// Entry is one line of `adb devices`.
type Entry struct {
	Serial string
	State  string // device, offline, unauthorized, ...
}

// Online reports whether the device accepts commands.
func (e Entry) Online() bool { return e.State == "device" }

// New creates an AndroidDevice for the given serial. An empty serial picks
// the first online device; an empty adbPath searches PATH and the SDK.
func New(serial, adbPath string) (*AndroidDevice, error) {
	if adbPath == "" {
		var err error
		if adbPath, err = FindADB(); err != nil {
			return nil, err
		}
	}
	d := &AndroidDevice{serial: serial, adbPath: adbPath, run: execRunner}

	if d.serial == "" {
		entries, err := listDevices(context.Background(), d.run, adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
		for _, e := range entries {
			if e.Online() {
				d.serial = e.Serial
				break
			}
		}
		if d.serial == "" {
			return nil, core.ErrNoDevice
		}
	}

	if err := d.waitForDevice(5 * time.Second); err != nil {
		return nil, core.ErrNoDevice.WithCause(err)
	}
	log.Info("using device %s", d.serial)
	return d, nil
}

// ListDevices returns every device adb knows about, online or not.
func ListDevices(adbPath string) ([]Entry, error) {
	if adbPath == "" {
		var err error
		if adbPath, err = FindADB(); err != nil {
			return nil, err
		}
	}
	return listDevices(context.Background(), execRunner, adbPath)
}

func listDevices(ctx context.Context, run runner, adbPath string) ([]Entry, error) {
	out, err := run(ctx, adbPath, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	return parseDevices(string(out)), nil
}

func parseDevices(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			entries = append(entries, Entry{Serial: parts[0], State: parts[1]})
		}
	}
	return entries
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(cmd string) (string, error) {
	return d.ShellContext(context.Background(), cmd)
}

// ShellContext is Shell bounded by ctx.
func (d *AndroidDevice) ShellContext(ctx context.Context, cmd string) (string, error) {
	out, err := d.adb(ctx, "shell", cmd)
	return string(out), err
}

// ExecOut runs cmd and returns its raw stdout, unmangled by the pty.
func (d *AndroidDevice) ExecOut(ctx context.Context, cmd string) ([]byte, error) {
	return d.adb(ctx, "exec-out", cmd)
}

// Forward creates a port forward from local to device.
func (d *AndroidDevice) Forward(localPort, remotePort int) error {
	_, err := d.adb(context.Background(), "forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveForward removes a port forward.
func (d *AndroidDevice) RemoveForward(localPort int) error {
	_, err := d.adb(context.Background(), "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// Info returns device information.
func (d *AndroidDevice) Info() (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.Shell("getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell("getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell("getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	chars, _ := d.Shell("getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// ScreenSize returns the display size reported by `wm size`. The value is
// read once per device.
func (d *AndroidDevice) ScreenSize() (int, int, error) {
	d.sizeOnce.Do(func() {
		out, err := d.Shell("wm size")
		if err != nil {
			d.sizeErr = err
			return
		}
		d.width, d.height, d.sizeErr = parseWMSize(out)
	})
	return d.width, d.height, d.sizeErr
}

var sizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

// parseWMSize takes the last WxH in the output, so an override size line
// wins over the physical size.
func parseWMSize(out string) (int, int, error) {
	matches := sizePattern.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, 0, fmt.Errorf("unexpected wm size output: %q", strings.TrimSpace(out))
	}
	last := matches[len(matches)-1]
	w, _ := strconv.Atoi(last[1])
	h, _ := strconv.Atoi(last[2])
	return w, h, nil
}

// adb executes an ADB command against this device.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	log.Debug("adb %s", strings.Join(cmdArgs, " "))
	out, err := d.run(ctx, d.adbPath, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.isConnected() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected() bool {
	out, err := d.adb(context.Background(), "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "device"
}

// FindADB locates the ADB binary on PATH or under $ANDROID_HOME /
// $ANDROID_SDK_ROOT platform-tools.
func FindADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		sdk := os.Getenv(env)
		if sdk == "" {
			continue
		}
		candidate := filepath.Join(sdk, "platform-tools", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", core.ErrNoDevice.WithMessage("adb not found in PATH or $ANDROID_HOME; ensure Android SDK is installed")
}
