package device

import (
	"bytes"
	"context"
	"fmt"
)

// Key names accepted by KeyEvent.
const (
	KeyHome  = "KEYCODE_HOME"
	KeyBack  = "KEYCODE_BACK"
	KeyEnter = "KEYCODE_ENTER"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Tap injects a tap at (x, y).
func (d *AndroidDevice) Tap(x, y int) error {
	_, err := d.Shell(fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Drag injects a drag-and-drop gesture lasting durationMs.
func (d *AndroidDevice) Drag(x1, y1, x2, y2, durationMs int) error {
	_, err := d.Shell(fmt.Sprintf("input draganddrop %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// KeyEvent injects a key press. key is a KEYCODE_ name or a numeric code.
func (d *AndroidDevice) KeyEvent(key string) error {
	_, err := d.Shell("input keyevent " + key)
	return err
}

// PressHome presses the home key.
func (d *AndroidDevice) PressHome() error {
	return d.KeyEvent(KeyHome)
}

// Screenshot captures the screen as PNG.
func (d *AndroidDevice) Screenshot() ([]byte, error) {
	data, err := d.ExecOut(context.Background(), "screencap -p")
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("screencap returned %d bytes of non-PNG data", len(data))
	}
	return data, nil
}
