package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var windowsCommand = &cli.Command{
	Name:  "windows",
	Usage: "List the windows the view server can dump",
	Description: `Print the id and title of every window on the device. The focused
window is marked with *.

Examples:
  cyborg windows
  cyborg -s emulator-5554 windows`,
	Action: runWindows,
}

func runWindows(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	live, err := connect(c, cfg)
	if err != nil {
		return err
	}
	defer live.Close()

	srv := live.target.Server
	windows, err := srv.Windows(c.Context)
	if err != nil {
		return err
	}
	focused, err := srv.FocusedWindow(c.Context)
	if err != nil {
		// older servers lack GET_FOCUS
		focused.ID = 0
	}

	w := c.App.Writer
	for _, win := range windows {
		mark := " "
		if focused.ID != 0 && win.Equal(focused) {
			mark = color(colorGreen) + "*" + color(colorReset)
		}
		fmt.Fprintf(w, "%s %8s  %s\n", mark, win.Encode(), win.Title)
	}
	return nil
}
