// Command cyborg captures and queries the view hierarchy of Android apps.
package main

import "github.com/devicelab-dev/cyborg/pkg/cli"

func main() {
	cli.Execute()
}
