// alerter - notifications for the command line that wait for an answer
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/alerter

package main

import (
	"os"
	"runtime"

	"github.com/ariel-frischer/alerter/internal/cli"
)

func init() {
	// Platform event loops (AppKit on macOS) must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(cli.Execute())
}
