//go:build unix

package main

import (
	"os/signal"

	"golang.org/x/sys/unix"
)

// ignoreStopSignals leaves SIGINT (and SIGKILL) as the only ways to end a client.
func ignoreStopSignals() {
	signal.Ignore(unix.SIGTSTP, unix.SIGQUIT)
}
