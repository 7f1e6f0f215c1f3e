//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

var interruptSignals = []os.Signal{os.Interrupt, unix.SIGTERM}
