// +build !windows,!plan9

// TODO: Figure out what to do for Plan 9. It doesn't support Setsid.

package main

import (
	"os"
	"syscall"
)

// probeSignal is sent to check whether a recorded daemon PID is still alive,
// without actually affecting the process (the null signal).
var probeSignal os.Signal = syscall.Signal(0)

func daemonProcessAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}

func terminateSignal() os.Signal {
	return syscall.SIGTERM
}
