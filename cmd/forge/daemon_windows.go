package main

import (
	"os"
	"syscall"
)

// probeSignal is sent to check whether a recorded daemon PID is still alive.
// Windows only supports os.Kill through os.Process.Signal, so a liveness
// probe there is necessarily a best-effort approximation; os.Interrupt is
// used instead of actually killing the process.
var probeSignal os.Signal = os.Interrupt

func daemonProcessAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func terminateSignal() os.Signal {
	return os.Kill
}
