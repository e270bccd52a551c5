package main

import (
	"fmt"
	"os"

	"github.com/forgelabs/forge/pkg/daemon"
)

// daemonPID returns the PID of the currently running daemon, as recorded in
// its lock file, and an error if no daemon appears to be running (or the PID
// it recorded is stale).
//
// There's no RPC wire transport in this repo (the RPC Surface is a plain Go
// API, not a client/server protocol), so there is no request we could send
// to ask the daemon "are you alive". The lock file's recorded PID plus
// os.FindProcess/Signal(0) is the substitute.
func daemonPID() (int, error) {
	pid, err := daemon.RunningDaemonPID()
	if err != nil {
		return 0, err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("recorded daemon process not found: %w", err)
	}
	if err := process.Signal(probeSignal); err != nil {
		return 0, fmt.Errorf("recorded daemon process is not running: %w", err)
	}

	return pid, nil
}
