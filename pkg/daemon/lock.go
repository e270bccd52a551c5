package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forgelabs/forge/pkg/filesystem/locking"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/must"
)

// Lock represents the global daemon lock. It is held by a single daemon
// instance at a time.
type Lock struct {
	// locker is the underlying file locker.
	locker *locking.Locker
	logger *logging.Logger
}

// AcquireLock attempts to acquire the global daemon lock.
func AcquireLock(logger *logging.Logger) (*Lock, error) {
	// Compute the lock path.
	lockPath, err := subpath(lockName)
	if err != nil {
		return nil, fmt.Errorf("unable to compute daemon lock path: %w", err)
	}

	// Create the locker and attempt to acquire the lock.
	locker, err := locking.NewLocker(lockPath, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to create daemon file locker: %w", err)
	} else if err = locker.Lock(false); err != nil {
		must.Close(locker, logger)
		return nil, err
	}

	// Record our PID in the lock file so that "forge daemon stop" (which has
	// no RPC transport to call back into the running process) can find the
	// process to signal.
	if err := locker.WriteContent([]byte(strconv.Itoa(os.Getpid()))); err != nil {
		logger.Warnf("Unable to record PID in lock file: %s", err.Error())
	}

	// Create the lock.
	return &Lock{
		locker: locker,
		logger: logger,
	}, nil
}

// RunningDaemonPID reads the PID recorded by a currently running daemon
// instance's lock file, if any. It does not itself acquire the lock.
func RunningDaemonPID() (int, error) {
	lockPath, err := subpath(lockName)
	if err != nil {
		return 0, fmt.Errorf("unable to compute daemon lock path: %w", err)
	}
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, fmt.Errorf("unable to read daemon lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("daemon lock file does not contain a valid PID: %w", err)
	}
	return pid, nil
}

// Release releases the daemon lock.
func (l *Lock) Release() error {
	// Release the lock.
	if err := l.locker.Unlock(); err != nil {
		must.Close(l.locker, l.logger)
		return err
	}

	// Close the locker.
	if err := l.locker.Close(); err != nil {
		return fmt.Errorf("unable to close locker: %w", err)
	}

	// Success.
	return nil
}
