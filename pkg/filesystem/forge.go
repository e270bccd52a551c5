package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgelabs/forge/pkg/filesystem/locking"
)

const (
	// ForgeLockFileName is the name of the lock file coordinating access to
	// the daemon's data directory.
	ForgeLockFileName = ".forge.lock"

	// ForgeDataDirectoryName is the name of the daemon's data directory,
	// created in the current user's home directory.
	ForgeDataDirectoryName = ".forge"

	// ForgeDaemonDirectoryName is the name of the daemon subdirectory within
	// the data directory (singleton lock file, IPC socket, log file).
	ForgeDaemonDirectoryName = "daemon"

	// ForgeStoreDirectoryName is the name of the subdirectory holding the
	// fingerprint/product store (§4.2).
	ForgeStoreDirectoryName = "store"

	// ForgeFenceDirectoryName is a name for a fence sentinel subdirectory
	// (§4.3). Nothing references it: pkg/forged places the Fence
	// Coordinator's directory at "<cacheRoot>/.fence" under its own constant.
	ForgeFenceDirectoryName = ".forge-fence"

	// ForgeJobLogsDirectoryName is the name of the subdirectory holding
	// per-job log files (§6).
	ForgeJobLogsDirectoryName = "logs"
)

// HomeDirectory is the cached path to the current user's home directory.
var HomeDirectory string

// ForgeLockFilePath is the path to the lock file coordinating access to the
// data directory.
var ForgeLockFilePath string

// ForgeDataDirectoryPath is the path to the daemon's data directory.
var ForgeDataDirectoryPath string

func init() {
	h, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("unable to query user's home directory: %w", err))
	} else if h == "" {
		panic("home directory path empty")
	}
	HomeDirectory = h

	ForgeLockFilePath = filepath.Join(HomeDirectory, ForgeLockFileName)
	ForgeDataDirectoryPath = filepath.Join(HomeDirectory, ForgeDataDirectoryName)
}

// AcquireForgeLock is a convenience function which attempts to acquire the
// data directory lock and returns a locked file locker.
func AcquireForgeLock() (*locking.Locker, error) {
	locker, err := locking.NewLocker(ForgeLockFilePath, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to create file locker: %w", err)
	} else if err = locker.Lock(false); err != nil {
		locker.Close()
		return nil, err
	}
	return locker, nil
}

// Forge computes (and optionally creates) subdirectories inside the daemon's
// data directory.
func Forge(create bool, pathComponents ...string) (string, error) {
	result := filepath.Join(ForgeDataDirectoryPath, filepath.Join(pathComponents...))

	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", fmt.Errorf("unable to create subpath: %w", err)
		} else if err := MarkHidden(ForgeDataDirectoryPath); err != nil {
			return "", fmt.Errorf("unable to hide data directory: %w", err)
		}
	}

	return result, nil
}
