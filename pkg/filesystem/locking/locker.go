package locking

import (
	"fmt"
	"os"
)

// Locker provides file locking facilities.
type Locker struct {
	// The underlying file object to be locked.
	file *os.File
}

// NewLocker attempts to create a lock with the file at the specified path,
// creating the file if necessary. The lock is returned in an unlocked state.
func NewLocker(path string, permissions os.FileMode) (*Locker, error) {
	mode := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if file, err := os.OpenFile(path, mode, permissions); err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	} else {
		return &Locker{file: file}, nil
	}
}

// WriteContent truncates the lock file and writes content to it. It does
// not require the lock to be held; callers that want the write to be race-
// free with other lockers should hold the lock first.
func (l *Locker) WriteContent(content []byte) error {
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("unable to truncate lock file: %w", err)
	}
	// The file is opened with O_APPEND, which rejects WriteAt; after the
	// truncation a plain Write lands at offset zero.
	if _, err := l.file.Write(content); err != nil {
		return fmt.Errorf("unable to write lock file: %w", err)
	}
	return nil
}

// Close closes the underlying lock file.
func (l *Locker) Close() error {
	return l.file.Close()
}
