// Package lock provides OS-native advisory file locking to prevent
// concurrent reconciliation runs against the same state directory.
//
// The lock uses flock(2) rather than a create-exclusive lock file: the
// kernel releases it automatically when the process exits, so a crash never
// leaves a stale lock behind.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrLockHeld is returned when another process holds the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// FileLock is an advisory lock on a well-known file path.
type FileLock struct {
	path string
	file *os.File
}

// New creates a FileLock for the given path. The lock is not acquired until
// TryAcquire is called.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// TryAcquire attempts to take the exclusive lock without blocking.
// Returns ErrLockHeld when another process has it.
func (l *FileLock) TryAcquire() error {
	if l.file != nil {
		return nil // already holding the lock
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLockHeld, l.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	l.file = f
	return nil
}

// Release drops the lock. Safe to call when the lock is not held.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file %s: %w", l.path, closeErr)
	}
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *FileLock) Held() bool {
	return l.file != nil
}
