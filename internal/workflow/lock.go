package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress reports that another animesync run on this host holds the
// run lock.
var ErrRunInProgress = errors.New("another animesync run is already in progress")

// RunLock is a host-local advisory lock. It keeps two local runs from
// interleaving their output and history rows; it does not guard the remote
// document.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock returns an unlocked lock backed by path.
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// TryLock acquires the lock without blocking.
func (l *RunLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	return l.lock.Unlock()
}
