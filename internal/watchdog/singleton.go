package watchdog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/storelock"
)

const lockFileName = "task_watchdog.lock"

// SingletonLock is the exclusive, PID-bearing lock spec §4.6 requires the
// watchdog daemon to hold for its whole lifetime: "a single-instance
// daemon holding an exclusive PID-bearing lock file... on startup it
// acquires the lock or exits with a clear error if another instance
// holds it."
type SingletonLock struct {
	lock *storelock.FileLock
	path string
}

// AcquireSingleton attempts to take the task_watchdog.lock in dir
// without blocking. If another process already holds it, it returns a
// CoreError wrapping execerrors.ErrLockBusy so the caller can surface
// spec §4.6's "clear error" and exit.
func AcquireSingleton(dir string) (*SingletonLock, error) {
	path := filepath.Join(dir, lockFileName)
	lock := storelock.NewFileLock(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, execerrors.LockBusy(path)
	}

	// Write the PID in place: a rename would swap in a new, unlocked file.
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		_ = lock.Unlock()
		return nil, execerrors.IOError(path, "failed to write pid to lock file", err)
	}
	return &SingletonLock{lock: lock, path: path}, nil
}

// Release gives up the lock. Safe to call once; the daemon should hold
// it for its whole process lifetime and release it on shutdown.
func (s *SingletonLock) Release() error {
	return s.lock.Unlock()
}
