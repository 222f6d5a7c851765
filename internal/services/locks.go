package services

import (
	"fmt"
	"os"
	"time"

	"github.com/thirdopinion/fhirlake/internal/lib"
)

// RunLock is the exclusive pipeline lock for a state directory.
// Only one run executes against a state directory at a time; the lock file
// records which run currently holds it.
type RunLock struct {
	runID    string
	lockFile *os.File
	lockPath string
	logger   *lib.Logger
}

// WithRunLock executes a function while holding the state directory lock
// Automatically acquires the lock, executes the function, and releases the lock
// Returns error if lock cannot be acquired or if the function returns an error
func WithRunLock(stateDir string, runID string, logger *lib.Logger, fn func() error) error {
	// Acquire lock
	lock, err := AcquireRunLock(stateDir, runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release run lock", "error", err)
		}
	}()

	// Execute function with lock held
	return fn()
}

// writeLockInfo writes holder information to the lock file
func (rl *RunLock) writeLockInfo() error {
	lockInfo := fmt.Sprintf("pid=%d\nrun_id=%s\ntime=%s\n", os.Getpid(), rl.runID, time.Now().Format(time.RFC3339))
	_ = rl.lockFile.Truncate(0)
	_, _ = rl.lockFile.Seek(0, 0)
	_, _ = rl.lockFile.WriteString(lockInfo)
	return rl.lockFile.Sync()
}
