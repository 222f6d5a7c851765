//go:build unix

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/thirdopinion/fhirlake/internal/lib"
)

// AcquireRunLock attempts to acquire the exclusive state directory lock
// (Unix implementation). Returns a RunLock if successful, error if another
// run holds the lock. The lock is released when the RunLock is closed or
// the process exits.
func AcquireRunLock(stateDir string, runID string, logger *lib.Logger) (*RunLock, error) {
	lockPath := filepath.Join(stateDir, ".lock")

	// Ensure state directory exists
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	// Open/create lock file
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	// Try to acquire exclusive lock (non-blocking)
	// flock() is advisory - cooperating processes must check the lock
	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = lockFile.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, lib.ErrRunLocked(stateDir)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	lock := &RunLock{
		runID:    runID,
		lockFile: lockFile,
		lockPath: lockPath,
		logger:   logger,
	}

	// Write lock info
	if err := lock.writeLockInfo(); err != nil {
		logger.Warn("Failed to write lock info", "run_id", runID, "error", err)
	}

	logger.Debug("Acquired run lock", "run_id", runID, "pid", os.Getpid())

	return lock, nil
}

// Release releases the state directory lock (Unix implementation)
// Should be called when run execution is complete
func (rl *RunLock) Release() error {
	if rl.lockFile == nil {
		return nil
	}

	// Release flock
	err := syscall.Flock(int(rl.lockFile.Fd()), syscall.LOCK_UN)
	if err != nil {
		rl.logger.Warn("Failed to release flock", "run_id", rl.runID, "error", err)
	}

	// Close lock file
	if err := rl.lockFile.Close(); err != nil {
		rl.logger.Warn("Failed to close lock file", "run_id", rl.runID, "error", err)
		return err
	}

	rl.logger.Debug("Released run lock", "run_id", rl.runID, "pid", os.Getpid())
	rl.lockFile = nil

	return nil
}

// IsRunLocked checks if the state directory is locked by any process
// (Unix implementation). This is a non-destructive check that doesn't
// keep the lock.
func IsRunLocked(stateDir string) bool {
	lockPath := filepath.Join(stateDir, ".lock")

	// If lock file doesn't exist, no run is active
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false
	}

	// Try to open lock file
	lockFile, err := os.Open(lockPath)
	if err != nil {
		// Can't open lock file - assume not locked
		return false
	}
	defer func() {
		_ = lockFile.Close()
	}()

	// Try to acquire lock (non-blocking)
	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		// Lock is held by another process
		return err == syscall.EWOULDBLOCK
	}

	// We acquired the lock - release it immediately
	_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
	return false
}
