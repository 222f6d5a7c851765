//go:build windows

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"github.com/thirdopinion/fhirlake/internal/lib"
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = kernel32.NewProc("LockFileEx")
	procUnlockFileEx = kernel32.NewProc("UnlockFileEx")
)

const (
	LOCKFILE_FAIL_IMMEDIATELY = 0x00000001
	LOCKFILE_EXCLUSIVE_LOCK   = 0x00000002
	ERROR_LOCK_VIOLATION      = syscall.Errno(33) // File is locked by another process
)

// AcquireRunLock attempts to acquire the exclusive state directory lock
// (Windows implementation). Returns a RunLock if successful, error if
// another run holds the lock.
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
	handle := syscall.Handle(lockFile.Fd())
	overlapped := syscall.Overlapped{}

	// LockFileEx with FAIL_IMMEDIATELY flag for non-blocking behavior
	r1, _, err := procLockFileEx.Call(
		uintptr(handle),
		uintptr(LOCKFILE_EXCLUSIVE_LOCK|LOCKFILE_FAIL_IMMEDIATELY),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if r1 == 0 {
		_ = lockFile.Close()
		// On Windows, if the lock fails due to the file already being locked, err will be ERROR_LOCK_VIOLATION
		if err == ERROR_LOCK_VIOLATION {
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

// Release releases the state directory lock (Windows implementation)
// Should be called when run execution is complete
func (rl *RunLock) Release() error {
	if rl.lockFile == nil {
		return nil
	}

	// Release lock
	handle := syscall.Handle(rl.lockFile.Fd())
	overlapped := syscall.Overlapped{}

	_, _, err := procUnlockFileEx.Call(
		uintptr(handle),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if err != syscall.Errno(0) {
		rl.logger.Warn("Failed to release lock", "run_id", rl.runID, "error", err)
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
// (Windows implementation). This is a non-destructive check that doesn't
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
	handle := syscall.Handle(lockFile.Fd())
	overlapped := syscall.Overlapped{}

	r1, _, err := procLockFileEx.Call(
		uintptr(handle),
		uintptr(LOCKFILE_EXCLUSIVE_LOCK|LOCKFILE_FAIL_IMMEDIATELY),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if r1 == 0 {
		// Lock is held or can't acquire
		if err == ERROR_LOCK_VIOLATION {
			return true
		}
		// Can't determine lock status, assume not locked
		return false
	}

	// We acquired the lock - release it immediately
	procUnlockFileEx.Call(
		uintptr(handle),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)
	return false
}
