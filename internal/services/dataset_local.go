package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thirdopinion/fhirlake/internal/lib"
)

// LocalDataset writes part files under a root directory on the local
// filesystem. Every part is written atomically: data lands in a .part
// temp file that is renamed into place only after a clean close, so a
// crash never leaves a half-written part visible to readers.
type LocalDataset struct {
	root   string
	logger *lib.Logger
}

// NewLocalDataset resolves the dataset root, ensures it exists and
// sweeps temp files a crashed run may have left behind
func NewLocalDataset(root string, logger *lib.Logger) (*LocalDataset, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset root: %w", err)
	}

	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("create dataset root: %w", err)
	}

	dataset := &LocalDataset{root: absRoot, logger: logger}

	if removed, err := dataset.CleanStaleParts(); err != nil {
		logger.Warn("Failed to sweep stale part files", "root", absRoot, "error", err)
	} else if removed > 0 {
		logger.Info("Removed stale part files from previous run", "root", absRoot, "count", removed)
	}

	return dataset, nil
}

// WritePart stores one part file atomically under the dataset root
func (d *LocalDataset) WritePart(ctx context.Context, relPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(d.root, filepath.FromSlash(relPath))

	// Partition directories are created on demand
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create partition directory: %w", err)
	}

	// Write to .part temp file first, rename on success
	tempFile := target + ".part"
	outFile, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("create temporary part file: %w", err)
	}

	if _, err := outFile.Write(data); err != nil {
		_ = outFile.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("write part data: %w", err)
	}

	if err := outFile.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("close part file: %w", err)
	}

	if err := os.Rename(tempFile, target); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("finalize part file: %w", err)
	}

	d.logger.Debug("Part file written", "path", target, "bytes", len(data))
	return nil
}

// Location returns the absolute directory registered for a resource type
func (d *LocalDataset) Location(resourceType string) string {
	return filepath.Join(d.root, strings.ToLower(resourceType))
}

// Close is a no-op for the local backend
func (d *LocalDataset) Close() error {
	return nil
}

// CleanStaleParts removes leftover .part temp files under the dataset
// root, e.g. after a crashed run. Returns the number of files removed.
func (d *LocalDataset) CleanStaleParts() (int, error) {
	removed := 0
	err := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".part") {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove stale part file: %w", err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}
