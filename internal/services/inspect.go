package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// InspectExport scans a local export directory and describes every
// NDJSON file in it, counting the resources each file holds. Invalid
// files are skipped with a warning so one bad file does not hide the
// rest of the export.
func InspectExport(dir string, logger *lib.Logger) ([]models.ExportFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lib.ErrFileNotFound(dir)
		}
		return nil, fmt.Errorf("cannot access export directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("export source is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read export directory: %w", err)
	}

	var files []models.ExportFile
	for _, entry := range entries {
		if entry.IsDir() || !models.IsValidExportFile(entry.Name()) {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			logger.Warn("Cannot stat export file", "file", entry.Name(), "error", err)
			continue
		}

		// Partial counts are kept when a file has malformed lines; the
		// warning tells the operator the count stops at the bad line.
		lineCount, err := lib.CountResourcesInFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("Export file contains malformed NDJSON",
				"file", entry.Name(),
				"valid_lines", lineCount,
				"error", err)
		}

		file := models.ExportFile{
			FileName:     entry.Name(),
			FilePath:     entry.Name(),
			ResourceType: models.GetResourceTypeFromFilename(entry.Name()),
			FileSize:     fileInfo.Size(),
			LineCount:    lineCount,
			CreatedAt:    fileInfo.ModTime(),
		}

		if err := file.Validate(); err != nil {
			logger.Warn("Skipping invalid export file", "file", entry.Name(), "error", err)
			continue
		}

		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].FileName < files[j].FileName
	})

	return files, nil
}
