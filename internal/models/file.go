package models

import (
	"path/filepath"
	"strings"
	"time"
)

// ExportFile represents a single NDJSON file from a bulk FHIR export
type ExportFile struct {
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	ResourceType string    `json:"resource_type"` // e.g., "Patient", "Observation"
	FileSize     int64     `json:"file_size"`     // Bytes
	LineCount    int       `json:"line_count"`    // Number of FHIR resources
	CreatedAt    time.Time `json:"created_at"`
}

// IsValidExportFile checks if the file has valid FHIR NDJSON format
func IsValidExportFile(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".ndjson")
}

// IsSafePath checks if a file path is within export directory boundaries
// Prevents path traversal attacks (e.g., ../../etc/passwd)
func IsSafePath(path string) bool {
	// Clean the path to resolve any .. or . components
	clean := filepath.Clean(path)

	// Reject absolute paths
	if filepath.IsAbs(clean) {
		return false
	}

	// Reject paths that start with .. (parent directory)
	if strings.HasPrefix(clean, "..") {
		return false
	}

	return true
}

// MatchesResourceType checks if a filename belongs to the given resource
// type. Bulk exports name files "<ResourceType>*.ndjson", so Patient must
// not match PatientContact-style prefixes of longer type names.
func MatchesResourceType(filename, resourceType string) bool {
	base := filepath.Base(filename)
	if !IsValidExportFile(base) {
		return false
	}
	if !strings.HasPrefix(base, resourceType) {
		return false
	}

	// The character after the type name must not extend the type word,
	// otherwise Goal*.ndjson would swallow e.g. GoalTemplate exports.
	rest := strings.TrimSuffix(base[len(resourceType):], ".ndjson")
	if rest == "" {
		return true
	}
	c := rest[0]
	return !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z')
}

// GetResourceTypeFromFilename attempts to extract resource type from filename
// Example: "Patient_001.ndjson" -> "Patient"
func GetResourceTypeFromFilename(filename string) string {
	// Remove .ndjson extension
	base := strings.TrimSuffix(filepath.Base(filename), ".ndjson")

	// Split on common delimiters (underscore, dash, dot)
	parts := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})

	if len(parts) > 0 {
		// First part is typically the resource type
		return parts[0]
	}

	return "Unknown"
}
