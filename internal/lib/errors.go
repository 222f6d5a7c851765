package lib

import (
	"fmt"
	"strings"
)

// LakeError represents a user-friendly error with context and guidance
type LakeError struct {
	Category    ErrorCategory
	Message     string   // Short description of what went wrong
	Cause       error    // Underlying error
	Guidance    []string // What the user can do to fix it
	HTTPStatus  int      // HTTP status code if applicable
	IsRetryable bool     // Can this error be automatically retried?
}

// ErrorCategory classifies errors for better UX
type ErrorCategory string

const (
	CategoryNetwork       ErrorCategory = "network"
	CategoryFileSystem    ErrorCategory = "filesystem"
	CategoryValidation    ErrorCategory = "validation"
	CategoryService       ErrorCategory = "service"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryState         ErrorCategory = "state"
)

// Error implements the error interface
func (e *LakeError) Error() string {
	var sb strings.Builder

	// Category prefix for clarity
	sb.WriteString(fmt.Sprintf("[%s] ", strings.ToUpper(string(e.Category))))
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.HTTPStatus > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.HTTPStatus))
	}

	return sb.String()
}

// UserMessage returns a formatted message suitable for displaying to end users
func (e *LakeError) UserMessage() string {
	var sb strings.Builder

	sb.WriteString("❌ Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")

	if len(e.Guidance) > 0 {
		sb.WriteString("💡 How to fix:\n")
		for i, guide := range e.Guidance {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, guide))
		}
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", e.Cause))
	}

	if e.IsRetryable {
		sb.WriteString("\n🔄 This error is transient and will be automatically retried.\n")
	}

	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility
func (e *LakeError) Unwrap() error {
	return e.Cause
}

// Network Errors

// ErrNetworkUnreachable creates an error for network connectivity issues
func ErrNetworkUnreachable(url string, cause error) *LakeError {
	return &LakeError{
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("Cannot reach service at %s", url),
		Cause:    cause,
		Guidance: []string{
			"Check that the service is running",
			fmt.Sprintf("Verify the URL is correct: %s", url),
			"Check your network connection",
			"Ensure no firewall is blocking the connection",
		},
		IsRetryable: true,
	}
}

// ErrNetworkTimeout creates an error for request timeouts
func ErrNetworkTimeout(url string, cause error) *LakeError {
	return &LakeError{
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("Request to %s timed out", url),
		Cause:    cause,
		Guidance: []string{
			"The service may be overloaded or slow to respond",
			"Wait a moment and try again",
			"Check service health and performance",
			"Consider increasing timeout in configuration if large datasets",
		},
		IsRetryable: true,
	}
}

// Filesystem Errors

// ErrFileNotFound creates an error for missing files or directories
func ErrFileNotFound(path string) *LakeError {
	return &LakeError{
		Category: CategoryFileSystem,
		Message:  fmt.Sprintf("File or directory not found: %s", path),
		Guidance: []string{
			"Check that the path is correct",
			"Ensure the file/directory exists",
			"Verify you have permission to access it",
		},
		IsRetryable: false,
	}
}

// ErrFilePermissionDenied creates an error for permission issues
func ErrFilePermissionDenied(path string, cause error) *LakeError {
	return &LakeError{
		Category: CategoryFileSystem,
		Message:  fmt.Sprintf("Permission denied accessing: %s", path),
		Cause:    cause,
		Guidance: []string{
			"Check file/directory permissions",
			"Ensure your user has read/write access",
			"Try running with appropriate permissions",
		},
		IsRetryable: false,
	}
}

// ErrDiskFull creates an error for out of disk space
func ErrDiskFull(path string, cause error) *LakeError {
	return &LakeError{
		Category: CategoryFileSystem,
		Message:  "No space left on device",
		Cause:    cause,
		Guidance: []string{
			"Free up disk space",
			fmt.Sprintf("Clean old runs from %s", path),
			"Use --state-dir flag to specify a different location with more space",
			"Consider deleting unnecessary files",
		},
		IsRetryable: false,
	}
}

// ErrInvalidFHIRFile creates an error for malformed FHIR data
func ErrInvalidFHIRFile(filename string, line int, cause error) *LakeError {
	guidance := []string{
		fmt.Sprintf("Check FHIR file format in %s", filename),
		"Ensure the file contains valid NDJSON (newline-delimited JSON)",
		"Verify each line is valid FHIR resource JSON",
	}

	if line > 0 {
		guidance = append(guidance, fmt.Sprintf("Error occurred at line %d", line))
	}

	return &LakeError{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("Invalid FHIR data in %s", filename),
		Cause:       cause,
		Guidance:    guidance,
		IsRetryable: false,
	}
}

// Service Errors

// ErrServiceUnavailable creates an error for 5xx service errors
func ErrServiceUnavailable(serviceName string, statusCode int, cause error) *LakeError {
	return &LakeError{
		Category:   CategoryService,
		Message:    fmt.Sprintf("%s service is temporarily unavailable", serviceName),
		Cause:      cause,
		HTTPStatus: statusCode,
		Guidance: []string{
			"The service may be experiencing issues",
			"Wait a moment - automatic retry is in progress",
			fmt.Sprintf("Check %s service logs for errors", serviceName),
			"Verify the service is running and healthy",
		},
		IsRetryable: true,
	}
}

// ErrServiceBadRequest creates an error for 4xx client errors
func ErrServiceBadRequest(serviceName string, statusCode int, message string) *LakeError {
	return &LakeError{
		Category:   CategoryService,
		Message:    fmt.Sprintf("%s rejected the request: %s", serviceName, message),
		HTTPStatus: statusCode,
		Guidance: []string{
			"The data sent to the service was invalid or malformed",
			"Check the request payload structure and content",
			"Review service documentation for required formats",
			"This error requires manual investigation - automatic retry will not help",
		},
		IsRetryable: false,
	}
}

// ErrDatasetWriteFailed creates an error for curated dataset write failures.
// Write failures are fatal for the resource type being processed.
func ErrDatasetWriteFailed(location string, cause error) *LakeError {
	isRetryable := IsNetworkError(cause)

	return &LakeError{
		Category: CategoryService,
		Message:  fmt.Sprintf("Failed to write curated data to %s", location),
		Cause:    cause,
		Guidance: []string{
			"Check that the dataset destination is reachable and writable",
			"Verify bucket/root configuration under 'dataset' in fhirlake.yaml",
			"Partial part files are cleaned up; re-running the type is safe",
		},
		IsRetryable: isRetryable,
	}
}

// Configuration Errors

// ErrMissingCatalogURL creates an error for missing catalog service configuration
func ErrMissingCatalogURL() *LakeError {
	return &LakeError{
		Category: CategoryConfiguration,
		Message:  "Catalog backend is 'http' but catalog url is not configured",
		Guidance: []string{
			"Add catalog.url to your fhirlake.yaml config file",
			"Or switch catalog.backend to 'sqlite' for a local catalog",
			"See config/fhirlake.example.yaml for reference",
		},
		IsRetryable: false,
	}
}

// ErrInvalidConfig creates an error for configuration validation failures
func ErrInvalidConfig(field string, reason string) *LakeError {
	return &LakeError{
		Category: CategoryConfiguration,
		Message:  fmt.Sprintf("Invalid configuration: %s", reason),
		Guidance: []string{
			fmt.Sprintf("Check the '%s' field in your config file", field),
			"Compare with config/fhirlake.example.yaml for correct format",
			"Ensure all required fields are populated",
		},
		IsRetryable: false,
	}
}

// State Errors

// ErrRunNotFound creates an error for missing run state
func ErrRunNotFound(runID string) *LakeError {
	return &LakeError{
		Category: CategoryState,
		Message:  fmt.Sprintf("Run '%s' not found", runID),
		Guidance: []string{
			"Check the run ID is correct",
			"Use 'fhirlake run list' to see all available runs",
			"The run may have been deleted",
		},
		IsRetryable: false,
	}
}

// ErrCorruptedRunState creates an error for invalid run state files
func ErrCorruptedRunState(runID string, cause error) *LakeError {
	return &LakeError{
		Category: CategoryState,
		Message:  fmt.Sprintf("Run state file for '%s' is corrupted", runID),
		Cause:    cause,
		Guidance: []string{
			"The run state file may have been manually edited or corrupted",
			"Check runs/<run-id>/run.json for syntax errors",
			"You may need to delete this run and start a new one",
			"Consider restoring from backup if available",
		},
		IsRetryable: false,
	}
}

// ErrUnknownResourceType creates an error for resource types outside the roster
func ErrUnknownResourceType(resourceType string) *LakeError {
	return &LakeError{
		Category: CategoryValidation,
		Message:  fmt.Sprintf("Resource type '%s' is not part of the processing roster", resourceType),
		Guidance: []string{
			"Check the spelling against FHIR resource type names (e.g. Patient, Observation)",
			"Use 'fhirlake run start --help' to see the full roster",
		},
		IsRetryable: false,
	}
}

// ErrRunLocked creates an error when a run is locked by another process
func ErrRunLocked(stateDir string) *LakeError {
	return &LakeError{
		Category: CategoryState,
		Message:  fmt.Sprintf("Another run is already active in state directory '%s'", stateDir),
		Guidance: []string{
			"Wait for the active run to complete",
			"Check if another fhirlake process is running",
			"If stuck, remove the lock file: <state_dir>/.lock",
		},
		IsRetryable: true, // May succeed if we retry after lock is released
	}
}

// Helper Functions

// WrapError wraps a standard error with LakeError context
func WrapError(category ErrorCategory, message string, cause error, guidance ...string) *LakeError {
	isRetryable := IsNetworkError(cause)

	return &LakeError{
		Category:    category,
		Message:     message,
		Cause:       cause,
		Guidance:    guidance,
		IsRetryable: isRetryable,
	}
}

// ClassifyError examines an error and returns appropriate user guidance
func ClassifyError(err error) *LakeError {
	if err == nil {
		return nil
	}

	// Already a LakeError
	if lakeErr, ok := err.(*LakeError); ok {
		return lakeErr
	}

	errMsg := err.Error()

	// Network errors
	if IsNetworkError(err) {
		return &LakeError{
			Category:    CategoryNetwork,
			Message:     "Network connectivity issue",
			Cause:       err,
			Guidance:    []string{"Check network connection", "Verify service is running", "Will retry automatically"},
			IsRetryable: true,
		}
	}

	// Disk space errors
	if containsIgnoreCase(errMsg, "no space left") || containsIgnoreCase(errMsg, "disk full") {
		return &LakeError{
			Category:    CategoryFileSystem,
			Message:     "Insufficient disk space",
			Cause:       err,
			Guidance:    []string{"Free up disk space", "Clean old runs", "Use --state-dir to specify different location"},
			IsRetryable: false,
		}
	}

	// Permission errors
	if containsIgnoreCase(errMsg, "permission denied") || containsIgnoreCase(errMsg, "access denied") {
		return &LakeError{
			Category:    CategoryFileSystem,
			Message:     "Permission denied",
			Cause:       err,
			Guidance:    []string{"Check file/directory permissions", "Ensure proper access rights"},
			IsRetryable: false,
		}
	}

	// Generic fallback
	return &LakeError{
		Category:    CategoryValidation,
		Message:     "An error occurred",
		Cause:       err,
		Guidance:    []string{"Check the technical details below", "See logs for more information"},
		IsRetryable: false,
	}
}
