package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and configuration
type HTTPClient struct {
	client      *http.Client
	retryConfig lib.RetryConfig
	logger      *lib.Logger
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		retryConfig: lib.NewRetryConfigFromModel(retryConfig),
		logger:      logger,
	}
}

// DefaultHTTPClient creates an HTTP client with sensible defaults
func DefaultHTTPClient() *HTTPClient {
	return NewHTTPClient(
		30*time.Second,
		models.RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		lib.DefaultLogger,
	)
}

// Get performs an HTTP GET request with retry logic
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.Do(req)
}

// PostJSON performs an HTTP POST request with JSON content type
func (c *HTTPClient) PostJSON(ctx context.Context, url string, jsonBody []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

// PutJSON performs an HTTP PUT request with JSON content type
func (c *HTTPClient) PutJSON(ctx context.Context, url string, jsonBody []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

// Do executes an HTTP request with retry logic for transient errors
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	// Retry logic
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}

		// Clone request body if needed (body can only be read once)
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		// Execute request
		startTime := time.Now()
		resp, lastErr = c.client.Do(req)
		duration := time.Since(startTime)

		// Log the request
		lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)

		// Success
		if lastErr == nil {
			// Log response
			lib.LogServiceResponse(c.logger, req.URL.Host, resp.StatusCode, duration)

			// Check if HTTP status indicates error
			if resp.StatusCode >= 400 {
				// Classify error type
				errorType := lib.ClassifyHTTPError(resp.StatusCode)

				// Create error for HTTP status
				statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)

				// For non-transient errors, return immediately
				if errorType == models.ErrorTypeNonTransient {
					return resp, nil // Return response so caller can read error details
				}

				// For transient errors, retry
				if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
					lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, statusErr)

					// Store the error in case this is the last attempt
					lastErr = statusErr

					// Close response body before retry
					_ = resp.Body.Close()

					// Wait before retry
					if attempt < c.retryConfig.MaxAttempts-1 {
						backoff := lib.CalculateBackoff(attempt, c.retryConfig.InitialBackoffMs, c.retryConfig.MaxBackoffMs)
						select {
						case <-req.Context().Done():
							return nil, req.Context().Err()
						case <-time.After(backoff):
						}
					}

					// Reset request body for retry
					if bodyBytes != nil {
						req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
					}

					continue
				}
			}

			return resp, nil
		}

		// Network error occurred
		// Check if it's a retryable network error
		if lib.IsNetworkError(lastErr) {
			errorType := models.ErrorTypeTransient
			if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
				lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, lastErr)

				// Wait before retry
				if attempt < c.retryConfig.MaxAttempts-1 {
					backoff := lib.CalculateBackoff(attempt, c.retryConfig.InitialBackoffMs, c.retryConfig.MaxBackoffMs)
					select {
					case <-req.Context().Done():
						return nil, req.Context().Err()
					case <-time.After(backoff):
					}
				}

				// Reset request body for retry
				if bodyBytes != nil {
					req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				}

				continue
			}
		}

		// Non-retryable error
		return nil, lastErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}
