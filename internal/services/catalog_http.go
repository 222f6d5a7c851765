package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

const defaultCatalogTimeout = 30 * time.Second

// HTTPCatalog talks to a remote catalog service over JSON.
// Routes:
//
//	POST /v1/databases/{db}/tables          create (409 when table exists)
//	PUT  /v1/databases/{db}/tables/{name}   update columns/keys/location
//	GET  /v1/databases/{db}/tables/{name}   fetch definition
//	GET  /v1/databases/{db}/tables          list table names
type HTTPCatalog struct {
	baseURL    string
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewHTTPCatalog creates a catalog client with the given base URL
func NewHTTPCatalog(baseURL string, httpClient *HTTPClient, logger *lib.Logger) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateTable registers a table with the catalog service. A 409 response
// maps to ErrTableExists so the synchronizer can fall back to update.
func (c *HTTPCatalog) CreateTable(ctx context.Context, table models.TableDescription) error {
	c.logger.Debug("Creating catalog table",
		"database", table.Database,
		"table", table.Name,
		"url", c.baseURL)

	jsonBody, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal table definition: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/tables", c.baseURL, table.Database)

	resp, err := c.httpClient.PostJSON(ctx, url, jsonBody)
	if err != nil {
		c.logger.Error("Catalog create request failed",
			"database", table.Database,
			"table", table.Name,
			"error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%s.%s: %w", table.Database, table.Name, ErrTableExists)
	}

	if resp.StatusCode >= 400 {
		return c.serviceError(resp, "create", table.Database, table.Name)
	}

	return nil
}

// UpdateTable sends the reduced definition for an existing table. Storage
// format parameters are absent from the payload on purpose.
func (c *HTTPCatalog) UpdateTable(ctx context.Context, database, name string, update models.TableUpdate) error {
	c.logger.Debug("Updating catalog table",
		"database", database,
		"table", name,
		"url", c.baseURL)

	jsonBody, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal table update: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/tables/%s", c.baseURL, database, name)

	resp, err := c.httpClient.PutJSON(ctx, url, jsonBody)
	if err != nil {
		c.logger.Error("Catalog update request failed",
			"database", database,
			"table", name,
			"error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.serviceError(resp, "update", database, name)
	}

	return nil
}

// GetTable fetches a table definition from the catalog service
func (c *HTTPCatalog) GetTable(ctx context.Context, database, name string) (*models.TableDescription, error) {
	url := fmt.Sprintf("%s/v1/databases/%s/tables/%s", c.baseURL, database, name)

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("table %s.%s not found", database, name)
	}
	if resp.StatusCode >= 400 {
		return nil, c.serviceError(resp, "get", database, name)
	}

	var table models.TableDescription
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode table definition: %w", err)
	}

	return &table, nil
}

// ListTables returns the table names registered in a database
func (c *HTTPCatalog) ListTables(ctx context.Context, database string) ([]string, error) {
	url := fmt.Sprintf("%s/v1/databases/%s/tables", c.baseURL, database)

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, c.serviceError(resp, "list", database, "")
	}

	var body struct {
		Tables []string `json:"tables"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode table list: %w", err)
	}

	return body.Tables, nil
}

// Close is a no-op for the HTTP backend
func (c *HTTPCatalog) Close() error {
	return nil
}

// serviceError reads the error body and wraps it with retry classification
func (c *HTTPCatalog) serviceError(resp *http.Response, operation, database, name string) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	errorType := lib.ClassifyHTTPError(resp.StatusCode)

	c.logger.Error("Catalog service returned error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"status", resp.Status,
		"database", database,
		"table", name,
		"error_body", string(bodyBytes),
		"retryable", errorType == models.ErrorTypeTransient)

	return &CatalogError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		ErrorType:  errorType,
		Body:       string(bodyBytes),
	}
}

// CatalogError represents an error response from the catalog service
type CatalogError struct {
	StatusCode int
	Status     string
	ErrorType  models.ErrorType
	Body       string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog service error: HTTP %d: %s", e.StatusCode, e.Status)
}

// IsRetryable returns true if this error should be retried
func (e *CatalogError) IsRetryable() bool {
	return e.ErrorType == models.ErrorTypeTransient
}
