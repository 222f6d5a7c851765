package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

func newTestLogger() *lib.Logger {
	return lib.NewLogger(lib.LogLevelError)
}

// testConfig returns a config whose filesystem paths all live in temp dirs
func testConfig(t *testing.T) models.ProjectConfig {
	t.Helper()
	config := models.DefaultConfig()
	config.StateDir = t.TempDir()
	config.Dataset.Root = t.TempDir()
	config.Catalog.Path = filepath.Join(t.TempDir(), "catalog.db")
	return config
}

// patientResource builds a decoded FHIR resource carrying a tenant claim.
// An empty tenant leaves the resource without security labels.
func patientResource(id string, tenant string) lib.FHIRResource {
	resource := lib.FHIRResource{
		"resourceType": "Patient",
		"id":           id,
	}
	if tenant != "" {
		resource["meta"] = map[string]interface{}{
			"security": []interface{}{
				map[string]interface{}{
					"system": lib.TenantClaimSystem,
					"code":   tenant,
				},
			},
		}
	}
	return resource
}

// ndjson renders resources as newline-delimited JSON for fake export files
func ndjson(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// fakeSource serves an in-memory bulk export
type fakeSource struct {
	// files maps resource type to file names, content maps file name to NDJSON
	files   map[string][]string
	content map[string]string

	// listErr fails ListFiles for the given resource types
	listErr map[string]error
	// openErr fails Open for the given file names
	openErr map[string]error

	// blockUntilCancel makes ListFiles hang until the context expires,
	// simulating a stalled export source
	blockUntilCancel bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		files:   make(map[string][]string),
		content: make(map[string]string),
		listErr: make(map[string]error),
		openErr: make(map[string]error),
	}
}

// addFile registers one export file for a resource type
func (s *fakeSource) addFile(resourceType string, name string, content string) {
	s.files[resourceType] = append(s.files[resourceType], name)
	s.content[name] = content
}

func (s *fakeSource) ListFiles(ctx context.Context, resourceType string) ([]string, error) {
	if s.blockUntilCancel {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.listErr[resourceType]; err != nil {
		return nil, err
	}
	return s.files[resourceType], nil
}

func (s *fakeSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.openErr[name]; err != nil {
		return nil, err
	}
	content, ok := s.content[name]
	if !ok {
		return nil, fmt.Errorf("no such export file: %s", name)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (s *fakeSource) Describe() string {
	return "fake://export"
}

// writtenPart records one WritePart call
type writtenPart struct {
	path string
	data []byte
}

// fakeDataset records written parts in call order
type fakeDataset struct {
	mu    sync.Mutex
	parts []writtenPart

	// failPrefix makes WritePart fail for matching paths
	failPrefix string
	failErr    error
}

func (d *fakeDataset) WritePart(ctx context.Context, relPath string, data []byte) error {
	if d.failPrefix != "" && strings.HasPrefix(relPath, d.failPrefix) {
		return d.failErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	d.parts = append(d.parts, writtenPart{path: relPath, data: copied})
	return nil
}

func (d *fakeDataset) Location(resourceType string) string {
	return "/curated/" + strings.ToLower(resourceType)
}

func (d *fakeDataset) Close() error {
	return nil
}

// partPaths returns the recorded part paths in write order
func (d *fakeDataset) partPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	paths := make([]string, 0, len(d.parts))
	for _, part := range d.parts {
		paths = append(paths, part.path)
	}
	return paths
}

// tableUpdate records one UpdateTable call
type tableUpdate struct {
	database string
	name     string
	update   models.TableUpdate
}

// fakeCatalog records create and update calls
type fakeCatalog struct {
	mu sync.Mutex

	// existing tables answer CreateTable with ErrTableExists
	existing map[string]bool

	createErr error
	updateErr error

	created []models.TableDescription
	updated []tableUpdate
}

func newFakeCatalog(existing ...string) *fakeCatalog {
	catalog := &fakeCatalog{existing: make(map[string]bool)}
	for _, key := range existing {
		catalog.existing[key] = true
	}
	return catalog
}

func (c *fakeCatalog) CreateTable(ctx context.Context, table models.TableDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return c.createErr
	}
	key := table.Database + "." + table.Name
	if c.existing[key] {
		return fmt.Errorf("%s: %w", key, services.ErrTableExists)
	}
	c.existing[key] = true
	c.created = append(c.created, table)
	return nil
}

func (c *fakeCatalog) UpdateTable(ctx context.Context, database, name string, update models.TableUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	c.updated = append(c.updated, tableUpdate{database: database, name: name, update: update})
	return nil
}

func (c *fakeCatalog) GetTable(ctx context.Context, database, name string) (*models.TableDescription, error) {
	return nil, fmt.Errorf("table %s.%s not found", database, name)
}

func (c *fakeCatalog) ListTables(ctx context.Context, database string) ([]string, error) {
	return nil, nil
}

func (c *fakeCatalog) Close() error {
	return nil
}
