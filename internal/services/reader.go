package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// ExportSource lists and opens the NDJSON files of a bulk FHIR export.
// Bulk exports name files "<ResourceType>*.ndjson", one resource type
// per file.
type ExportSource interface {
	// ListFiles returns the export files belonging to a resource type
	ListFiles(ctx context.Context, resourceType string) ([]string, error)

	// Open opens one file returned by ListFiles
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Describe returns a human-readable source location for logs
	Describe() string
}

// NewExportSource resolves a source string into a local or object store
// source. Strings of the form "s3://bucket/prefix" use the object store
// credentials from the dataset config; everything else is a local
// directory.
func NewExportSource(source string, cfg models.DatasetConfig, logger *lib.Logger) (ExportSource, error) {
	if strings.HasPrefix(source, "s3://") {
		bucket, prefix, err := splitObjectURL(source)
		if err != nil {
			return nil, err
		}

		if cfg.Endpoint == "" {
			return nil, lib.ErrInvalidConfig("dataset.endpoint", "s3 source requires an object store endpoint")
		}

		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize object store client: %w", err)
		}

		return &MinioExportSource{client: client, bucket: bucket, prefix: prefix}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lib.ErrFileNotFound(source)
		}
		return nil, fmt.Errorf("cannot access export source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("export source is not a directory: %s", source)
	}

	return &LocalExportSource{dir: source}, nil
}

// LoadResources reads every record of a resource type from the export
// source. Returns the decoded resources and the number of files read.
// No files or zero records is not an error; the caller treats that as
// "no data found" and skips the type.
func LoadResources(ctx context.Context, source ExportSource, resourceType string, logger *lib.Logger) ([]lib.FHIRResource, int, error) {
	files, err := source.ListFiles(ctx, resourceType)
	if err != nil {
		return nil, 0, fmt.Errorf("list export files: %w", err)
	}

	var resources []lib.FHIRResource
	mismatched := 0

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, len(files), err
		}

		reader, err := source.Open(ctx, file)
		if err != nil {
			return nil, len(files), fmt.Errorf("open %s: %w", file, err)
		}

		_, err = lib.ReadNDJSON(reader, func(resource lib.FHIRResource) error {
			if actual, typeErr := resource.GetResourceType(); typeErr == nil && actual != resourceType {
				mismatched++
			}
			resources = append(resources, resource)
			return nil
		})
		closeErr := reader.Close()
		if err != nil {
			return nil, len(files), lib.ErrInvalidFHIRFile(file, 0, err)
		}
		if closeErr != nil {
			logger.Warn("Failed to close export file", "file", file, "error", closeErr)
		}
	}

	if mismatched > 0 {
		logger.Warn("Export files contain foreign resource types",
			"resource_type", resourceType,
			"mismatched", mismatched)
	}

	logger.Debug("Export loaded",
		"resource_type", resourceType,
		"files", len(files),
		"resources", len(resources))

	return resources, len(files), nil
}

// LocalExportSource reads a bulk export from a local directory
type LocalExportSource struct {
	dir string
}

// ListFiles globs <ResourceType>*.ndjson under the export directory
func (s *LocalExportSource) ListFiles(ctx context.Context, resourceType string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, resourceType+"*.ndjson"))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, match := range matches {
		if models.MatchesResourceType(filepath.Base(match), resourceType) {
			files = append(files, match)
		}
	}
	return files, nil
}

// Open opens a local export file
func (s *LocalExportSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Describe returns the export directory
func (s *LocalExportSource) Describe() string {
	return s.dir
}

// MinioExportSource reads a bulk export from an S3-compatible bucket
type MinioExportSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// ListFiles lists objects under the prefix that belong to a resource type
func (s *MinioExportSource) ListFiles(ctx context.Context, resourceType string) ([]string, error) {
	listPrefix := s.prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	listPrefix += resourceType

	var files []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects: %w", object.Err)
		}
		if models.MatchesResourceType(path.Base(object.Key), resourceType) {
			files = append(files, object.Key)
		}
	}
	return files, nil
}

// Open streams one export object
func (s *MinioExportSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	return object, nil
}

// Describe returns the bucket URL
func (s *MinioExportSource) Describe() string {
	if s.prefix == "" {
		return fmt.Sprintf("s3://%s", s.bucket)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

// splitObjectURL parses "s3://bucket/prefix" into bucket and prefix
func splitObjectURL(source string) (string, string, error) {
	trimmed := strings.TrimPrefix(source, "s3://")
	if trimmed == "" {
		return "", "", fmt.Errorf("invalid object store URL: %s", source)
	}

	parts := strings.SplitN(trimmed, "/", 2)
	bucket := parts[0]
	if bucket == "" {
		return "", "", fmt.Errorf("invalid object store URL: %s", source)
	}

	prefix := ""
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix, nil
}
