package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// MinioDataset writes part files to an S3-compatible object store.
// Object puts are atomic on the server side, so no temp-and-rename
// dance is needed here; transient upload failures are retried.
type MinioDataset struct {
	client *minio.Client
	bucket string
	prefix string
	retry  lib.RetryConfig
	logger *lib.Logger
}

// NewMinioDataset initializes the object store client from config
func NewMinioDataset(cfg models.DatasetConfig, retry models.RetryConfig, logger *lib.Logger) (*MinioDataset, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize object store client: %w", err)
	}

	return &MinioDataset{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Root, "/"),
		retry:  lib.NewRetryConfigFromModel(retry),
		logger: logger,
	}, nil
}

// WritePart uploads one part object under the configured bucket/prefix
func (d *MinioDataset) WritePart(ctx context.Context, relPath string, data []byte) error {
	key := d.objectKey(relPath)

	upload := func() error {
		_, err := d.client.PutObject(ctx, d.bucket, key,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/x-ndjson"})
		return err
	}

	err := lib.ExecuteWithRetryContext(ctx, upload, d.retry, func(err error) bool {
		return lib.IsNetworkError(err)
	})
	if err != nil {
		return lib.ErrDatasetWriteFailed(fmt.Sprintf("s3://%s/%s", d.bucket, key), err)
	}

	d.logger.Debug("Part object uploaded", "bucket", d.bucket, "key", key, "bytes", len(data))
	return nil
}

// Location returns the s3 URL registered for a resource type
func (d *MinioDataset) Location(resourceType string) string {
	key := d.objectKey(strings.ToLower(resourceType))
	return fmt.Sprintf("s3://%s/%s/", d.bucket, key)
}

// Close is a no-op; the minio client holds no persistent connection
func (d *MinioDataset) Close() error {
	return nil
}

func (d *MinioDataset) objectKey(relPath string) string {
	relPath = strings.TrimPrefix(relPath, "/")
	if d.prefix == "" {
		return relPath
	}
	return path.Join(d.prefix, relPath)
}
