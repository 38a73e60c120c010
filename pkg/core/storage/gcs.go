package storage

import (
	"context"
	"errors"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// GCSBackendType is the type identifier of the Google Cloud Storage backend.
const GCSBackendType = "gcs"

// gcsConnection implements Connection over a GCS client.
type gcsConnection struct {
	cfg    config.StorageConfig
	name   string
	client *gcstorage.Client
}

var _ Connection = (*gcsConnection)(nil)

func init() {
	RegisterBackend(GCSBackendType, NewGCSConnection)
}

// NewGCSConnection creates a GCS connection. With no credentials file
// configured the client uses ambient application-default credentials.
func NewGCSConnection(cfg config.StorageConfig, name string) (Connection, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcstorage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, exception.NewCoreError(moduleName,
			"gcs storage '"+name+"': failed to create client", err)
	}
	return &gcsConnection{cfg: cfg, name: name, client: client}, nil
}

func (c *gcsConnection) Name() string { return c.name }
func (c *gcsConnection) Type() string { return GCSBackendType }

func (c *gcsConnection) Close() error {
	return c.client.Close()
}

func (c *gcsConnection) bucketName(bucket string) string {
	if bucket != "" {
		return bucket
	}
	return c.cfg.BucketName
}

func (c *gcsConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := c.client.Bucket(c.bucketName(bucket)).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return exception.NewCoreError(moduleName, "failed to upload '"+objectName+"'", err)
	}
	if err := w.Close(); err != nil {
		return exception.NewCoreError(moduleName, "failed to finalize upload of '"+objectName+"'", err)
	}
	logger.Debugf("Uploaded object '%s' to bucket '%s' (gcs storage '%s')",
		objectName, c.bucketName(bucket), c.name)
	return nil
}

func (c *gcsConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(c.bucketName(bucket)).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to open object '"+objectName+"'", err)
	}
	return r, nil
}

func (c *gcsConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	it := c.client.Bucket(c.bucketName(bucket)).Objects(ctx, &gcstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return exception.NewCoreError(moduleName, "failed listing objects", err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

func (c *gcsConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := c.client.Bucket(c.bucketName(bucket)).Object(objectName).Delete(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		logger.Warnf("Attempted to delete non-existent object '%s' (gcs storage '%s')", objectName, c.name)
		return nil
	}
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to delete object '"+objectName+"'", err)
	}
	return nil
}
