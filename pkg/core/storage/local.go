package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// LocalBackendType is the type identifier of the local filesystem backend.
const LocalBackendType = "local"

// localConnection implements Connection over a directory tree: buckets are
// subdirectories, object names are relative file paths.
type localConnection struct {
	cfg  config.StorageConfig
	name string
}

var _ Connection = (*localConnection)(nil)

func init() {
	RegisterBackend(LocalBackendType, NewLocalConnection)
}

// NewLocalConnection creates a local connection, creating its base directory
// if missing.
func NewLocalConnection(cfg config.StorageConfig, name string) (Connection, error) {
	if cfg.BaseDir == "" {
		return nil, exception.NewCoreErrorf(moduleName,
			"local storage '%s': base_dir must be configured", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, exception.NewCoreError(moduleName,
				"local storage '"+name+"': failed to create base directory", err)
		}
	case err != nil:
		return nil, exception.NewCoreError(moduleName,
			"local storage '"+name+"': failed to stat base directory", err)
	case !info.IsDir():
		return nil, exception.NewCoreErrorf(moduleName,
			"local storage '%s': '%s' is not a directory", name, cfg.BaseDir)
	}
	return &localConnection{cfg: cfg, name: name}, nil
}

func (c *localConnection) Name() string { return c.name }
func (c *localConnection) Type() string { return LocalBackendType }

func (c *localConnection) Close() error {
	logger.Debugf("Local storage connection '%s' closed", c.name)
	return nil
}

func (c *localConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return exception.NewCoreError(moduleName, "failed to create directory for '"+fullPath+"'", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to create '"+fullPath+"'", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, data); err != nil {
		return exception.NewCoreError(moduleName, "failed to write '"+fullPath+"'", err)
	}
	logger.Debugf("Uploaded object to '%s' (local storage '%s')", fullPath, c.name)
	return nil
}

func (c *localConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to open '"+fullPath+"'", err)
	}
	return file, nil
}

func (c *localConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	basePath, err := c.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	return filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		objectName, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		objectName = filepath.ToSlash(objectName)
		if prefix != "" && !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
}

func (c *localConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Attempted to delete non-existent object '%s' (local storage '%s')", fullPath, c.name)
			return nil
		}
		return exception.NewCoreError(moduleName, "failed to delete '"+fullPath+"'", err)
	}
	return nil
}

// resolvePath joins base directory, bucket and object name and refuses paths
// escaping the base directory.
func (c *localConnection) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = c.cfg.BucketName
	}
	fullPath := filepath.Join(c.cfg.BaseDir, bucket, objectName)
	absBase, err := filepath.Abs(c.cfg.BaseDir)
	if err != nil {
		return "", exception.NewCoreError(moduleName, "failed to resolve base directory", err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", exception.NewCoreError(moduleName, "failed to resolve '"+fullPath+"'", err)
	}
	if !strings.HasPrefix(absFull, absBase) {
		return "", exception.NewCoreErrorf(moduleName,
			"path '%s' escapes the storage base directory", fullPath)
	}
	return fullPath, nil
}
