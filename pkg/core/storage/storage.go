// Package storage abstracts the object stores the Core archives run results
// and failed task documents into, behind one interface with local-filesystem
// and Google Cloud Storage backends selected by configuration.
package storage

import (
	"context"
	"io"
	"sync"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

const moduleName = "storage"

// Connection is one named object-store connection.
type Connection interface {
	// Upload stores the stream under bucket/objectName. An empty bucket
	// falls back to the connection's configured default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens the object for reading; the caller closes it.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under the prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes one object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Close releases backend resources.
	Close() error
	// Name returns the connection's configured name.
	Name() string
	// Type returns the backend type ("local", "gcs").
	Type() string
}

// Factory builds a connection from its named configuration.
type Factory func(cfg config.StorageConfig, name string) (Connection, error)

var (
	backendRegistry = make(map[string]Factory)
	backendMutex    sync.RWMutex
)

// RegisterBackend registers a connection factory under a backend type name.
func RegisterBackend(backendType string, factory Factory) {
	backendMutex.Lock()
	defer backendMutex.Unlock()
	if _, exists := backendRegistry[backendType]; exists {
		logger.Warnf("Storage backend '%s' already registered. Overwriting.", backendType)
	}
	backendRegistry[backendType] = factory
}

// Provider hands out connections by name and caches them for reuse.
type Provider struct {
	cfg         *config.Config
	mu          sync.Mutex
	connections map[string]Connection
}

// NewProvider creates a provider over the application configuration.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]Connection),
	}
}

// GetConnection retrieves the connection with the given name, creating it on
// first use from its configuration.
func (p *Provider) GetConnection(name string) (Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	storageCfg, ok := p.cfg.Core.Storage[name]
	if !ok {
		return nil, exception.NewCoreErrorf(moduleName,
			"storage connection '%s' is not configured", name)
	}

	backendMutex.RLock()
	factory, ok := backendRegistry[storageCfg.Type]
	backendMutex.RUnlock()
	if !ok {
		return nil, exception.NewCoreError(moduleName,
			"no storage backend registered for type '"+storageCfg.Type+"'",
			exception.ErrUnregistered)
	}

	conn, err := factory(storageCfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Created storage connection '%s' (type %s)", name, storageCfg.Type)
	return conn, nil
}

// CloseAll closes every cached connection.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = exception.NewCoreError(moduleName,
				"failed to close storage connection '"+name+"'", err)
		}
		delete(p.connections, name)
	}
	return firstErr
}
