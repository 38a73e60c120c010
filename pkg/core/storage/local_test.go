package storage_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/storage"
)

func localProvider(t *testing.T) *storage.Provider {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Core.Storage = map[string]config.StorageConfig{
		"results": {Type: "local", BaseDir: t.TempDir(), BucketName: "core"},
	}
	return storage.NewProvider(cfg)
}

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := localProvider(t)
	conn, err := provider.GetConnection("results")
	require.NoError(t, err)
	assert.Equal(t, "results", conn.Name())
	assert.Equal(t, storage.LocalBackendType, conn.Type())

	payload := []byte("archive bytes")
	require.NoError(t, conn.Upload(ctx, "", "runs/run-1.zip", bytes.NewReader(payload), "application/zip"))

	rc, err := conn.Download(ctx, "", "runs/run-1.zip")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, payload, got)
}

func TestLocalListObjectsFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	provider := localProvider(t)
	conn, err := provider.GetConnection("results")
	require.NoError(t, err)

	for _, name := range []string{"runs/a.zip", "runs/b.zip", "failed/c.xml"} {
		require.NoError(t, conn.Upload(ctx, "", name, bytes.NewReader([]byte("x")), ""))
	}

	var listed []string
	require.NoError(t, conn.ListObjects(ctx, "", "runs/", func(objectName string) error {
		listed = append(listed, objectName)
		return nil
	}))
	sort.Strings(listed)
	assert.Equal(t, []string{"runs/a.zip", "runs/b.zip"}, listed)
}

func TestLocalDeleteObject(t *testing.T) {
	ctx := context.Background()
	provider := localProvider(t)
	conn, err := provider.GetConnection("results")
	require.NoError(t, err)

	require.NoError(t, conn.Upload(ctx, "", "obsolete.zip", bytes.NewReader([]byte("x")), ""))
	require.NoError(t, conn.DeleteObject(ctx, "", "obsolete.zip"))
	_, err = conn.Download(ctx, "", "obsolete.zip")
	assert.Error(t, err)

	// Deleting a missing object is not an error.
	assert.NoError(t, conn.DeleteObject(ctx, "", "obsolete.zip"))
}

func TestLocalRefusesPathEscapingBaseDir(t *testing.T) {
	ctx := context.Background()
	provider := localProvider(t)
	conn, err := provider.GetConnection("results")
	require.NoError(t, err)

	err = conn.Upload(ctx, "", "../../etc/passwd", bytes.NewReader([]byte("x")), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the storage base directory")
}

func TestProviderCachesAndReportsUnknownConnections(t *testing.T) {
	provider := localProvider(t)

	first, err := provider.GetConnection("results")
	require.NoError(t, err)
	second, err := provider.GetConnection("results")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = provider.GetConnection("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage connection 'nope' is not configured")

	assert.NoError(t, provider.CloseAll())
}
