package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/config"
)

func TestLoadConfigWithoutDocumentKeepsDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Core.System.Timezone)
	assert.Equal(t, "INFO", cfg.Core.System.Logging.Level)
}

func TestLoadConfigExpandsEnvironmentPlaceholders(t *testing.T) {
	t.Setenv("CORE_TEST_RUN_DIR", "/var/run/core")
	embedded := config.EmbeddedConfig(`
core:
  run:
    base_dir: "${CORE_TEST_RUN_DIR}"
    keep_workdir: true
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)
	assert.Equal(t, "/var/run/core", cfg.Core.Run.BaseDir)
	assert.True(t, cfg.Core.Run.KeepWorkdir)
	// Sections the document does not mention keep their defaults.
	assert.Equal(t, "INFO", cfg.Core.System.Logging.Level)
}

func TestLoadConfigSeedsEnvironmentFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CORE_TEST_BUCKET=results\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CORE_TEST_BUCKET") })

	embedded := config.EmbeddedConfig(`
core:
  error_archive:
    storage: "local"
    bucket: "${CORE_TEST_BUCKET}"
`)

	cfg, err := config.LoadConfig(envFile, embedded)
	require.NoError(t, err)
	assert.Equal(t, "results", cfg.Core.ErrorArchive.Bucket)
}

func TestLoadConfigRejectsMalformedDocument(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("core: [not: a: mapping"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal configuration")
}

func TestOsEnvironmentExpander(t *testing.T) {
	t.Setenv("CORE_TEST_VALUE", "filled")

	expander := config.NewOsEnvironmentExpander()
	out, err := expander.Expand([]byte("a=${CORE_TEST_VALUE} b=${CORE_TEST_UNSET_VALUE}"))
	require.NoError(t, err)
	// Unset variables expand to the empty string.
	assert.Equal(t, "a=filled b=", string(out))
}
