// Package config loads and holds the application configuration of the Core:
// logging, run workspace, metrics/tracing endpoints and named storage
// connections. Configuration comes from an embedded YAML document with
// environment-variable placeholders, optionally seeded from a .env file.
package config

// EmbeddedConfig holds the raw bytes of the configuration document, typically
// embedded into the binary and passed from main.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig controls isolated task runs.
type RunConfig struct {
	// BaseDir is where per-run private working directories are created.
	// Empty means the system temporary directory.
	BaseDir string `yaml:"base_dir"`
	// KeepWorkdir disables working-directory cleanup, for debugging runs.
	KeepWorkdir bool `yaml:"keep_workdir"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address of the metrics HTTP endpoint (e.g., ":9090").
	Addr string `yaml:"addr"`
}

// TracingConfig controls OTLP trace and metric export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`
	// Protocol selects the OTLP transport: "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// ServiceName overrides the reported service name.
	ServiceName string `yaml:"service_name"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`
}

// StorageConfig describes one named storage connection.
type StorageConfig struct {
	// Type selects the registered storage backend: "local" or "gcs".
	Type string `yaml:"type"`
	// BaseDir is the root directory of a local backend.
	BaseDir string `yaml:"base_dir"`
	// BucketName is the default bucket of the backend.
	BucketName string `yaml:"bucket_name"`
	// CredentialsFile is the service-account key file of a gcs backend;
	// empty means ambient credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// ErrorArchiveConfig selects where failed task documents are archived.
type ErrorArchiveConfig struct {
	// Storage is the name of the storage connection to archive into; empty
	// disables archiving.
	Storage string `yaml:"storage"`
	// Bucket overrides the connection's default bucket.
	Bucket string `yaml:"bucket"`
	// Prefix is prepended to archived object names.
	Prefix string `yaml:"prefix"`
}

// CoreConfig holds all configuration under the "core" top-level key.
type CoreConfig struct {
	System       SystemConfig             `yaml:"system"`
	Run          RunConfig                `yaml:"run"`
	Metrics      MetricsConfig            `yaml:"metrics"`
	Tracing      TracingConfig            `yaml:"tracing"`
	Storage      map[string]StorageConfig `yaml:"storage"`
	ErrorArchive ErrorArchiveConfig       `yaml:"error_archive"`
}

// Config is the root structure of the application configuration.
type Config struct {
	Core CoreConfig `yaml:"core"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Core: CoreConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Metrics: MetricsConfig{Addr: ":9090"},
			Tracing: TracingConfig{
				Protocol:    "grpc",
				ServiceName: "climatecore",
			},
		},
	}
}
