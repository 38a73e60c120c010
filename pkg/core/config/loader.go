package config

import (
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

const moduleName = "config"

// LoadConfig loads the application configuration. The .env file (when
// present) seeds the process environment first, then placeholders in the
// embedded YAML are expanded and the result is unmarshalled over the
// defaults. This function is expected to be called once during startup.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()
	if len(embedded) == 0 {
		return cfg, nil
	}

	expanded, err := NewOsEnvironmentExpander().Expand(embedded)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to expand configuration placeholders", err)
	}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to unmarshal configuration", err)
	}

	logger.SetLogLevel(cfg.Core.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Core.System.Logging.Level)
	return cfg, nil
}
