package rankwalk

import (
	"github.com/hazyhaar/rankwalk/internal/config"
)

// FileConfig is the top-level rankwalk configuration. Re-exported from
// internal.
type FileConfig = config.Config

// ConfigError lists every problem a configuration document has.
type ConfigError = config.ConfigError

// LoadConfigFile reads and validates a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// ParseConfig parses and validates a YAML configuration document.
func ParseConfig(data []byte) (*FileConfig, error) {
	return config.Parse(data)
}
