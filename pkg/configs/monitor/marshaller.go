package monitor

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads config from a file, and overrides it by environment variables.
//
// When filepath is empty, config is built from environment variables only.
//
// It panics when the config is misconfigured (see TrySeal).
func LoadConfig(filepath string) (*Config, error) {
	var content []byte
	if filepath != "" {
		c, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		content = c
	}
	return Unmarshal(content, os.Getenv)
}

// Unmarshal parses yaml, overrides database settings by environment variables
// (DB_HOSTNAME, DB_PORT, DB_NAME, DB_USER, DB_PASS), and seals it.
//
// getenv may be nil to ignore environment.
func Unmarshal(conf []byte, getenv func(string) string) (*Config, error) {
	m := &ConfigMarshall{}
	if err := yaml.Unmarshal(conf, m); err != nil {
		return nil, err
	}

	if getenv != nil {
		if m.Database == nil {
			m.Database = &DatabaseConfigMarshall{}
		}
		if err := m.Database.overrideByEnv(getenv); err != nil {
			return nil, err
		}
	}

	return TrySeal(m), nil
}
