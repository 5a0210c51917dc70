package config

import (
	"os"
	"path/filepath"

	"code.meridianprotocol.io/meridian/execution"
	"code.meridianprotocol.io/meridian/logging"

	"github.com/BurntSushi/toml"
)

// Config ties together all other application configuration types.
type Config struct {
	Execution execution.Config `group:"Execution" namespace:"execution"`
	Logging   logging.Config   `group:"Logging" namespace:"logging"`
}

// NewDefaultConfig returns a set of defaults for every package, as specified
// at the per package config level.
func NewDefaultConfig() Config {
	return Config{
		Execution: execution.NewDefaultConfig(),
		Logging:   logging.NewDefaultConfig(),
	}
}

// Read loads the configuration file from the given root path.
func Read(rootPath string) (*Config, error) {
	buf, err := os.ReadFile(filepath.Join(rootPath, configFileName))
	if err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(buf), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration file under the given root path.
func (c Config) Save(rootPath string) error {
	f, err := os.Create(filepath.Join(rootPath, configFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
