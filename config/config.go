package config

import (
	"os"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// Config is the CLI's runtime configuration, loadable from a yaml file.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	BufferFrames int    `yaml:"buffer_frames"`
	LogLevel     string `yaml:"log_level"`
}

// Load reads the config file at path, falling back to defaults when the
// path is empty or the file is absent.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:      ".",
		BufferFrames: 64,
		LogLevel:     "info",
	}

	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "opening config %s", path)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}
