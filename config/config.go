// Package config loads converter settings from an optional YAML file.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config holds the tunable settings of a conversion run. The zero value
// is not usable; start from Default.
type Config struct {
	// RepairDistance is the snap tolerance used while normalizing
	// geometry: vertices closer than this are merged before the ring is
	// checked for self-intersection.
	RepairDistance float64 `yaml:"repair_distance"`

	// MaxSkipRatio aborts the run when more than this fraction of
	// annotations is skipped. Zero disables the check.
	MaxSkipRatio float64 `yaml:"max_skip_ratio"`

	// Workers bounds the number of goroutines transforming annotations.
	Workers int `yaml:"workers"`

	// ClassNames optionally maps class ids to human-readable names used
	// in the analysis description.
	ClassNames map[int]string `yaml:"class_names"`
}

// Default returns the settings used when no config file is given.
// Conversion runs sequentially unless workers is raised.
func Default() Config {
	return Config{
		RepairDistance: 1e-7,
		MaxSkipRatio:   0,
		Workers:        1,
	}
}

// Load reads a YAML config file and overlays it on the defaults. Fields
// absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no run could work with.
func (c Config) Validate() error {
	if c.RepairDistance < 0 {
		return fmt.Errorf("repair_distance must not be negative, got %g", c.RepairDistance)
	}
	if c.MaxSkipRatio < 0 || c.MaxSkipRatio > 1 {
		return fmt.Errorf("max_skip_ratio must be in [0, 1], got %g", c.MaxSkipRatio)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}
