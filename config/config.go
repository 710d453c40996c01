package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"norsetinge-images/common"
	"norsetinge-images/dither"
)

// Config represents the application configuration
type Config struct {
	Images ImagesConfig `yaml:"images"`
	Watch  WatchConfig  `yaml:"watch"`
}

type ImagesConfig struct {
	ConversionMode string       `yaml:"conversion_mode"`
	SaveFormat     string       `yaml:"save_format"`
	MaxImageWidth  int          `yaml:"max_image_width"`
	SourceDirs     []string     `yaml:"source_dirs"`
	Dither         DitherConfig `yaml:"dither"`
}

type DitherConfig struct {
	Algorithm  string `yaml:"algorithm"`
	Threshold  int    `yaml:"threshold"`
	Serpentine bool   `yaml:"serpentine"`
}

type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Default returns a configuration with every optional field filled in
func Default() Config {
	return Config{
		Images: ImagesConfig{
			ConversionMode: "color",
			SaveFormat:     "png",
			Dither: DitherConfig{
				Algorithm: "floyd-steinberg",
				Threshold: 128,
			},
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the image settings describe a usable pipeline
func (c *Config) Validate() error {
	if c.Images.MaxImageWidth <= 0 {
		return fmt.Errorf("images.max_image_width must be positive")
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}
	if _, err := c.Options(); err != nil {
		return err
	}
	return nil
}

// Options turns the image settings into pipeline options
func (c *Config) Options() (common.Options, error) {
	mode, err := common.ParseConversionMode(c.Images.ConversionMode)
	if err != nil {
		return common.Options{}, fmt.Errorf("images.conversion_mode: %w", err)
	}

	format, err := common.ParseSaveFormat(c.Images.SaveFormat)
	if err != nil {
		return common.Options{}, fmt.Errorf("images.save_format: %w", err)
	}

	alg, err := dither.ByName(c.Images.Dither.Algorithm, c.Images.Dither.Serpentine)
	if err != nil {
		return common.Options{}, fmt.Errorf("images.dither.algorithm: %w", err)
	}

	opts := common.Options{
		Mode:      mode,
		Format:    format,
		Algorithm: alg,
		Threshold: c.Images.Dither.Threshold,
		MaxWidth:  c.Images.MaxImageWidth,
	}
	if err := opts.Validate(); err != nil {
		return common.Options{}, err
	}
	return opts, nil
}

// Debounce returns how long the watcher waits for a file to settle
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
