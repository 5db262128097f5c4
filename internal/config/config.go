// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DataDir       string `yaml:"data_dir"`
	TilesheetPath string `yaml:"tilesheet_path"`
	CachePath     string `yaml:"cache_path"`

	Workers    int `yaml:"workers"`
	MaxPending int `yaml:"max_pending"`
}

// Defaults fills the zero fields callers usually leave out.
func (c *Config) Defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 8
	}
}

func Load(path string) (Config, error) {
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config.yaml: %w", err)
	}
	c.Defaults()
	return c, nil
}
