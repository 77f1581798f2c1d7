package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the clusterlib-cli YAML config file: a single-node
// reference Repository plus the application/group/node tree to
// materialize against it on startup.
type Config struct {
	NodeID   string `yaml:"nodeId"`
	BindAddr string `yaml:"bindAddr"`
	DataDir  string `yaml:"dataDir"`

	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJson"`

	Applications []AppConfig       `yaml:"applications"`
	HealthCheck  HealthCheckConfig `yaml:"healthCheck"`
}

// AppConfig describes one Application and the Groups under it to
// create at startup.
type AppConfig struct {
	Name   string        `yaml:"name"`
	Groups []GroupConfig `yaml:"groups"`
}

// GroupConfig describes one Group and the bare Node names to create
// under it.
type GroupConfig struct {
	Name  string   `yaml:"name"`
	Nodes []string `yaml:"nodes"`
}

// HealthCheckConfig tunes the Server health-check loop started for
// every Node named in the config.
type HealthCheckConfig struct {
	HealthyIntervalMs   int `yaml:"healthyIntervalMs"`
	UnhealthyIntervalMs int `yaml:"unhealthyIntervalMs"`
}

func defaultConfig() *Config {
	return &Config{
		NodeID:   "clusterlib-1",
		BindAddr: "127.0.0.1:7950",
		DataDir:  "./clusterlib-data",
		LogLevel: "info",
		HealthCheck: HealthCheckConfig{
			HealthyIntervalMs:   2000,
			UnhealthyIntervalMs: 500,
		},
	}
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
