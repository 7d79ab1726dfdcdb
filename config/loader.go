package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig overrides the config file path.
	EnvConfig = "RPCSTACK_CONFIG"
	// EnvURL overrides transport.url.
	EnvURL = "RPCSTACK_URL"
)

// Load reads configuration in this order:
//  1. Built-in defaults
//  2. YAML file (RPCSTACK_CONFIG env, then the explicit path)
//  3. Environment overrides
//  4. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		configPath = envPath
	}
	if configPath != "" {
		if err := loadYAMLFile(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Parse decodes YAML on top of the defaults and validates it. Environment
// overrides are not applied.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.Transport.URL = v
		cfg.Transport.Endpoints = nil
		cfg.Transport.Registry = nil
		cfg.Transport.Mock = nil
	}
}
