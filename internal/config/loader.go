package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix is stripped from environment variables before mapping them
	// onto config keys.
	envPrefix = "BRANCHFLOW_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load builds the configuration with layered precedence:
// environment variables override the YAML file, which overrides defaults.
//
// configPath names the YAML file; empty means ".branchflow.yaml" in the
// current directory, silently skipped when absent. An explicitly given path
// must exist.
//
// Environment variables map onto config keys by stripping the BRANCHFLOW_
// prefix, lowercasing, and turning double underscores into dots:
//
//	BRANCHFLOW_HOSTING__PROVIDER       -> hosting.provider
//	BRANCHFLOW_HOSTING__GITHUB__TOKEN  -> hosting.github.token
//	BRANCHFLOW_GATES__COVERAGE__THRESHOLD -> gates.coverage.threshold
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if !explicit {
		configPath = ".branchflow.yaml"
	}

	raw, err := readConfigFile(configPath)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}
	if raw != nil {
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	err = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// readConfigFile reads the file with a size cap so a runaway file cannot
// exhaust memory.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", filepath.Base(path), maxConfigFileSize)
	}
	return os.ReadFile(path)
}
