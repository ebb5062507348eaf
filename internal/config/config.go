// Package config provides configuration file parsing for gitpm.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up inside the config directory.
const FileName = "config.yaml"

// Dir returns the gitpm config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/gitpm if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "gitpm"), nil
}

// Config holds the settings read from config.yaml. Relative paths are
// resolved against the config directory.
type Config struct {
	PackagesDir        string        `yaml:"packages_dir"`
	DBPath             string        `yaml:"db_path"`
	SnapshotDir        string        `yaml:"snapshot_dir"`
	RegistryIndex      string        `yaml:"registry_index"`
	LinksFile          string        `yaml:"links_file"`
	EngineVersion      string        `yaml:"engine_version"`
	TickInterval       time.Duration `yaml:"tick_interval"`
	MaxDependencyDepth int           `yaml:"max_dependency_depth"`
	MetricsAddr        string        `yaml:"metrics_addr"`
	LogLevel           string        `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default(dir string) *Config {
	return &Config{
		PackagesDir:   filepath.Join(dir, "packages"),
		DBPath:        filepath.Join(dir, "gitpm.db"),
		SnapshotDir:   filepath.Join(dir, "snapshots"),
		RegistryIndex: filepath.Join(dir, "registry.yaml"),
		LinksFile:     filepath.Join(dir, "links"),
		TickInterval:  50 * time.Millisecond,
		MetricsAddr:   "127.0.0.1:9477",
		LogLevel:      "warn",
	}
}

// Load reads {dir}/config.yaml over the defaults. If the file does not exist,
// the defaults are returned without an error.
func Load(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	for _, p := range []*string{&cfg.PackagesDir, &cfg.DBPath, &cfg.SnapshotDir, &cfg.RegistryIndex, &cfg.LinksFile} {
		*p = resolve(dir, *p)
	}
	if cfg.TickInterval < 0 {
		return nil, fmt.Errorf("tick_interval must not be negative, got %s", cfg.TickInterval)
	}

	return cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(dir, path)
}

// LoadLinks reads a links file: one package reference per line. Blank lines
// and lines starting with "#" are skipped. If the file does not exist, no
// links and no error are returned.
func LoadLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// A leading "#" is a comment; "#" elsewhere selects a git ref.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		links = append(links, line)
	}

	if err := scanner.Err(); err != nil {
		return links, err
	}

	return links, nil
}
