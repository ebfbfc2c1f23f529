package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from layered sources. Priority, lowest to
// highest: in-code defaults, base.yaml, <environment>.yaml, local.yaml
// (development only), environment variables.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
}

// NewLoader creates a loader rooted at basePath. An empty basePath
// defaults to "config".
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	return &Loader{basePath: basePath, environment: env}
}

// Load builds the final configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := Default(l.environment)
	l.sources = []string{"defaults"}

	if err := l.loadFile("base", cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load local config: %w", err)
		}
	}

	cfg.applyEnv()
	l.sources = append(l.sources, "environment")
	cfg.LoadedFrom = l.sources

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.basePath, name+"."+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// Load loads configuration using the environment from APP_ENV and the
// config directory from CONFIG_DIR.
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_DIR"), getEnvironment()).Load()
}

// MustLoad loads configuration and panics on error. Use only in main.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
