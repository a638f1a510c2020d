package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/shellsage/shellsage/errors"
	"gopkg.in/yaml.v3"
)

// CommandPolicy controls what extracted commands may be executed without a
// confirmation prompt. Patterns are doublestar globs matched against the
// command line. Deny wins over allow.
type CommandPolicy struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

type Search struct {
	Enabled   bool `yaml:"enabled"`
	MaxRounds int  `yaml:"max_rounds"`
}

type Config struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Effort        string        `yaml:"effort"`
	Mode          string        `yaml:"mode"`
	Search        Search        `yaml:"search"`
	ModelCacheTTL int           `yaml:"model_cache_ttl"` // seconds
	Commands      CommandPolicy `yaml:"commands"`
}

const (
	defaultMaxRounds = 3
	defaultCacheTTL  = 300 * time.Second
)

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".shellsage", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.WrapKind(err, errors.KindConfiguration, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".shellsage", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.WrapKind(err, errors.KindConfiguration, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.Effort == "" {
		c.Effort = "medium"
	}
	if c.Mode == "" {
		c.Mode = "prompt"
	}
	if c.Search.MaxRounds <= 0 {
		c.Search.MaxRounds = defaultMaxRounds
	}
}

// CacheTTL returns the model-list cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	if c.ModelCacheTTL <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(c.ModelCacheTTL) * time.Second
}
