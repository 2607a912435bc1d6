// Package file loads the starorg configuration from a TOML file under the
// user's config directory, with environment variables taking precedence for
// credentials.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// ConfigFileName is the configuration file name inside the config directory.
const ConfigFileName = "config.toml"

// Environment variables that override file values. Credentials usually live
// here rather than on disk.
const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// Config is the full starorg configuration.
type Config struct {
	GitHub     GitHubConfig     `toml:"github"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Categorize CategorizeConfig `toml:"categorize"`
	Sync       SyncConfig       `toml:"sync"`

	// path is where the config was loaded from (informational).
	path string
}

// GitHubConfig holds GitHub credentials.
type GitHubConfig struct {
	Token string `toml:"token"`
}

// OpenAIConfig holds classifier service settings.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// CategorizeConfig tunes the categorization phase.
type CategorizeConfig struct {
	// MaxCategories caps the taxonomy size (default 32, the remote list
	// limit).
	MaxCategories int `toml:"max_categories"`

	// Workers bounds concurrent classification calls (default 50).
	Workers int `toml:"workers"`

	// SaveEvery checkpoints the organized mapping after this many
	// assignments (default 20).
	SaveEvery int `toml:"save_every"`
}

// SyncConfig tunes the sync phase.
type SyncConfig struct {
	// ResolveBatchSize is how many repos one aliased id query covers
	// (default 40).
	ResolveBatchSize int `toml:"resolve_batch_size"`

	// AttachBatchSize is how many repos one aliased attach mutation covers
	// (default 10).
	AttachBatchSize int `toml:"attach_batch_size"`

	// Workers bounds concurrent attach mutations (default 8).
	Workers int `toml:"workers"`

	// SaveEvery checkpoints the sync state after this many acknowledged
	// attaches (default 10).
	SaveEvery int `toml:"save_every"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Categorize: CategorizeConfig{
			MaxCategories: domain.DefaultMaxCategories,
			Workers:       50,
			SaveEvery:     20,
		},
		Sync: SyncConfig{
			ResolveBatchSize: 40,
			AttachBatchSize:  10,
			Workers:          8,
			SaveEvery:        10,
		},
	}
}

// Load reads the configuration. If configDir is empty, defaults to
// ~/.starorg. A missing file yields the defaults; environment credentials
// override file values either way.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".starorg")
	}

	cfg := Defaults()
	cfg.path = filepath.Join(configDir, ConfigFileName)

	raw, err := os.ReadFile(cfg.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No config file yet - that's fine, run on defaults.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.path, err)
		}
	}

	if token := os.Getenv(EnvGitHubToken); token != "" {
		cfg.GitHub.Token = token
	}
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		cfg.OpenAI.APIKey = key
	}

	return cfg, nil
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return c.path
}

// RequireGitHubToken returns the GitHub token or a fatal auth error.
func (c *Config) RequireGitHubToken() (string, error) {
	if c.GitHub.Token == "" {
		return "", fmt.Errorf("no GitHub token: set %s or github.token in %s: %w",
			EnvGitHubToken, c.path, domain.ErrAuthInvalid)
	}
	return c.GitHub.Token, nil
}

// RequireOpenAIKey returns the OpenAI API key or a classifier-unavailable
// error.
func (c *Config) RequireOpenAIKey() (string, error) {
	if c.OpenAI.APIKey == "" {
		return "", fmt.Errorf("no OpenAI API key: set %s or openai.api_key in %s: %w",
			EnvOpenAIKey, c.path, domain.ErrClassifierUnavailable)
	}
	return c.OpenAI.APIKey, nil
}
