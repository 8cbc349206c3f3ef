// Package userconfig provides user-level configuration for cv.
// This configuration is stored in ~/.config/cv/config.yaml and holds
// preferences that apply across every repository cv is pointed at, as
// opposed to internal/config's per-repo .cv/config.json.
package userconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
)

// CurrentVersion is the current version of the user config format.
const CurrentVersion = "v1"

// Settings holds global preferences applied when a repo's .cv/config.json
// doesn't specify a value.
type Settings struct {
	// DefaultChatProvider is used when a repo config omits model.chatProvider.
	DefaultChatProvider string `yaml:"default_chat_provider,omitempty"`
	// DefaultChatModel is used when a repo config omits model.chatModel.
	DefaultChatModel string `yaml:"default_chat_model,omitempty"`
	// DefaultEmbeddingProvider is used when a repo config omits model.embeddingProvider.
	DefaultEmbeddingProvider string `yaml:"default_embedding_provider,omitempty"`
}

// Config represents the user-level cv configuration.
type Config struct {
	// mu protects concurrent access to RecentRepos; Config may be read and
	// written from parallel tests or goroutines.
	mu sync.Mutex

	Version     string    `yaml:"version,omitempty"`
	Settings    *Settings `yaml:"settings,omitempty"`
	RecentRepos []string  `yaml:"recent_repos,omitempty"`
}

// GetConfigDir returns the user's config directory for cv. Falls back to the
// temp directory if the home directory cannot be determined.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cv-config")
	}
	return filepath.Join(homeDir, ".config", "cv")
}

// Path returns the path to the user-level config file.
func Path() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads the user configuration from Path(), returning an empty
// (non-nil) Config if the file does not yet exist.
func Load() (*Config, error) {
	return readConfig(Path())
}

func readConfig(path string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("read user config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse user config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the configuration to Path() atomically.
func (c *Config) Save() error {
	return c.saveTo(Path())
}

func (c *Config) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create user config dir: %w", err)
	}

	c.Version = CurrentVersion

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal user config: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// GetSettings returns the global settings, or an empty Settings if unset.
func (c *Config) GetSettings() *Settings {
	if c.Settings == nil {
		return &Settings{}
	}
	return c.Settings
}

// AddRecentRepo records repoRoot as the most recently synced repository,
// deduplicating and capping the list at 10 entries, most-recent first.
func (c *Config) AddRecentRepo(repoRoot string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := make([]string, 0, len(c.RecentRepos)+1)
	filtered = append(filtered, repoRoot)
	for _, r := range c.RecentRepos {
		if r != repoRoot {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > 10 {
		filtered = filtered[:10]
	}
	c.RecentRepos = filtered
}
