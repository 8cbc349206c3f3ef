// Package config loads and resolves cv's repository configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the repo-relative .cv directory for the given repo root.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, ".cv")
}

// Path returns the path to .cv/config.json for the given repo root.
func Path(repoRoot string) string {
	return filepath.Join(Dir(repoRoot), "config.json")
}

// GraphConfig describes how to reach the graph store collaborator.
type GraphConfig struct {
	URL      string `json:"url"`
	Database string `json:"database"`
}

// VectorConfig describes how to reach the vector store collaborator.
type VectorConfig struct {
	URL              string `json:"url"`
	CodeCollection   string `json:"codeCollection"`
	DocCollection    string `json:"docCollection"`
	PRDCollection    string `json:"prdCollection"`
	EmbeddingDim     int    `json:"embeddingDim"`
	BatchSize        int    `json:"batchSize"`
	SimilarityMetric string `json:"similarityMetric"`
}

// SyncConfig controls what the sync engine does and does not index.
type SyncConfig struct {
	ExcludePatterns  []string `json:"excludePatterns"`
	IncludeLanguages []string `json:"includeLanguages,omitempty"`
	ParseWorkers     int      `json:"parseWorkers"`
	EmbedWorkers     int      `json:"embedWorkers"`
}

// ContextConfig bounds what the Context Engine may return.
type ContextConfig struct {
	TokenLimit       int     `json:"tokenLimit"`
	MaxChunks        int     `json:"maxChunks"`
	MaxDepth         int     `json:"maxDepth"`
	MinScore         float64 `json:"minScore"`
	MaxGraphResults  int     `json:"maxGraphResults"`
	LocalizationSlop float64 `json:"localizationSlop"` // fraction of tokenLimit usable after localization (0.9 default)
}

// Config is the root of .cv/config.json.
type Config struct {
	Graph   GraphConfig   `json:"graph"`
	Vector  VectorConfig  `json:"vector"`
	Sync    SyncConfig    `json:"sync"`
	Context ContextConfig `json:"context"`
	Model   ModelConfig   `json:"model"`
}

// ModelConfig selects the chat/embedding provider.
type ModelConfig struct {
	ChatProvider      string `json:"chatProvider"` // "anthropic" | "openai"
	ChatModel         string `json:"chatModel"`
	EmbeddingProvider string `json:"embeddingProvider"`
	EmbeddingModel    string `json:"embeddingModel"`
}

// Default returns the configuration used when .cv/config.json does not yet
// exist, mirroring the teacher's layered-default pattern
// (pkg/config/resolve.go): every field has a sane zero-config value so a
// fresh repo can run `cv sync` without hand-writing JSON first.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URL:      "bolt://localhost:7687",
			Database: "cv",
		},
		Vector: VectorConfig{
			URL:              "http://localhost:6334",
			CodeCollection:   "code_chunks",
			DocCollection:    "docstrings",
			PRDCollection:    "prd_chunks",
			EmbeddingDim:     1536,
			BatchSize:        32,
			SimilarityMetric: "cosine",
		},
		Sync: SyncConfig{
			ExcludePatterns: []string{
				"**/.git/**", "**/node_modules/**", "**/vendor/**",
				"**/dist/**", "**/build/**", "**/.cv/**",
			},
			ParseWorkers: 0, // 0 means "number of logical CPUs", resolved at call site
			EmbedWorkers: 4,
		},
		Context: ContextConfig{
			TokenLimit:       8000,
			MaxChunks:        10,
			MaxDepth:         2,
			MinScore:         0.5,
			MaxGraphResults:  5,
			LocalizationSlop: 0.9,
		},
		Model: ModelConfig{
			ChatProvider:      "anthropic",
			ChatModel:         "claude-sonnet-4-5",
			EmbeddingProvider: "openai",
			EmbeddingModel:    "text-embedding-3-small",
		},
	}
}

// Load reads .cv/config.json for repoRoot, falling back to Default() if the
// file does not exist (ConfigMissing is only fatal when the caller requires
// a store URL that remains empty after this fallback — see internal/errs).
func Load(repoRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", Path(repoRoot), err)
	}

	return cfg, nil
}

// Save writes cfg to .cv/config.json, creating the .cv directory if needed.
func Save(repoRoot string, cfg *Config) error {
	if err := os.MkdirAll(Dir(repoRoot), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(Path(repoRoot), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
