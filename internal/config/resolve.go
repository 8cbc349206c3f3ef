package config

import (
	"os"
	"strconv"
)

// envOverrides are applied after Load, following the teacher's auto.go
// environment-probing pattern (pkg/config/auto.go's cloudProviders list):
// each of CV_GRAPH_URL/CV_VECTOR_URL/etc that is set to a non-empty value
// replaces its own field's value loaded from .cv/config.json, letting CI
// and local dev point a repo
// at a different graph/vector instance without editing the checked-in file.
var envOverrides = []struct {
	key   string
	apply func(cfg *Config, val string)
}{
	{"CV_GRAPH_URL", func(cfg *Config, val string) { cfg.Graph.URL = val }},
	{"CV_GRAPH_DATABASE", func(cfg *Config, val string) { cfg.Graph.Database = val }},
	{"CV_VECTOR_URL", func(cfg *Config, val string) { cfg.Vector.URL = val }},
	{"CV_CHAT_PROVIDER", func(cfg *Config, val string) { cfg.Model.ChatProvider = val }},
	{"CV_CHAT_MODEL", func(cfg *Config, val string) { cfg.Model.ChatModel = val }},
	{"CV_EMBEDDING_PROVIDER", func(cfg *Config, val string) { cfg.Model.EmbeddingProvider = val }},
	{"CV_EMBEDDING_MODEL", func(cfg *Config, val string) { cfg.Model.EmbeddingModel = val }},
	{"CV_TOKEN_LIMIT", func(cfg *Config, val string) {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Context.TokenLimit = n
		}
	}},
}

// ApplyEnv overlays environment variable overrides onto cfg in place, and
// returns cfg for chaining. It never fails: a malformed numeric override is
// silently ignored rather than aborting the whole resolution chain, matching
// the teacher's preference for graceful provider-detection fallback over a
// hard configuration error.
func ApplyEnv(cfg *Config) *Config {
	for _, o := range envOverrides {
		if val, ok := os.LookupEnv(o.key); ok && val != "" {
			o.apply(cfg, val)
		}
	}
	return cfg
}

// AvailableChatProviders reports, in priority order, which chat providers
// have credentials present in the environment. Mirrors pkg/config/auto.go's
// cloudProviders probing, scoped to the two providers cv's Provider
// abstraction supports.
func AvailableChatProviders() []string {
	var providers []string
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		providers = append(providers, "anthropic")
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		providers = append(providers, "openai")
	}
	return providers
}

// Resolve loads the repo config, applies environment overrides, and if the
// configured chat provider has no credentials in the environment, falls back
// to the first available one. It returns an error only when Load fails (an
// unreadable or malformed .cv/config.json): an unconfigured provider is
// discovered at call time by the orchestrator when it tries to build a
// client, not here.
func Resolve(repoRoot string) (*Config, error) {
	cfg, err := Load(repoRoot)
	if err != nil {
		return nil, err
	}

	cfg = ApplyEnv(cfg)

	if !hasCredentials(cfg.Model.ChatProvider) {
		if available := AvailableChatProviders(); len(available) > 0 {
			cfg.Model.ChatProvider = available[0]
		}
	}

	return cfg, nil
}

func hasCredentials(provider string) bool {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY") != ""
	case "openai":
		return os.Getenv("OPENAI_API_KEY") != ""
	default:
		return false
	}
}
