package root

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/contextengine"
	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/fileops"
	"github.com/docker/cv-index/internal/graphstore"
	"github.com/docker/cv-index/internal/llm"
	"github.com/docker/cv-index/internal/orchestrator"
	"github.com/docker/cv-index/internal/session"
	"github.com/docker/cv-index/internal/userconfig"
	"github.com/docker/cv-index/internal/vcs"
	"github.com/docker/cv-index/internal/vectorstore"
)

// openRepo opens the git repository rooted at --repo, resolves its config
// (CV_GRAPH_URL/CV_CHAT_PROVIDER/etc env overrides and credential-based chat
// provider fallback, per config.Resolve), and layers in user-level defaults
// (internal/userconfig) for any model field still unset afterward. A
// non-git directory is not an error (spec.md §6's Git collaborator degrades
// gracefully).
func openRepo() (*vcs.Repo, *config.Config, error) {
	repo, err := vcs.Open(repoRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("open repo: %w", err)
	}
	cfg, err := config.Resolve(repo.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	applyUserDefaults(cfg)
	rememberRepo(repo.Root)

	return repo, cfg, nil
}

// applyUserDefaults fills in model fields the repo config left blank from
// ~/.config/cv/config.yaml, so a user who always uses one provider doesn't
// have to repeat it in every repo's .cv/config.json.
func applyUserDefaults(cfg *config.Config) {
	uc, err := userconfig.Load()
	if err != nil {
		slog.Warn("user config unreadable, ignoring", "error", err)
		return
	}
	settings := uc.GetSettings()
	if cfg.Model.ChatProvider == "" {
		cfg.Model.ChatProvider = settings.DefaultChatProvider
	}
	if cfg.Model.ChatModel == "" {
		cfg.Model.ChatModel = settings.DefaultChatModel
	}
	if cfg.Model.EmbeddingProvider == "" {
		cfg.Model.EmbeddingProvider = settings.DefaultEmbeddingProvider
	}
}

// rememberRepo records repoRoot in the user's recent-repos list, best
// effort: a failure here never blocks the command it was called from.
func rememberRepo(repoRoot string) {
	uc, err := userconfig.Load()
	if err != nil {
		return
	}
	uc.AddRecentRepo(repoRoot)
	if err := uc.Save(); err != nil {
		slog.Warn("failed to save user config", "error", err)
	}
}

// connectGraph dials Neo4j, degrading to nil (logged, not fatal) on
// failure per spec.md §7's degraded-continue policy.
func connectGraph(ctx context.Context, cfg *config.Config, repoPath string) graphstore.Store {
	store, err := graphstore.New(ctx, cfg.Graph.URL, os.Getenv("CV_NEO4J_USER"), os.Getenv("CV_NEO4J_PASSWORD"), repoPath)
	if err != nil {
		slog.Warn("graph store unavailable, continuing without it", "error", err)
		return nil
	}
	return store
}

// connectVectors dials Qdrant, degrading to nil (logged, not fatal) on
// failure or a malformed URL.
func connectVectors(ctx context.Context, cfg *config.Config) *vectorstore.Store {
	host, port, err := splitHostPort(cfg.Vector.URL)
	if err != nil {
		slog.Warn("invalid vector store url, continuing without it", "error", err)
		return nil
	}

	embedder := llm.NewEmbedder(os.Getenv("CV_OPENAI_API_KEY"), cfg.Model.EmbeddingModel)
	opts := vectorstore.Options{
		BatchSize: cfg.Vector.BatchSize,
		Collections: map[string]string{
			"code":      cfg.Vector.CodeCollection,
			"docstring": cfg.Vector.DocCollection,
			"prd":       cfg.Vector.PRDCollection,
		},
	}
	store, err := vectorstore.New(ctx, host, port, embedder, opts)
	if err != nil {
		slog.Warn("vector store unavailable, continuing without it", "error", err)
		return nil
	}
	return store
}

func splitHostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, fmt.Errorf("missing or invalid port in %q", rawURL)
	}
	return u.Hostname(), port, nil
}

// openFTS opens the local keyword-search fallback, degrading to nil
// (logged, not fatal) on failure.
func openFTS(cvDir string) *contextengine.FTSIndex {
	idx, err := contextengine.OpenFTSIndex(filepath.Join(cvDir, "fts.db"))
	if err != nil {
		slog.Warn("fts index unavailable, continuing without it", "error", err)
		return nil
	}
	return idx
}

func buildContextEngine(repo *vcs.Repo, graph graphstore.Store, vectors *vectorstore.Store, fts *contextengine.FTSIndex, cfg *config.Config) *contextengine.Engine {
	opts := contextengine.Options{
		TokenLimit:       cfg.Context.TokenLimit,
		MaxChunks:        cfg.Context.MaxChunks,
		MaxDepth:         cfg.Context.MaxDepth,
		MinScore:         cfg.Context.MinScore,
		MaxGraphResults:  cfg.Context.MaxGraphResults,
		LocalizationSlop: cfg.Context.LocalizationSlop,
	}
	return contextengine.New(graph, vectors, fts, repo, opts, slog.Default())
}

func buildOrchestrator(repo *vcs.Repo, cfg *config.Config, sessions session.Store, ctxEngine *contextengine.Engine) (*orchestrator.Orchestrator, error) {
	chat, err := llm.New(llm.Config{
		Type:   cfg.Model.ChatProvider,
		Model:  cfg.Model.ChatModel,
		APIKey: chatAPIKey(cfg.Model.ChatProvider),
	})
	if err != nil {
		return nil, fmt.Errorf("build chat provider: %w", err)
	}
	ops := fileops.New(repo.Root, config.Dir(repo.Root))
	return orchestrator.New(sessions, ctxEngine, ops, chat), nil
}

// resumeOrStart resumes an existing session by ID, or starts a new one
// against repoRoot's current branch/HEAD when id is empty.
func resumeOrStart(ctx context.Context, orch *orchestrator.Orchestrator, sessions session.Store, id, root string) (domain.CodeSession, error) {
	if id != "" {
		return sessions.Resume(ctx, id)
	}

	repo, err := vcs.Open(root)
	if err != nil {
		return domain.CodeSession{}, fmt.Errorf("open repo: %w", err)
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		branch = ""
	}
	commit, err := repo.HeadCommit()
	if err != nil {
		commit = ""
	}
	return orch.StartSession(ctx, branch, commit)
}

func chatAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
