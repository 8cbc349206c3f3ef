package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/contextengine"
	"github.com/docker/cv-index/internal/domain"
)

func newContextCmd() *cobra.Command {
	var explicitFiles []string

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Build and print a context snapshot for a query",
		Long:  "context runs the Context Engine's retrieve-then-fuse pipeline against the indexed repository and prints the resulting token-bounded snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := args[0]

			repo, cfg, err := openRepo()
			if err != nil {
				return err
			}

			graph := connectGraph(ctx, cfg, repo.Root)
			if graph != nil {
				defer graph.Close(ctx)
			}
			vectors := connectVectors(ctx, cfg)
			if vectors != nil {
				defer vectors.Close()
			}
			fts := openFTS(config.Dir(repo.Root))
			if fts != nil {
				defer fts.Close()
			}

			engine := buildContextEngine(repo, graph, vectors, fts, cfg)

			ac := domain.ActiveContext{ExplicitFiles: explicitFiles, TokenLimit: cfg.Context.TokenLimit}
			snapshot, err := engine.Build(ctx, query, ac)
			if err != nil {
				return fmt.Errorf("context: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), contextengine.Render(snapshot))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&explicitFiles, "file", nil, "Explicit file to always include (repeatable)")
	return cmd
}
