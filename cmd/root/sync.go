package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/parser"
	"github.com/docker/cv-index/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var full bool
	var clearAll bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index the repository into the graph and vector stores",
		Long:  "sync walks the repository (or, incrementally, the commits since the last sync) and writes files, symbols, edges, and chunks into the graph and vector stores. --watch keeps it running, re-syncing incrementally as files change.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			engine := syncengine.New(repo, parser.NewDefaultRegistry(), graph, vectors, fts, config.Dir(repo.Root), syncengine.Options{
				ParseWorkers:     cfg.Sync.ParseWorkers,
				EmbedWorkers:     cfg.Sync.EmbedWorkers,
				ExcludePatterns:  cfg.Sync.ExcludePatterns,
				IncludeLanguages: cfg.Sync.IncludeLanguages,
				ClearAll:         clearAll,
			}, nil)

			out := cmd.OutOrStdout()
			report := func(start time.Time, result syncengine.Result, err error) error {
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				fmt.Fprintf(out, "synced %d files, %d symbols, %d edges, %d vectors in %s\n",
					result.State.FileCount, result.State.SymbolCount, result.State.EdgeCount, result.State.VectorCount, time.Since(start).Round(time.Millisecond))
				for _, fe := range result.Errors {
					fmt.Fprintf(out, "  skipped %s: %s\n", fe.Path, fe.Reason)
				}
				return nil
			}

			if watch {
				return engine.Watch(ctx, func(result syncengine.Result, err error) {
					if rerr := report(time.Now(), result, err); rerr != nil {
						fmt.Fprintf(out, "watch: %v\n", rerr)
					}
				})
			}

			start := time.Now()
			var result syncengine.Result
			if full {
				result, err = engine.Full(ctx)
			} else {
				result, err = engine.Incremental(ctx)
			}
			return report(start, result, err)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Force a full reindex instead of an incremental one")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Clear the graph before a full reindex")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running, re-syncing incrementally as files change")
	return cmd
}
