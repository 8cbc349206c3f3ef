// Package root wires cv's cobra commands, mirroring cmd/root/root.go's
// split between command assembly and a trivial main.go.
package root

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/logging"
)

var (
	repoRoot  string
	debugMode bool
	quietLogs bool
	logCloser io.Closer
)

// NewRootCmd builds the top-level cv command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "cv - code-graph indexer and AI coding assistant",
		Long:  "cv indexes a repository into a code graph and vector store, and drives AI-assisted edit turns against it.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debugMode {
				level = slog.LevelDebug
			}

			logger, closer, err := logging.New(logging.Options{
				CVDir: config.Dir(repoRoot),
				Level: level,
				Quiet: quietLogs,
			})
			if err != nil {
				// No writable .cv directory yet (e.g. `cv config init` on a
				// brand new repo): fall back to a logger without a file sink
				// rather than failing every command on it.
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
				closer = io.NopCloser(nil)
			}
			logCloser = closer
			slog.SetDefault(logger)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&repoRoot, "repo", ".", "Path to the repository root")
	cmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&quietLogs, "quiet", false, "Suppress the stderr log mirror")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newEditsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
