package root

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/orchestrator"
	"github.com/docker/cv-index/internal/session"
)

func newChatCmd() *cobra.Command {
	var sessionID string
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume an AI-assisted editing session",
		Long:  "chat drives one turn per line read from stdin: it builds context, streams a response from the configured chat provider, parses any proposed edits, and applies approved ones.",
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

			ctxEngine := buildContextEngine(repo, graph, vectors, fts, cfg)
			sessions := session.NewFileStore(config.Dir(repo.Root))
			orch, err := buildOrchestrator(repo, cfg, sessions, ctxEngine)
			if err != nil {
				return err
			}

			sess, err := resumeOrStart(ctx, orch, sessions, sessionID, repo.Root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", sess.ID)

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}

				result, err := orch.RunTurn(ctx, sess.ID, line, func(tok string) {
					fmt.Fprint(out, tok)
				})
				if err != nil {
					fmt.Fprintf(out, "\nturn failed: %v\n", err)
					continue
				}
				fmt.Fprintln(out)

				if len(result.Edits) == 0 {
					continue
				}
				fmt.Fprintf(out, "%d edit(s) proposed\n", len(result.Edits))

				if !autoApprove {
					fmt.Fprintf(out, "  run `cv edits approve %s --all` then `cv edits apply %s`\n", sess.ID, sess.ID)
					continue
				}

				applied, err := orch.ApplyEdits(ctx, sess.ID, orchestrator.ApplyOptions{AutoApprove: true})
				if err != nil {
					fmt.Fprintf(out, "apply failed: %v\n", err)
					continue
				}
				for _, r := range applied {
					status := "ok"
					if !r.Success {
						status = "failed: " + r.Error
					}
					fmt.Fprintf(out, "  %s %s: %s\n", r.Edit.Type, r.Edit.File, status)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session by ID (starts a new one if empty)")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Apply proposed edits without a separate approval step")
	return cmd
}
