package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/fileops"
	"github.com/docker/cv-index/internal/orchestrator"
	"github.com/docker/cv-index/internal/session"
)

func newEditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edits",
		Short: "Review and apply edits proposed during a chat session",
	}

	cmd.AddCommand(newEditsListCmd())
	cmd.AddCommand(newEditsApproveCmd())
	cmd.AddCommand(newEditsRejectCmd())
	cmd.AddCommand(newEditsApplyCmd())
	cmd.AddCommand(newEditsUndoCmd())
	return cmd
}

func newEditsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List a session's pending edits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))

			sess, err := store.Resume(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("edits: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, e := range sess.PendingEdits {
				fmt.Fprintf(out, "%s  %-8s %-8s %s\n", e.ID, e.Type, e.Status, e.File)
			}
			return nil
		},
	}
}

func newEditsApproveCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "approve <session-id> [edit-id]",
		Short: "Approve one pending edit, or all of them with --all",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))
			orch := orchestrator.New(store, nil, fileops.New(repo.Root, config.Dir(repo.Root)), nil)

			if all {
				return orch.ApproveAllEdits(cmd.Context(), args[0])
			}
			if len(args) != 2 {
				return fmt.Errorf("edits: an edit-id is required without --all")
			}
			return orch.ApproveEdit(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Approve every pending edit")
	return cmd
}

func newEditsRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <session-id> <edit-id>",
		Short: "Reject one pending edit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))
			orch := orchestrator.New(store, nil, fileops.New(repo.Root, config.Dir(repo.Root)), nil)
			return orch.RejectEdit(cmd.Context(), args[0], args[1])
		},
	}
}

func newEditsApplyCmd() *cobra.Command {
	var autoApprove bool
	cmd := &cobra.Command{
		Use:   "apply <session-id>",
		Short: "Apply every approved pending edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))
			orch := orchestrator.New(store, nil, fileops.New(repo.Root, config.Dir(repo.Root)), nil)

			results, err := orch.ApplyEdits(cmd.Context(), args[0], orchestrator.ApplyOptions{AutoApprove: autoApprove})
			if err != nil {
				return fmt.Errorf("edits: %w", err)
			}
			printEditResults(cmd, results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Treat every pending edit as approved before applying")
	return cmd
}

func newEditsUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <session-id>",
		Short: "Revert the most recently applied edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))
			orch := orchestrator.New(store, nil, fileops.New(repo.Root, config.Dir(repo.Root)), nil)

			result, err := orch.UndoLastEdit(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("edits: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s %s\n", result.Edit.Type, result.Edit.File)
			return nil
		},
	}
}

func printEditResults(cmd *cobra.Command, results []domain.EditResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(out, "%s %s: %s\n", r.Edit.Type, r.Edit.File, status)
	}
}
