package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage chat sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))

			sessions, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %s  branch=%s  messages=%d  pending=%d\n",
					s.ID, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.Branch, len(s.Messages), len(s.PendingEdits))
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's full transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))

			sess, err := store.Resume(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range sess.Messages {
				fmt.Fprintf(out, "[%s] %s\n%s\n\n", m.Role, m.Timestamp.Format("15:04:05"), m.Content)
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}
			store := session.NewFileStore(config.Dir(repo.Root))

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
