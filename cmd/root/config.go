package root

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docker/cv-index/internal/config"
	"github.com/docker/cv-index/internal/userconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize .cv/config.json",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigUserCmd())
	return cmd
}

// newConfigUserCmd manages ~/.config/cv/config.yaml (internal/userconfig),
// the settings applied across every repo when a repo's own config omits them.
func newConfigUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect or set user-level defaults (~/.config/cv/config.yaml)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print user-level defaults and recently used repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := userconfig.Load()
			if err != nil {
				return fmt.Errorf("config user: %w", err)
			}
			data, err := json.MarshalIndent(uc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	var chatProvider, chatModel, embeddingProvider string
	setDefaults := &cobra.Command{
		Use:   "set-defaults",
		Short: "Set the default chat/embedding provider and model used when a repo config omits them",
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := userconfig.Load()
			if err != nil {
				return fmt.Errorf("config user: %w", err)
			}
			settings := uc.GetSettings()
			if chatProvider != "" {
				settings.DefaultChatProvider = chatProvider
			}
			if chatModel != "" {
				settings.DefaultChatModel = chatModel
			}
			if embeddingProvider != "" {
				settings.DefaultEmbeddingProvider = embeddingProvider
			}
			uc.Settings = settings
			if err := uc.Save(); err != nil {
				return fmt.Errorf("config user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", userconfig.Path())
			return nil
		},
	}
	setDefaults.Flags().StringVar(&chatProvider, "chat-provider", "", "Default chat provider (anthropic | openai)")
	setDefaults.Flags().StringVar(&chatModel, "chat-model", "", "Default chat model")
	setDefaults.Flags().StringVar(&embeddingProvider, "embedding-provider", "", "Default embedding provider")
	cmd.AddCommand(setDefaults)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := openRepo()
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to .cv/config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := openRepo()
			if err != nil {
				return err
			}

			if !force {
				if _, statErr := os.Stat(config.Path(repo.Root)); statErr == nil {
					return fmt.Errorf("config: %s already exists, use --force to overwrite", config.Path(repo.Root))
				}
			}

			if err := config.Save(repo.Root, config.Default()); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", config.Path(repo.Root))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
