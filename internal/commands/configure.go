package commands

import (
	"github.com/spf13/cobra"

	"github.com/gnomegl/teleinvite/internal/console"
)

func init() {
	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Ask for the run settings and save them without inviting",
		Args:  cobra.NoArgs,
		RunE:  runConfigure,
	}

	configureCmd.Flags().IntVar(&inviteOpts.apiID, "api-id", 0, "Telegram API ID")
	configureCmd.Flags().StringVar(&inviteOpts.apiHash, "api-hash", "", "Telegram API hash")
	configureCmd.Flags().Int64Var(&inviteOpts.groupID, "group-id", 0, "ID of the group to invite into")

	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	out := console.New(cmd.OutOrStdout(), false)
	cfg, err := loadConfig(cmd, newPrompter(cmd.Context(), cmd), out, true)
	if err != nil {
		return err
	}
	out.Success("Configuration for %d clients saved to %s", len(cfg.Clients), configPath())
	return nil
}
