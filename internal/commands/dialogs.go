package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/invite"
	"github.com/gnomegl/teleinvite/internal/telegram"
	"github.com/gnomegl/teleinvite/internal/types"
)

func init() {
	dialogsCmd := &cobra.Command{
		Use:   "dialogs SESSION",
		Short: "List the groups and channels of an account",
		Long: `List the groups and channels an account belongs to with their full -100 IDs.
Groups members would be collected from are marked with *, the target group with >.`,
		Args: cobra.ExactArgs(1),
		RunE: runDialogs,
	}

	rootCmd.AddCommand(dialogsCmd)
}

func runDialogs(cmd *cobra.Command, args []string) error {
	session := args[0]
	if err := config.ValidateSessionName(session); err != nil {
		return err
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg == nil || cfg.API == nil {
		return fmt.Errorf("API credentials are not configured, run teleinvite configure first")
	}

	dialer := &telegram.Dialer{
		Config: cfg,
		Home:   homeDir,
		Auth:   telegram.Authenticator{Ask: newPrompter(cmd.Context(), cmd)},
		Logger: logger,
	}

	var convs []types.Conversation
	err = dialer.Open(cmd.Context(), session, func(ctx context.Context, acct invite.Account) error {
		var err error
		convs, err = acct.Conversations(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("error listing dialogs: %w", err)
	}

	var target int64
	if cfg.Group != nil {
		target = cfg.TargetID()
	}
	printConversations(cmd, convs, target)
	return nil
}

func printConversations(cmd *cobra.Command, convs []types.Conversation, target int64) {
	w := cmd.OutOrStdout()
	if len(convs) == 0 {
		fmt.Fprintln(w, "No groups or channels found")
		return
	}

	sources := make(map[int64]bool)
	for _, c := range invite.Sources(convs, target) {
		sources[c.ID] = true
	}

	for _, c := range convs {
		mark := " "
		switch {
		case c.ID == target:
			mark = ">"
		case sources[c.ID]:
			mark = "*"
		}
		kind := "channel"
		if c.Megagroup {
			kind = "group"
		}
		fmt.Fprintf(w, "%s %-16s %-8s %6d  %s\n", mark, c.FullID(), kind, c.Participants, c)
	}
	fmt.Fprintf(w, "\n%d conversations, %d groups to collect members from\n", len(convs), len(sources))
}
