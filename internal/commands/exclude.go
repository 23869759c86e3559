package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnomegl/teleinvite/internal/config"
)

func init() {
	excludeCmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage users that are never invited",
		Long: `Manage the list of user IDs that are never invited, whatever group they are
found in. The list is stored in the configuration file.`,
	}

	addExcludeCmd := &cobra.Command{
		Use:   "add USER_ID...",
		Short: "Exclude users from invitations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAddExclude,
	}

	listExcludeCmd := &cobra.Command{
		Use:   "list",
		Short: "List excluded users",
		Args:  cobra.NoArgs,
		RunE:  runListExclude,
	}

	removeExcludeCmd := &cobra.Command{
		Use:   "remove USER_ID...",
		Short: "Allow excluded users to be invited again",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRemoveExclude,
	}

	excludeCmd.AddCommand(addExcludeCmd, listExcludeCmd, removeExcludeCmd)
	rootCmd.AddCommand(excludeCmd)
}

func loadOrEmpty() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return cfg, nil
}

func runAddExclude(cmd *cobra.Command, args []string) error {
	ids, err := parseInt64List(args)
	if err != nil {
		return err
	}
	cfg, err := loadOrEmpty()
	if err != nil {
		return err
	}

	added := 0
	for _, id := range ids {
		if !slices.Contains(cfg.ExcludeUserIDs, id) {
			cfg.ExcludeUserIDs = append(cfg.ExcludeUserIDs, id)
			added++
		}
	}
	if err := config.Save(configPath(), cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d users excluded\n", added)
	return nil
}

func runListExclude(cmd *cobra.Command, args []string) error {
	cfg, err := loadOrEmpty()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(cfg.ExcludeUserIDs) == 0 {
		fmt.Fprintln(w, "No users excluded")
		return nil
	}
	for _, id := range cfg.ExcludeUserIDs {
		fmt.Fprintln(w, id)
	}
	return nil
}

func runRemoveExclude(cmd *cobra.Command, args []string) error {
	ids, err := parseInt64List(args)
	if err != nil {
		return err
	}
	cfg, err := loadOrEmpty()
	if err != nil {
		return err
	}

	before := len(cfg.ExcludeUserIDs)
	cfg.ExcludeUserIDs = slices.DeleteFunc(cfg.ExcludeUserIDs, func(id int64) bool {
		return slices.Contains(ids, id)
	})
	if err := config.Save(configPath(), cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d users removed from the exclude list\n", before-len(cfg.ExcludeUserIDs))
	return nil
}

// parseInt64List accepts IDs as separate arguments or comma separated.
func parseInt64List(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID: %s", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
