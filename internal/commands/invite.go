package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/console"
	"github.com/gnomegl/teleinvite/internal/database"
	"github.com/gnomegl/teleinvite/internal/invite"
	"github.com/gnomegl/teleinvite/internal/prompt"
	"github.com/gnomegl/teleinvite/internal/telegram"
	"github.com/gnomegl/teleinvite/internal/wizard"
)

type inviteOptions struct {
	cap          int
	pageSize     int
	delay        time.Duration
	maxFloodWait time.Duration
	retries      uint64
	dryRun       bool
	progress     bool
	skipWizard   bool
	apiID        int
	apiHash      string
	groupID      int64
}

var inviteOpts inviteOptions

func init() {
	inviteCmd := &cobra.Command{
		Use:   "invite",
		Short: "Configure and invite members into the target group",
		Long: `Ask for the run settings, save them and invite the members of every group
each account belongs to into the target group.

Press CTRL+C while an account is inviting to move on to the next account.
Press it again, or send SIGTERM, to stop.`,
		Args: cobra.NoArgs,
		RunE: runInvite,
	}
	addInviteFlags(inviteCmd.Flags())

	rootCmd.AddCommand(inviteCmd)
}

func addInviteFlags(fs *pflag.FlagSet) {
	fs.IntVar(&inviteOpts.cap, "cap", config.DefaultInviteCap, "Maximum accepted invitations per account")
	fs.IntVar(&inviteOpts.pageSize, "page-size", invite.DefaultPageSize, "Members fetched per request")
	fs.DurationVar(&inviteOpts.delay, "delay", 0, "Pause between invite batches")
	fs.DurationVar(&inviteOpts.maxFloodWait, "max-flood-wait", telegram.DefaultMaxFloodWait, "Longest FLOOD_WAIT to sleep through before moving to the next account")
	fs.Uint64Var(&inviteOpts.retries, "retries", telegram.DefaultRetries, "Retries for transient Telegram errors")
	fs.BoolVar(&inviteOpts.dryRun, "dry-run", false, "Collect and filter members without inviting them")
	fs.BoolVar(&inviteOpts.progress, "progress", false, "Show a progress bar per account instead of batch notices")
	fs.BoolVar(&inviteOpts.skipWizard, "skip-wizard", false, "Use the saved configuration without asking")
	fs.IntVar(&inviteOpts.apiID, "api-id", 0, "Telegram API ID")
	fs.StringVar(&inviteOpts.apiHash, "api-hash", "", "Telegram API hash")
	fs.Int64Var(&inviteOpts.groupID, "group-id", 0, "ID of the group to invite into")
}

// presetFlags maps flags onto the preset keys they answer.
var presetFlags = map[string]string{
	"api-id":   wizard.KeyAPIID,
	"api-hash": wizard.KeyAPIHash,
	"group-id": wizard.KeyGroupID,
}

func bindPresetFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range presetFlags {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding --%s: %w", name, err)
		}
	}
	return nil
}

// newPrompter reads answers from the command's input. Questions give up
// once ctx is done.
func newPrompter(ctx context.Context, cmd *cobra.Command) *prompt.Prompter {
	return prompt.New(cmd.InOrStdin(), cmd.OutOrStdout(), presets,
		prompt.WithErrorOutput(cmd.ErrOrStderr()),
		prompt.WithContext(ctx),
	)
}

// loadConfig runs the wizard over the saved configuration, or applies
// presets to it when interactive is false, and saves the result.
func loadConfig(cmd *cobra.Command, ask *prompt.Prompter, out *console.Printer, interactive bool) (*config.Config, error) {
	if err := bindPresetFlags(presets, cmd.Flags()); err != nil {
		return nil, err
	}

	path := configPath()
	saved, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	var cfg *config.Config
	if interactive {
		cfg, err = wizard.Run(ask, out, saved)
		if err != nil {
			return nil, err
		}
	} else {
		if saved == nil {
			return nil, fmt.Errorf("no saved configuration at %s, run teleinvite configure first", path)
		}
		cfg = applyPresets(saved, presets)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Save(path, cfg); err != nil {
		return nil, fmt.Errorf("error saving config: %w", err)
	}
	logger.Info("Configuration saved", zap.String("path", path), zap.Strings("sessions", cfg.SessionNames()))
	return cfg, nil
}

// applyPresets overrides saved API and group settings with preset answers.
func applyPresets(saved *config.Config, v *viper.Viper) *config.Config {
	cfg := *saved
	if v.IsSet(wizard.KeyAPIID) || v.IsSet(wizard.KeyAPIHash) {
		api := config.API{}
		if saved.API != nil {
			api = *saved.API
		}
		if v.IsSet(wizard.KeyAPIID) {
			api.APIID = v.GetInt(wizard.KeyAPIID)
		}
		if v.IsSet(wizard.KeyAPIHash) {
			api.APIHash = v.GetString(wizard.KeyAPIHash)
		}
		cfg.API = &api
	}
	if v.IsSet(wizard.KeyGroupID) {
		cfg.Group = &config.Group{GroupIDToInvite: v.GetInt64(wizard.KeyGroupID)}
	}
	return &cfg
}

func runInvite(cmd *cobra.Command, args []string) error {
	out := console.New(cmd.OutOrStdout(), inviteOpts.progress)
	out.Banner(version)

	ctx, interrupts := invite.NewInterrupter(cmd.Context())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go interrupts.Watch(watchCtx, sigs, os.Interrupt)

	ask := newPrompter(ctx, cmd)
	cfg, err := loadConfig(cmd, ask, out, !inviteOpts.skipWizard)
	if err != nil {
		if errors.Is(context.Cause(ctx), invite.ErrInterrupted) {
			out.Warning("Stopped by user")
			return nil
		}
		return err
	}

	db, err := database.New(config.GetDatabasePath(homeDir))
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	var runID string
	if !inviteOpts.dryRun {
		runID, err = db.StartRun(ctx, cfg.TargetID())
		if err != nil {
			return fmt.Errorf("error starting run: %w", err)
		}
	}

	runner := &invite.Runner{
		Opener: &telegram.Dialer{
			Config:       cfg,
			Home:         homeDir,
			Auth:         telegram.Authenticator{Ask: ask},
			Logger:       logger,
			MaxFloodWait: inviteOpts.maxFloodWait,
			Retries:      inviteOpts.retries,
		},
		Reporter:   out,
		Ledger:     db,
		Interrupts: interrupts,
		Logger:     logger,
		Confirm: func(session string) (bool, error) {
			declined, err := ask.Decline(wizard.KeyUseThisClient, "Do you want to use this client? (y/n): ")
			return !declined, err
		},
		RunID:    runID,
		TargetID: cfg.TargetID(),
		Cap:      inviteOpts.cap,
		PageSize: inviteOpts.pageSize,
		Delay:    inviteOpts.delay,
		DryRun:   inviteOpts.dryRun,
		Exclude:  cfg.ExcludeUserIDs,
	}

	logger.Info("Starting run",
		zap.String("run_id", runID),
		zap.Int64("target", cfg.TargetID()),
		zap.Int("cap", runner.Cap),
		zap.Bool("dry_run", runner.DryRun),
	)
	summary, runErr := runner.Run(ctx, cfg.SessionNames())

	if runID != "" {
		if err := db.FinishRun(context.Background(), runID, summary.Invited()); err != nil {
			logger.Error("Failed to finish run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	printSummary(cmd.OutOrStdout(), summary)

	if errors.Is(runErr, invite.ErrInterrupted) {
		out.Warning("Stopped by user")
		return nil
	}
	return runErr
}

func printSummary(w io.Writer, summary invite.Summary) {
	if len(summary.Results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintln(w, "========")
	for _, r := range summary.Results {
		line := fmt.Sprintf("%-20s %-9s invited: %-5d groups: %d", r.Session, r.Status, r.Invited, r.Sources)
		if r.Err != nil {
			line += fmt.Sprintf("  (%v)", r.Err)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Total invited: %d\n", summary.Invited())
}
