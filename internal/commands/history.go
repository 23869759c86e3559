package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/database"
	"github.com/gnomegl/teleinvite/internal/export"
)

var (
	exportJSON bool
	exportCSV  bool
	exportDir  string
	runsLimit  int
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show accepted invitations from the ledger",
		Long: `Show how many invitations each session got accepted per target group, and the
most recent runs. Use --json or --csv to export the statistics.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	historyCmd.Flags().BoolVar(&exportJSON, "json", false, "Export statistics to a JSON file")
	historyCmd.Flags().BoolVar(&exportCSV, "csv", false, "Export statistics to a CSV file")
	historyCmd.Flags().StringVar(&exportDir, "output-dir", ".", "Directory for exported files")
	historyCmd.Flags().IntVar(&runsLimit, "runs", 10, "Number of recent runs to show")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := database.New(config.GetDatabasePath(homeDir))
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("error getting statistics: %w", err)
	}
	runs, err := db.Runs(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("error getting runs: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintln(w, "No invitations recorded yet")
	} else {
		fmt.Fprintln(w, "Accepted invitations:")
		fmt.Fprintln(w, "=====================")
		for _, s := range stats {
			fmt.Fprintf(w, "Target: -100%d | Session: %s | Invited: %d | Last: %s\n",
				s.TargetID, s.Session, s.Invited, s.LastSeen.Local().Format("2006-01-02 15:04:05"))
		}
	}

	if len(runs) > 0 {
		fmt.Fprintln(w, "\nRecent runs:")
		for _, r := range runs {
			finished := "unfinished"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s  target -100%d  started %s  finished %s  invited %d\n",
				r.ID, r.TargetID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), finished, r.Invited)
		}
	}

	if exportJSON {
		filename := filepath.Join(exportDir, export.FormatFilename("teleinvite", "history", "json"))
		if err := export.WriteJSON(stats, filename); err != nil {
			return fmt.Errorf("error exporting JSON: %w", err)
		}
		fmt.Fprintf(w, "\nStatistics exported to %s\n", filename)
	}
	if exportCSV {
		filename := filepath.Join(exportDir, export.FormatFilename("teleinvite", "history", "csv"))
		if err := export.WriteStatsCSV(stats, filename); err != nil {
			return fmt.Errorf("error exporting CSV: %w", err)
		}
		fmt.Fprintf(w, "\nStatistics exported to %s\n", filename)
	}
	return nil
}
