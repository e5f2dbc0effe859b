package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"composer/internal/history"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent compose runs",
		Long: `Lists the most recent compose runs recorded in the history database.
Runs are recorded when history.enabled is set in the config or
COMPOSER_HISTORY_DB points at a database.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return &usageError{errors.New("--limit must be > 0")}
			}
			dbPath := a.path(a.settings.History.DatabasePath)
			if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
				a.console.printf(stageHistory, "no runs recorded (%s)", a.settings.History.DatabasePath)
				return nil
			}

			store, err := history.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			c := a.console
			if len(runs) == 0 {
				c.printf(stageHistory, "no runs recorded")
				return nil
			}
			for _, r := range runs {
				c.printf(stageHistory, "%s %s %-8s %-8s score=%.3f pass=%d total=%d %s",
					c.dim.Render(r.RecordedAt.Format("2006-01-02 15:04:05")), r.ID[:8],
					r.Profile, r.State, r.Score, r.Pass, r.Total, r.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	return cmd
}
