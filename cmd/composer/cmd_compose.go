package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"composer/internal/compose"
	"composer/internal/history"
)

// Default compose inputs, relative to the workspace.
const (
	defaultRules   = "final_constitution.jsonl"
	defaultTargets = "file_line_targets_by_constitution.xlsx"
	defaultProfile = "default"
)

func (a *app) composeCmd() *cobra.Command {
	var (
		dryRun bool
		subset int
	)
	cmd := &cobra.Command{
		Use:   "compose [rules] [targets] [profile]",
		Short: "Generate, validate and record every target file",
		Long: `Generates each file in the target list, validates it with the authoring
guard, writes it only when its bytes change, and records evidence, a run log,
a ledger step and a checkpoint. The run fails when any file fails the guard or
the pass rate is below the configured threshold.

Defaults:
  rules    ` + defaultRules + `
  targets  ` + defaultTargets + ` (reduced to .json, then .csv)
  profile  ` + defaultProfile + `

Example:
  composer compose --dry-run
  composer compose rules.jsonl targets.json release --subset=20`,
		Args: usageArgs(cobra.MaximumNArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if subset < 0 {
				return &usageError{errors.New("--subset must be >= 0")}
			}
			req := compose.Request{
				RulesPath:   a.path(argOr(args, 0, defaultRules)),
				TargetsPath: a.path(argOr(args, 1, defaultTargets)),
				Profile:     argOr(args, 2, defaultProfile),
				DryRun:      dryRun,
				Subset:      subset,
			}
			return a.runCompose(cmd.Context(), req)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Write the plan only; touch no target file")
	cmd.Flags().IntVar(&subset, "subset", 0, "Process at most N targets spread across extensions")
	return cmd
}

func argOr(args []string, i int, def string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return def
}

func (a *app) runCompose(parent context.Context, req compose.Request) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := compose.OrchestratorConfig{
		Settings: a.settings,
		Stores:   compose.NewStores(a.workspace, a.settings),
	}
	if a.settings.History.Enabled {
		store, err := history.NewStore(a.path(a.settings.History.DatabasePath))
		if err != nil {
			a.logger.Warn("history disabled", zap.Error(err))
		} else {
			defer store.Close()
			cfg.Recorder = store
		}
	}

	c := a.console
	if req.DryRun {
		c.printf(stageDryRun, "profile=%s (no target files will be written)", req.Profile)
	} else {
		c.printf(stageCompose, "profile=%s", req.Profile)
	}

	sum, err := compose.NewOrchestrator(cfg).Run(ctx, req)
	if sum != nil && req.Subset > 0 && sum.State != compose.StateErrored {
		c.printf(stageSubset, "Processing %d files", sum.Targets)
	}
	if err != nil && !errors.Is(err, compose.ErrGateFailed) {
		return err
	}

	if req.DryRun {
		c.printf(stageDryRun, "Plan written to %s (%d files, %d rules)", sum.PlanPath, sum.Targets, sum.Rules)
		return nil
	}

	for _, s := range sum.Skipped {
		c.printf(stageCompose, "%s %s", c.skip.Render("skip"), s)
	}
	for _, f := range sum.Failed() {
		c.printf(stageCompose, "%s %s %s", c.fail.Render("FAIL"), f.File,
			c.dim.Render(strings.Join(f.Report.Failed(), ",")))
	}
	changed := 0
	for _, f := range sum.Files {
		if f.Changed {
			changed++
		}
	}
	c.printf(stageCompose, "%s score=%.3f pass=%d total=%d changed=%d",
		c.status(err == nil), sum.Score, sum.Pass, sum.Total, changed)

	if err != nil {
		c.line("Fixlist:")
		for _, item := range sum.Fixlist {
			c.line(item)
		}
	}
	return err
}
