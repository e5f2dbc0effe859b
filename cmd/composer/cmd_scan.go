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

	"composer/internal/ledger"
	"composer/internal/scan"
	"composer/internal/targets"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		report      bool
		watch       bool
		targetsPath string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the authoring guard over the workspace tree",
		Long: `Validates every file in the workspace (minus excluded globs and the run
log, ledger and checkpoint) with the authoring guard, and flags files with
identical contents. Files listed in the target list are checked against their
targets; others against bounds inferred from their length.

Exits non-zero when any file fails or duplicates exist.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("report") {
				report = a.settings.Scan.Report
			}
			return a.runScan(cmd.Context(), targetsPath, report, watch)
		},
	}
	cmd.Flags().BoolVar(&report, "report", false, "Write ci_fail_report.json and .csv")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep re-validating files as they change")
	cmd.Flags().StringVar(&targetsPath, "targets", defaultTargets, "Target list used for line bounds (optional)")
	return cmd
}

func (a *app) runScan(ctx context.Context, targetsPath string, report, watch bool) error {
	c := a.console

	var opts []scan.Option
	list, err := targets.Load(a.path(targetsPath))
	switch {
	case err == nil:
		opts = append(opts, scan.WithTargets(list))
	case errors.Is(err, targets.ErrTargetsMissing), errors.Is(err, targets.ErrSpreadsheetUnsupported):
		a.logger.Debug("no usable target list; inferring bounds", zap.Error(err))
	default:
		return err
	}

	scanner := scan.New(a.workspace, a.settings, opts...)
	res, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	for _, f := range res.Failed() {
		c.printf(stageScan, "%s %s %s", c.fail.Render("GUARD FAIL"), f.File,
			c.dim.Render(strings.Join(f.Guard.Failed(), ",")))
	}
	for _, group := range res.Duplicates {
		c.printf(stageScan, "%s %s", c.fail.Render("DUPLICATE CONTENT FAIL"), strings.Join(group, ", "))
	}
	sum := res.Summary
	c.printf(stageScan, "%s files=%d ok=%d fail=%d duplicates=%d pass_rate=%.3f",
		c.status(sum.Status == scan.StatusPass), sum.Files, sum.OK, sum.Fail, sum.Duplicates, sum.PassRate)

	if report {
		evidence := ledger.NewEvidenceStore(a.workspace, a.settings.Paths.ReportsDir)
		paths, err := scan.WriteReports(res, evidence, ledger.NewWriter(a.workspace))
		if err != nil {
			return err
		}
		c.printf(stageReport, "Written to %s (%d files)", paths.JSON, len(res.Files))
		c.printf(stageReport, "Summary: OK=%d, FAIL=%d", sum.OK, sum.Fail)
	}

	if watch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		c.printf(stageScan, "watching %s (Ctrl+C to stop)", a.workspace)
		return scanner.Watch(ctx, func(r scan.FileReport) {
			c.printf(stageScan, "%s %s %s", c.status(r.OK), r.File, c.dim.Render(strings.Join(r.Guard.Failed(), ",")))
		})
	}

	if sum.Status != scan.StatusPass {
		return errScanFailed
	}
	return nil
}
