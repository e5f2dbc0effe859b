package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"composer/internal/ledger"
	"composer/internal/merge"
)

// ResolutionReport is the file written by the resolve command.
const resolutionReport = "conflict_resolution.json"

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <candidates.json>",
		Short: "Resolve per-file conflicts between package candidates",
		Long: `Reads a JSON array of {packageId, file, content?, meta?} candidates and keeps
one winner per file. Candidates are ordered by packageId and file, so the
result does not depend on input order. Every overwrite is explained in the
report written to the reports directory.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(a.path(args[0]))
			if err != nil {
				return fmt.Errorf("read candidates: %w", err)
			}
			var items []merge.Candidate
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("parse candidates %s: %w", args[0], err)
			}

			res, err := merge.Resolve(items, merge.WithTimestamp(a.settings.Determinism.Clock))
			if err != nil {
				return err
			}
			evidence := ledger.NewEvidenceStore(a.workspace, a.settings.Paths.ReportsDir)
			out, err := evidence.WriteReport(resolutionReport, res)
			if err != nil {
				return err
			}

			c := a.console
			for _, r := range res.Report.Explain {
				c.printf(stageResolve, "%s: %s replaced %s", r.File, r.ReplacedBy, r.Displaced)
			}
			c.printf(stageResolve, "%d candidates -> %d files, %d replaced (hash %s)",
				len(items), res.Report.Total, len(res.Report.Explain), res.Report.Hash[:16])
			c.printf(stageReport, "Written to %s", out)
			return nil
		},
	}
}

func (a *app) mergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge <base> <overlay>",
		Short: "Deep-merge two YAML or JSON documents",
		Long: `Deep-merges overlay onto base. Arrays are concatenated without duplicates,
maps are merged key by key, and scalars from overlay win. The result is
written as YAML when the output ends in .yml/.yaml, otherwise as JSON with
sorted keys. Without --output the JSON result goes to stdout.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := merge.LoadDocument(a.path(args[0]))
			if err != nil {
				return err
			}
			overlay, err := merge.LoadDocument(a.path(args[1]))
			if err != nil {
				return err
			}
			merged := merge.DeepMerge(base, overlay)

			data, err := merge.EncodeDocument(output, merged)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			dest := a.path(output)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.console.printf(stageMerge, "%s + %s -> %s", args[0], args[1], output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.json, .yml or .yaml)")
	return cmd
}
