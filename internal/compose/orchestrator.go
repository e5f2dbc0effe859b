// Package compose runs the authoring pipeline: load rules and targets,
// generate each file, validate it, write it if changed, record evidence, and
// gate the run on its pass rate.
//
// A run is strictly sequential. Nothing is rolled back on failure; every
// artifact written before an error stays on disk.
package compose

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"composer/internal/config"
	"composer/internal/content"
	"composer/internal/guard"
	"composer/internal/ledger"
	"composer/internal/logging"
	"composer/internal/targets"
)

// PlanFileName is the dry-run plan written under the reports directory.
const PlanFileName = "dry_run_plan.json"

// Stores are the artifact writers a run uses. Each is the single writer of
// its file for the duration of a run.
type Stores struct {
	Writer     *ledger.Writer
	Evidence   *ledger.EvidenceStore
	Ledger     *ledger.Ledger
	Checkpoint *ledger.CheckpointStore
	RunLog     *ledger.RunLog
}

// NewStores builds the default stores for workspace from settings.
func NewStores(workspace string, settings *config.Config) Stores {
	clock := ledger.WithClock(ledger.FixedClock(settings.Determinism.Clock))
	return Stores{
		Writer:     ledger.NewWriter(workspace),
		Evidence:   ledger.NewEvidenceStore(workspace, settings.Paths.ReportsDir, clock),
		Ledger:     ledger.NewLedger(workspace, settings.Paths.Ledger, clock),
		Checkpoint: ledger.NewCheckpointStore(workspace, settings.Paths.Checkpoint, clock),
		RunLog:     ledger.NewRunLog(workspace, settings.Paths.RunLog, clock),
	}
}

// OrchestratorConfig holds configuration for the orchestrator.
type OrchestratorConfig struct {
	Settings *config.Config
	Stores   Stores
	Guard    *guard.Guard // default guard.Default()
	Recorder Recorder     // optional
}

// Orchestrator runs compose requests.
type Orchestrator struct {
	settings *config.Config
	stores   Stores
	guard    *guard.Guard
	recorder Recorder
	zero     map[string]bool
	log      *logging.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultConfig()
	}
	g := cfg.Guard
	if g == nil {
		g = guard.Default()
	}

	zero := make(map[string]bool)
	for _, p := range settings.ZeroLinePaths() {
		zero[p] = true
	}

	return &Orchestrator{
		settings: settings,
		stores:   cfg.Stores,
		guard:    g,
		recorder: cfg.Recorder,
		zero:     zero,
		log:      logging.Get(logging.CategoryCompose),
	}
}

// run carries the mutable state of one Run call.
type run struct {
	o       *Orchestrator
	req     Request
	summary *Summary
}

// Run executes req. The returned Summary is always non-nil and reflects how
// far the run got. A missed gate returns ErrGateFailed; any other error means
// the run errored.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	if req.Profile == "" {
		req.Profile = "default"
	}
	r := &run{
		o:   o,
		req: req,
		summary: &Summary{
			State:     StateLoading,
			Profile:   req.Profile,
			DryRun:    req.DryRun,
			Threshold: o.settings.Gate.Threshold,
		},
	}

	err := r.execute(ctx)
	if err != nil && !errors.Is(err, ErrGateFailed) {
		r.errored(err)
	}
	o.record(ctx, r.summary)
	return r.summary, err
}

func (r *run) execute(ctx context.Context) error {
	o := r.o
	timer := logging.StartTimer(logging.CategoryCompose, "compose "+r.req.Profile)
	defer timer.Stop()

	if err := o.stores.RunLog.Append(ledger.EventStart, ledger.Fields{
		"profile":     r.req.Profile,
		"isDryRun":    r.req.DryRun,
		"subsetCount": r.req.Subset,
	}); err != nil {
		return err
	}

	rules, err := targets.LoadRules(r.req.RulesPath)
	if err != nil {
		return err
	}
	list, err := targets.Load(r.req.TargetsPath)
	if err != nil {
		return err
	}
	if r.req.Subset > 0 {
		list = targets.Subset(list, r.req.Subset)
		o.log.Info("subset mode: processing %d files", len(list))
	}
	r.summary.Rules = len(rules)
	r.summary.Targets = len(list)

	gen := content.NewGenerator(rules, content.Options{
		Seed:       o.settings.Determinism.Seed,
		Clock:      o.settings.Determinism.Clock,
		ReportsDir: o.settings.Paths.ReportsDir,
	})

	if r.req.DryRun {
		return r.plan(gen, list)
	}
	return r.generate(ctx, gen, list)
}

// =============================================================================
// DRY RUN
// =============================================================================

func (r *run) plan(gen *content.Generator, list []targets.Target) error {
	o := r.o
	p := Plan{
		Mode:          "dry-run",
		Profile:       r.req.Profile,
		TotalFiles:    len(list),
		Rules:         gen.RuleCount(),
		Files:         make([]PlanFile, 0, len(list)),
		Guards:        guard.CheckNames(),
		ExpectedScore: o.settings.Gate.Threshold,
		Timestamp:     gen.Options().Clock,
	}
	for _, t := range list {
		typ := targets.RawExt(t.File)
		if typ == "" {
			typ = "no-ext"
		}
		p.Files = append(p.Files, PlanFile{Path: t.File, Predicted: t.Predicted, Required: t.Required, Type: typ})
	}

	planPath, err := o.stores.Evidence.WriteReport(PlanFileName, p)
	if err != nil {
		return err
	}
	r.summary.State = StatePlanned
	r.summary.PlanPath = planPath

	if err := o.stores.RunLog.Append(ledger.EventDryRunComplete, ledger.Fields{
		"planPath":  planPath,
		"fileCount": len(list),
	}); err != nil {
		return err
	}
	r.summary.State = StateDone
	o.log.Info("dry run planned %d files at %s", len(list), planPath)
	return nil
}

// =============================================================================
// GENERATION
// =============================================================================

func (r *run) generate(ctx context.Context, gen *content.Generator, list []targets.Target) error {
	o := r.o
	r.summary.State = StateGenerating

	pass, total := 0, 0
	for _, t := range list {
		if err := ctx.Err(); err != nil {
			return err
		}

		if o.isZeroLine(t.File) {
			r.summary.Skipped = append(r.summary.Skipped, t.File)
			if err := o.stores.RunLog.Append(ledger.EventSkipZeroLine, ledger.Fields{"file": t.File}); err != nil {
				return err
			}
			continue
		}

		res, err := r.one(gen, t)
		if err != nil {
			return err
		}
		total++
		if res.Report.OK {
			pass++
		} else {
			o.log.Debug("%s failed: %v", t.File, res.Report.Failed())
		}
		r.summary.Files = append(r.summary.Files, res)
	}

	return r.score(pass, total)
}

func (r *run) one(gen *content.Generator, t targets.Target) (FileResult, error) {
	o := r.o
	floor := o.settings.Generation.MinLinesFor(targets.RawExt(t.File))
	predicted := max(t.Predicted, floor)
	required := max(t.Required, predicted)

	body := gen.Generate(t.File, predicted)
	report := o.guard.Validate(t.File, body, predicted, required)

	changed, err := o.stores.Writer.WriteIfChanged(t.File, body)
	if err != nil {
		return FileResult{}, err
	}
	evidence, err := o.stores.Evidence.Write(t.File, predicted, changed, report.OK, &report)
	if err != nil {
		return FileResult{}, err
	}
	if err := o.stores.RunLog.Append(ledger.EventWrite, ledger.Fields{
		"file":     t.File,
		"changed":  changed,
		"evidence": evidence,
		"ok":       report.OK,
	}); err != nil {
		return FileResult{}, err
	}

	return FileResult{
		File:      t.File,
		Predicted: predicted,
		Required:  required,
		Changed:   changed,
		Evidence:  evidence,
		Report:    report,
	}, nil
}

// =============================================================================
// SCORING AND GATE
// =============================================================================

// Score is the pass rate; an empty run scores 1.
func Score(pass, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(pass) / float64(total)
}

func (r *run) score(pass, total int) error {
	o := r.o
	r.summary.State = StateScoring
	score := Score(pass, total)
	r.summary.Score, r.summary.Pass, r.summary.Total = score, pass, total

	if err := o.stores.RunLog.Append(ledger.EventScore, ledger.Fields{"score": score, "pass": pass, "total": total}); err != nil {
		return err
	}
	if err := o.stores.Ledger.Append(ledger.Step{
		"name":    "compose",
		"profile": r.req.Profile,
		"score":   score,
		"pass":    pass,
		"total":   total,
	}); err != nil {
		return err
	}
	if err := o.stores.Checkpoint.Save(r.req.Profile, score); err != nil {
		return err
	}

	if pass != total || score < o.settings.Gate.Threshold {
		if err := o.stores.RunLog.Append(ledger.EventFail, ledger.Fields{"reason": FailReasonScore, "score": score}); err != nil {
			return err
		}
		r.summary.State = StateFailed
		r.summary.Fixlist = append([]string(nil), Fixlist...)
		o.log.Warn("gate failed: score %.3f (%d/%d)", score, pass, total)
		return fmt.Errorf("%w: %.3f", ErrGateFailed, score)
	}

	if err := o.stores.RunLog.Append(ledger.EventDone, ledger.Fields{"score": score}); err != nil {
		return err
	}
	r.summary.State = StatePassed
	o.log.Info("gate passed: score %.3f (%d/%d)", score, pass, total)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *run) errored(err error) {
	r.summary.State = StateErrored
	r.summary.Err = err.Error()
	r.o.log.Error("compose errored: %v", err)
	if logErr := r.o.stores.RunLog.Append(ledger.EventError, ledger.Fields{"message": err.Error()}); logErr != nil {
		r.o.log.Error("could not record error event: %v", logErr)
	}
}

func (o *Orchestrator) isZeroLine(file string) bool {
	return o.zero[path.Clean(strings.ReplaceAll(file, `\`, "/"))]
}

func (o *Orchestrator) record(ctx context.Context, s *Summary) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordRun(ctx, s); err != nil {
		o.log.Warn("history: %v", err)
	}
}
