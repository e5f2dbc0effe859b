package compose

import (
	"context"
	"errors"

	"composer/internal/guard"
)

// ErrGateFailed is returned when a run completes but misses the pass-rate
// gate. Artifacts are still fully written.
var ErrGateFailed = errors.New("score below threshold")

// State is a run's position in the orchestrator lifecycle.
type State string

const (
	StateLoading    State = "loading"
	StatePlanned    State = "planned"
	StateDone       State = "done"
	StateGenerating State = "generating"
	StateScoring    State = "scoring"
	StatePassed     State = "passed"
	StateFailed     State = "failed"
	StateErrored    State = "errored"
)

// Fixlist is the remediation checklist printed when the gate fails.
var Fixlist = []string{
	"- Review authoring guard failures in artifacts/reports/*.json",
	"- Adjust templates or line targets to meet required thresholds",
	"- Re-run compose until score ≥ 0.90",
}

// FailReasonScore is the fail event reason for a missed gate.
const FailReasonScore = "score_below_threshold"

// Request describes one compose run.
type Request struct {
	RulesPath   string
	TargetsPath string
	Profile     string
	DryRun      bool
	// Subset limits the run to N targets spread across extensions; 0 = all.
	Subset int
}

// FileResult is the outcome for one generated target.
type FileResult struct {
	File      string       `json:"file"`
	Predicted int          `json:"predicted"`
	Required  int          `json:"required"`
	Changed   bool         `json:"changed"`
	Evidence  string       `json:"evidence"`
	Report    guard.Report `json:"report"`
}

// Summary is what a run returns, whatever its outcome.
type Summary struct {
	State     State        `json:"state"`
	Profile   string       `json:"profile"`
	DryRun    bool         `json:"dryRun"`
	Rules     int          `json:"rules"`
	Targets   int          `json:"targets"`
	Score     float64      `json:"score"`
	Pass      int          `json:"pass"`
	Total     int          `json:"total"`
	Threshold float64      `json:"threshold"`
	Skipped   []string     `json:"skipped,omitempty"`
	Files     []FileResult `json:"files,omitempty"`
	PlanPath  string       `json:"planPath,omitempty"`
	Fixlist   []string     `json:"fixlist,omitempty"`
	Err       string       `json:"error,omitempty"`
}

// Failed returns the results whose guard report did not pass.
func (s *Summary) Failed() []FileResult {
	var out []FileResult
	for _, f := range s.Files {
		if !f.Report.OK {
			out = append(out, f)
		}
	}
	return out
}

// Recorder receives every finished run. It is a side index; its failures
// never change a run's outcome.
type Recorder interface {
	RecordRun(ctx context.Context, s *Summary) error
}

// PlanFile is one planned target.
type PlanFile struct {
	Path      string `json:"path"`
	Predicted int    `json:"predicted"`
	Required  int    `json:"required"`
	Type      string `json:"type"`
}

// Plan is the dry-run document.
type Plan struct {
	Mode          string     `json:"mode"`
	Profile       string     `json:"profile"`
	TotalFiles    int        `json:"totalFiles"`
	Rules         int        `json:"rules"`
	Files         []PlanFile `json:"files"`
	Guards        []string   `json:"guards"`
	ExpectedScore float64    `json:"expectedScore"`
	Timestamp     string     `json:"timestamp"`
}
