package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"composer/internal/content"
	"composer/internal/guard"
	"composer/internal/logging"
)

// =============================================================================
// EVIDENCE
// =============================================================================

// Evidence is the per-file record written next to every generated target.
type Evidence struct {
	TS      string        `json:"ts"`
	Path    string        `json:"path"`
	Lines   int           `json:"lines"`
	Changed bool          `json:"changed"`
	OK      bool          `json:"ok"`
	Guard   *guard.Report `json:"guard"`
}

// EvidenceStore writes evidence records under a reports directory.
type EvidenceStore struct {
	root       Root
	reportsDir string
	clock      Clock
}

// NewEvidenceStore returns a store writing to root/reportsDir.
func NewEvidenceStore(root, reportsDir string, opts ...Option) *EvidenceStore {
	if reportsDir == "" {
		reportsDir = content.DefaultReportsDir
	}
	o := buildOptions(opts)
	return &EvidenceStore{root: Root(root), reportsDir: reportsDir, clock: o.clock}
}

// Write records the outcome for relPath and returns the evidence path,
// relative to the root.
func (s *EvidenceStore) Write(relPath string, lines int, changed, ok bool, report *guard.Report) (string, error) {
	rel := content.EvidencePath(s.reportsDir, relPath)
	ev := Evidence{
		TS:      s.clock(),
		Path:    relPath,
		Lines:   lines,
		Changed: changed,
		OK:      ok,
		Guard:   report,
	}
	if err := writeJSON(s.root, rel, ev); err != nil {
		return "", fmt.Errorf("evidence for %s: %w", relPath, err)
	}
	return rel, nil
}

// WriteReport writes an arbitrary JSON report under the reports directory and
// returns its path relative to the root.
func (s *EvidenceStore) WriteReport(name string, v any) (string, error) {
	rel := path.Join(s.reportsDir, name)
	if err := writeJSON(s.root, rel, v); err != nil {
		return "", fmt.Errorf("report %s: %w", name, err)
	}
	return rel, nil
}

// ReportsDir returns the reports directory relative to the root.
func (s *EvidenceStore) ReportsDir() string { return s.reportsDir }

// =============================================================================
// LEDGER
// =============================================================================

// Step is one ledger entry. The store stamps ts; callers supply the rest.
type Step map[string]any

type ledgerDoc struct {
	Steps []json.RawMessage `json:"steps"`
}

// Ledger is the append-only audit document {steps: [...]}.
type Ledger struct {
	root  Root
	path  string
	clock Clock
}

// NewLedger returns a ledger stored at root/relPath.
func NewLedger(root, relPath string, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{root: Root(root), path: relPath, clock: o.clock}
}

// Append adds step to the ledger. A missing or unreadable ledger starts over
// from an empty step list.
func (l *Ledger) Append(step Step) error {
	doc := l.load()
	raw, err := json.Marshal(record{lead: []field{{"ts", l.clock()}}, fields: step})
	if err != nil {
		return fmt.Errorf("encode ledger step: %w", err)
	}
	doc.Steps = append(doc.Steps, raw)
	if err := writeJSON(l.root, l.path, doc); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// Steps returns the recorded steps, oldest first.
func (l *Ledger) Steps() ([]Step, error) {
	doc := l.load()
	out := make([]Step, 0, len(doc.Steps))
	for _, raw := range doc.Steps {
		var s Step
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("ledger step: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (l *Ledger) load() ledgerDoc {
	doc := ledgerDoc{Steps: []json.RawMessage{}}
	abs, err := l.root.Resolve(l.path)
	if err != nil {
		return doc
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Get(logging.CategoryWriter).Warn("ledger unreadable, starting over: %v", err)
		}
		return doc
	}
	var parsed ledgerDoc
	if err := json.Unmarshal(data, &parsed); err != nil {
		logging.Get(logging.CategoryWriter).Warn("ledger corrupt, starting over: %v", err)
		return doc
	}
	if parsed.Steps != nil {
		doc.Steps = parsed.Steps
	}
	return doc
}

// =============================================================================
// CHECKPOINT
// =============================================================================

// Checkpoint is the latest run summary, overwritten every run.
type Checkpoint struct {
	TS      string  `json:"ts"`
	Profile string  `json:"profile"`
	Score   float64 `json:"score"`
}

// CheckpointStore persists the single Checkpoint document.
type CheckpointStore struct {
	root  Root
	path  string
	clock Clock
}

// NewCheckpointStore returns a store at root/relPath.
func NewCheckpointStore(root, relPath string, opts ...Option) *CheckpointStore {
	o := buildOptions(opts)
	return &CheckpointStore{root: Root(root), path: relPath, clock: o.clock}
}

// Save overwrites the checkpoint.
func (c *CheckpointStore) Save(profile string, score float64) error {
	cp := Checkpoint{TS: c.clock(), Profile: profile, Score: score}
	if err := writeJSON(c.root, c.path, cp); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint. A missing or corrupt document yields
// the zero Checkpoint.
func (c *CheckpointStore) Load() Checkpoint {
	abs, err := c.root.Resolve(c.path)
	if err != nil {
		return Checkpoint{}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Checkpoint{}
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}
	}
	return cp
}

func writeJSON(root Root, relPath string, v any) error {
	abs, err := root.Resolve(relPath)
	if err != nil {
		return err
	}
	data, err := marshalIndent(v)
	if err != nil {
		return err
	}
	return writeFileAtomic(abs, data, 0o644)
}
