package ledger

import (
	"fmt"
	"os"
	"path/filepath"
)

// Run log events.
const (
	EventStart          = "start"
	EventWrite          = "write"
	EventSkipZeroLine   = "skip_zero_line"
	EventScore          = "score"
	EventDone           = "done"
	EventFail           = "fail"
	EventError          = "error"
	EventDryRunComplete = "dry_run_complete"
)

// Fields are the event-specific keys of a run log line.
type Fields map[string]any

// RunLog appends one JSON object per line: {"ts", "event", ...fields}.
type RunLog struct {
	root  Root
	path  string
	clock Clock
}

// NewRunLog returns a run log at root/relPath.
func NewRunLog(root, relPath string, opts ...Option) *RunLog {
	o := buildOptions(opts)
	return &RunLog{root: Root(root), path: relPath, clock: o.clock}
}

// Append writes one event line. Fields named ts or event are ignored.
func (r *RunLog) Append(event string, fields Fields) error {
	line, err := encodeCompact(record{
		lead:   []field{{"ts", r.clock()}, {"event", event}},
		fields: fields,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	abs, err := r.root.Resolve(r.path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	return nil
}
