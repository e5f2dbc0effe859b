package scan

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"composer/internal/config"
	"composer/internal/content"
	"composer/internal/ledger"
	"composer/internal/targets"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func put(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

var gen = content.NewGenerator(nil, content.Options{})

func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		".git/config",
		"node_modules/pkg/index.js",
		"artifacts/reports/a.json",
		"logs/run.jsonl",
		"ledger/full_log_master.json",
		"docs/a.md",
		"src/index.mjs",
		"README",
	} {
		put(t, root, rel, "x\n")
	}

	files, err := New(root, config.DefaultConfig()).Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"README", "docs/a.md", "src/index.mjs"}, files)
}

func TestExcludedZeroLinePaths(t *testing.T) {
	settings := config.DefaultConfig()
	settings.Scan.Exclude = nil
	s := New(t.TempDir(), settings)

	assert.True(t, s.Excluded("logs/run.jsonl"))
	assert.True(t, s.Excluded("./ledger/full_log_master.json"))
	assert.False(t, s.Excluded("logs/other.jsonl"))
}

func TestBounds(t *testing.T) {
	s := New(t.TempDir(), config.DefaultConfig(), WithTargets([]targets.Target{
		{File: "docs/a.md", Predicted: 4, Required: 2},
		{File: "./cfg/app.json", Predicted: 12, Required: 20},
	}))

	tests := []struct {
		rel, body  string
		pred, reqd int
	}{
		{"docs/a.md", "", 8, 8},
		{"cfg/app.json", "", 12, 20},
		{"notes.txt", "", 1, 1},
		{"notes.txt", "a", 1, 1},
		{"notes.txt", "a\nb\nc\nd\n", 3, 5},
	}
	for _, tt := range tests {
		pred, reqd := s.Bounds(tt.rel, tt.body)
		assert.Equal(t, tt.pred, pred, "%s %q predicted", tt.rel, tt.body)
		assert.Equal(t, tt.reqd, reqd, "%s %q required", tt.rel, tt.body)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	put(t, root, "docs/a.md", gen.Generate("docs/a.md", 12))
	put(t, root, "docs/copy.md", gen.Generate("docs/a.md", 12))
	put(t, root, "config/app.json", gen.Generate("config/app.json", 14))
	put(t, root, "notes/bad.txt", "This maybe works today.\nSecond line of notes.\nThird line of notes.\n")
	put(t, root, "logs/run.jsonl", "not scanned\n")

	res, err := New(root, config.DefaultConfig(), WithWorkers(2)).Run(context.Background())
	require.NoError(t, err)

	var got []string
	for _, f := range res.Files {
		got = append(got, f.File)
	}
	assert.Equal(t, []string{"config/app.json", "docs/a.md", "docs/copy.md", "notes/bad.txt"}, got)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "notes/bad.txt", failed[0].File)
	assert.Equal(t, []string{"banned_words_found"}, failed[0].Guard.BannedFlags)

	if diff := cmp.Diff([][]string{{"docs/a.md", "docs/copy.md"}}, res.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Summary{
		Files:      4,
		OK:         3,
		Fail:       2,
		Duplicates: 1,
		PassRate:   0.6,
		Status:     StatusFail,
	}, res.Summary)
}

func TestRunEmptyTree(t *testing.T) {
	res, err := New(t.TempDir(), config.DefaultConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, StatusPass, res.Summary.Status)
	assert.Equal(t, 1.0, res.Summary.PassRate)
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	put(t, root, "a.txt", "one line of text here\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(root, config.DefaultConfig()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReports(t *testing.T) {
	root := t.TempDir()
	put(t, root, "docs/a.md", gen.Generate("docs/a.md", 10))
	put(t, root, "notes/bad.txt", "maybe\n")

	res, err := New(root, config.DefaultConfig()).Run(context.Background())
	require.NoError(t, err)

	evidence := ledger.NewEvidenceStore(root, "")
	reports, err := WriteReports(res, evidence, ledger.NewWriter(root))
	require.NoError(t, err)
	assert.Equal(t, "artifacts/reports/ci_fail_report.json", reports.JSON)
	assert.Equal(t, "artifacts/reports/ci_fail_report.csv", reports.CSV)

	raw, err := os.ReadFile(filepath.Join(root, reports.JSON))
	require.NoError(t, err)
	var details []FileReport
	require.NoError(t, json.Unmarshal(raw, &details))
	require.Len(t, details, 2)
	assert.Equal(t, "docs/a.md", details[0].File)
	assert.True(t, details[0].OK)
	assert.False(t, details[1].OK)

	fh, err := os.Open(filepath.Join(root, reports.CSV))
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"docs/a.md", "true", "true", "true", "true", "10", "9", "11"}, rows[1])
	assert.Equal(t, "notes/bad.txt", rows[2][0])
	assert.Equal(t, "false", rows[2][1])
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "artifacts"), 0o755))
	s := New(root, config.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan FileReport, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.watch(ctx, 10*time.Millisecond, func(r FileReport) { results <- r })
	}()

	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)
	put(t, root, "artifacts/ignored.json", "{}\n")
	// Rename a finished file into place so the watcher never sees a partial write.
	put(t, root, "artifacts/staging.md", gen.Generate("docs/a.md", 10))
	require.NoError(t, os.Rename(filepath.Join(root, "artifacts", "staging.md"), filepath.Join(root, "docs", "a.md")))

	select {
	case r := <-results:
		assert.Equal(t, "docs/a.md", r.File)
		assert.True(t, r.OK, "failed: %v", r.Guard.Failed())
	case <-time.After(5 * time.Second):
		t.Fatal("no watch result")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	for len(results) > 0 {
		r := <-results
		assert.False(t, strings.HasPrefix(r.File, "artifacts/"), "excluded path reported: %s", r.File)
	}
}
