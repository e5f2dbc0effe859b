package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DETERMINISM_SEED", "DETERMINISM_CLOCK", "COMPOSER_GATE_THRESHOLD", "COMPOSER_LOG_LEVEL", "COMPOSER_HISTORY_DB"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "composer", cfg.Name)
	assert.Equal(t, uint32(1337), cfg.Determinism.Seed)
	assert.Equal(t, "2025-01-01T00:00:00Z", cfg.Determinism.Clock)
	assert.Equal(t, 0.90, cfg.Gate.Threshold)
	assert.Equal(t, "logs/run.jsonl", cfg.Paths.RunLog)
	assert.False(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestMinLinesFor(t *testing.T) {
	g := DefaultConfig().Generation
	tests := map[string]int{
		".md":    8,
		".MD":    8,
		".json":  10,
		".jsonl": 1,
		".yml":   6,
		".yaml":  6,
		".mjs":   6,
		".js":    5,
		".txt":   3,
		".keep":  1,
		".go":    3,
		"":       3,
	}
	for ext, want := range tests {
		assert.Equal(t, want, g.MinLinesFor(ext), ext)
	}
}

func TestZeroLinePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.Exclude = []string{"./vendor/keep.txt"}
	assert.Equal(t, []string{
		"logs/run.jsonl",
		"ledger/full_log_master.json",
		"artifacts/checkpoints/latest.json",
		"vendor/keep.txt",
	}, cfg.ZeroLinePaths())
}

func TestConfig_LoadMissingReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)

	cfg := DefaultConfig()
	cfg.Determinism.Seed = 42
	cfg.Gate.Threshold = 0.75
	cfg.Scan.Workers = 3
	cfg.Logging.Categories = map[string]bool{"scan": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("gate:\n  threshold: 0.5\ngeneration:\n  min_lines:\n    .md: 12\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Gate.Threshold)
	assert.Equal(t, 12, cfg.Generation.MinLinesFor(".md"))
	assert.Equal(t, 10, cfg.Generation.MinLinesFor(".json"), "yaml merges into the default map")
	assert.Equal(t, "logs/run.jsonl", cfg.Paths.RunLog)
}

func TestConfig_ParseError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("gate: [unclosed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DETERMINISM_SEED", "99")
	t.Setenv("DETERMINISM_CLOCK", "2030-06-01T00:00:00Z")
	t.Setenv("COMPOSER_GATE_THRESHOLD", "0.8")
	t.Setenv("COMPOSER_LOG_LEVEL", "debug")
	t.Setenv("COMPOSER_HISTORY_DB", "/tmp/h.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint32(99), cfg.Determinism.Seed)
	assert.Equal(t, "2030-06-01T00:00:00Z", cfg.Determinism.Clock)
	assert.Equal(t, 0.8, cfg.Gate.Threshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/h.db", cfg.History.DatabasePath)
}

func TestConfig_EnvOverrideErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("DETERMINISM_SEED", "-1")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "DETERMINISM_SEED")

	clearEnv(t)
	t.Setenv("COMPOSER_GATE_THRESHOLD", "high")
	_, err = Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "COMPOSER_GATE_THRESHOLD")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Determinism.Clock = "yesterday"
	cfg.Paths.Ledger = "../outside.json"
	cfg.Gate.Threshold = 1.5
	cfg.Generation.MinLines["md"] = -1
	cfg.Scan.Workers = -2
	cfg.History.Enabled = true
	cfg.History.DatabasePath = ""
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"determinism.clock",
		"paths.ledger",
		"gate.threshold",
		`key "md" must start with a dot`,
		"min_lines[md]",
		"scan.workers",
		"history.database_path",
		"logging.level",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "info", Categories: map[string]bool{"scan": false}}
	assert.False(t, lc.IsCategoryEnabled("scan"))
	assert.True(t, lc.IsCategoryEnabled("compose"))

	out := lc.ForLogger()
	assert.Equal(t, "info", out.Level)
	assert.Equal(t, map[string]bool{"scan": false}, out.Categories)
}
