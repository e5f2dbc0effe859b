package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the workspace root.
const DefaultFileName = "composer.yaml"

// Config holds all composer configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Inputs that make generated output reproducible
	Determinism DeterminismConfig `yaml:"determinism"`

	// Where run artifacts are written, relative to the workspace
	Paths PathsConfig `yaml:"paths"`

	// Pass-rate gate
	Gate GateConfig `yaml:"gate"`

	// Content generation
	Generation GenerationConfig `yaml:"generation"`

	// Tree scan
	Scan ScanConfig `yaml:"scan"`

	// Optional run history database
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DeterminismConfig fixes the seed and clock stamped into artifacts.
type DeterminismConfig struct {
	Seed  uint32 `yaml:"seed"`
	Clock string `yaml:"clock"` // RFC 3339
}

// PathsConfig locates the run artifacts.
type PathsConfig struct {
	RunLog     string `yaml:"run_log"`
	Ledger     string `yaml:"ledger"`
	Checkpoint string `yaml:"checkpoint"`
	ReportsDir string `yaml:"reports_dir"`
}

// GateConfig configures the pass-rate gate.
type GateConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ScanConfig configures the tree scan.
type ScanConfig struct {
	Exclude []string `yaml:"exclude"` // doublestar globs
	Workers int      `yaml:"workers"` // 0 = GOMAXPROCS
	Report  bool     `yaml:"report"`  // always write the fail report
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "composer",
		Version: "1.0.0",

		Determinism: DeterminismConfig{
			Seed:  1337,
			Clock: "2025-01-01T00:00:00Z",
		},

		Paths: PathsConfig{
			RunLog:     "logs/run.jsonl",
			Ledger:     "ledger/full_log_master.json",
			Checkpoint: "artifacts/checkpoints/latest.json",
			ReportsDir: "artifacts/reports",
		},

		Gate: GateConfig{
			Threshold: 0.90,
		},

		Generation: GenerationConfig{
			MinLines: map[string]int{
				".md":    8,
				".json":  10,
				".jsonl": 1,
				".yml":   6,
				".yaml":  6,
				".mjs":   6,
				".js":    5,
				".txt":   3,
				".keep":  1,
			},
			DefaultMinLines: 3,
		},

		Scan: ScanConfig{
			Exclude: []string{
				".git/**",
				"node_modules/**",
				"artifacts/**",
				"logs/**",
				"ledger/**",
				".composer/**",
			},
		},

		History: HistoryConfig{
			DatabasePath: ".composer/history.db",
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("DETERMINISM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("DETERMINISM_SEED: %w", err)
		}
		c.Determinism.Seed = uint32(seed)
	}
	if v := os.Getenv("DETERMINISM_CLOCK"); v != "" {
		c.Determinism.Clock = v
	}
	if v := os.Getenv("COMPOSER_GATE_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("COMPOSER_GATE_THRESHOLD: %w", err)
		}
		c.Gate.Threshold = th
	}
	if v := os.Getenv("COMPOSER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	// Setting a database path implies the history index is wanted.
	if v := os.Getenv("COMPOSER_HISTORY_DB"); v != "" {
		c.History.DatabasePath = v
		c.History.Enabled = true
	}
	return nil
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.Parse(time.RFC3339, c.Determinism.Clock); err != nil {
		errs = append(errs, fmt.Errorf("determinism.clock: %w", err))
	}

	for _, p := range []struct{ name, value string }{
		{"paths.run_log", c.Paths.RunLog},
		{"paths.ledger", c.Paths.Ledger},
		{"paths.checkpoint", c.Paths.Checkpoint},
		{"paths.reports_dir", c.Paths.ReportsDir},
	} {
		if !filepath.IsLocal(filepath.FromSlash(p.value)) {
			errs = append(errs, fmt.Errorf("%s: %q must be a relative path inside the workspace", p.name, p.value))
		}
	}

	if c.Gate.Threshold < 0 || c.Gate.Threshold > 1 {
		errs = append(errs, fmt.Errorf("gate.threshold: %v not in [0, 1]", c.Gate.Threshold))
	}

	if c.Generation.DefaultMinLines < 0 {
		errs = append(errs, fmt.Errorf("generation.default_min_lines: %d is negative", c.Generation.DefaultMinLines))
	}
	exts := make([]string, 0, len(c.Generation.MinLines))
	for ext := range c.Generation.MinLines {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		n := c.Generation.MinLines[ext]
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("generation.min_lines: key %q must start with a dot", ext))
		}
		if n < 0 {
			errs = append(errs, fmt.Errorf("generation.min_lines[%s]: %d is negative", ext, n))
		}
	}

	if c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers: %d is negative", c.Scan.Workers))
	}

	if c.History.Enabled && c.History.DatabasePath == "" {
		errs = append(errs, errors.New("history.database_path: required when history is enabled"))
	}

	if !validLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: %q (valid: %v)", c.Logging.Level, ValidLogLevels))
	}

	return errors.Join(errs...)
}

func validLevel(level string) bool {
	for _, l := range ValidLogLevels {
		if level == l {
			return true
		}
	}
	return false
}
