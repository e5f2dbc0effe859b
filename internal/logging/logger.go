// Package logging provides categorized logging for composer, backed by zap.
//
// Every subsystem asks for its logger with Get(Category). Before Initialize is
// called, and for disabled categories, Get returns a no-op logger, so library
// code can log unconditionally. When debug_mode is on, each category also
// writes to its own file under <workspace>/.composer/logs/.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategoryCompose Category = "compose" // Orchestrator runs
	CategoryGuard   Category = "guard"   // Authoring guard checks
	CategoryWriter  Category = "writer"  // File writes, ledger, run log
	CategoryTargets Category = "targets" // Target and rule loading
	CategoryResolve Category = "resolve" // Conflict resolution and merge
	CategoryScan    Category = "scan"    // Tree scan and watch mode
	CategoryHistory Category = "history" // Run history database
)

// Config mirrors config.LoggingConfig to avoid circular imports.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	DebugMode  bool
	Categories map[string]bool
}

// Option customizes Initialize.
type Option func(*options)

type options struct {
	core zapcore.Core
}

// WithCore replaces the stderr core. The configured level still applies.
func WithCore(core zapcore.Core) Option {
	return func(o *options) { o.core = core }
}

// Logger is a category-scoped, printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	cfg     Config
	base    *zap.Logger
	level   zap.AtomicLevel
	logsDir string
	loggers = make(map[Category]*Logger)
	files   []*os.File

	nop = zap.NewNop().Sugar()
)

// Initialize builds the shared zap core. It may be called again to
// reconfigure; existing category loggers are closed and rebuilt lazily.
func Initialize(workspace string, c Config, opts ...Option) error {
	lvl, err := zapcore.ParseLevel(orDefault(c.Level, "info"))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	CloseAll()

	mu.Lock()
	defer mu.Unlock()

	level = zap.NewAtomicLevelAt(lvl)
	cfg = c
	if o.core != nil {
		base = zap.New(o.core, zap.IncreaseLevel(level))
	} else {
		base = zap.New(zapcore.NewCore(encoder(c.Format), zapcore.Lock(os.Stderr), level))
	}

	logsDir = ""
	if c.DebugMode && workspace != "" {
		logsDir = filepath.Join(workspace, ".composer", "logs")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return nil
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(l zapcore.Level) {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		level.SetLevel(l)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories missing from the filter are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	ready := base != nil && categoryEnabled(category)
	mu.RUnlock()

	if !ready {
		return &Logger{category: category, sugar: nop}
	}

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		return &Logger{category: category, sugar: nop}
	}

	z := base.Named(string(category))
	if logsDir != "" {
		if fileCore, err := openCategoryFile(category); err == nil {
			z = zap.New(zapcore.NewTee(base.Core(), fileCore)).Named(string(category))
		} else {
			base.Warn("could not open category log file", zap.String("category", string(category)), zap.Error(err))
		}
	}

	l := &Logger{category: category, sugar: z.Sugar()}
	loggers[category] = l
	return l
}

// openCategoryFile must be called with mu held.
func openCategoryFile(category Category) (zapcore.Core, error) {
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	files = append(files, f)
	return zapcore.NewCore(encoder(cfg.Format), zapcore.AddSync(f), level), nil
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.sugar.Infof(format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.sugar.Warnf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// With returns a logger that adds key-value context to every entry.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	if base != nil {
		_ = base.Sync()
	}
	for _, f := range files {
		f.Close()
	}
	files = nil
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// TIMING
// =============================================================================

// Timer logs the duration of an operation on Stop.
type Timer struct {
	logger    *Logger
	operation string
	start     time.Time
}

// StartTimer begins timing operation under category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{logger: Get(category), operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when the operation exceeded threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn("%s slow: %v (threshold %v)", t.operation, elapsed, threshold)
	} else {
		t.logger.Debug("%s completed in %v", t.operation, elapsed)
	}
	return elapsed
}
