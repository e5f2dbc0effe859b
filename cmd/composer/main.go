package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"composer/internal/compose"
	"composer/internal/config"
	"composer/internal/logging"
)

// Exit codes.
const (
	exitOK         = 0
	exitGateFailed = 1
	exitUsage      = 2
	exitError      = 3
)

// errScanFailed marks a scan that found guard failures or duplicates.
var errScanFailed = errors.New("authoring guard scan failed")

// usageError marks invalid invocations (bad flags or arguments).
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// app is the state shared by all commands of one invocation.
type app struct {
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	logger   *zap.Logger
	settings *config.Config
	console  *console
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{console: newConsole(stdout, stderr)}

	rootCmd := &cobra.Command{
		Use:   "composer",
		Short: "Deterministic authoring orchestrator",
		Long: `composer synthesizes repository files that satisfy per-file line targets,
validates each one with the authoring guard, writes them idempotently with an
append-only audit trail, and gates the run on its pass rate.

Identical inputs always produce byte-identical files and reports.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			logging.CloseAll()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&a.workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: <workspace>/"+config.DefaultFileName+")")

	rootCmd.AddCommand(
		a.composeCmd(),
		a.scanCmd(),
		a.resolveCmd(),
		a.mergeCmd(),
		a.historyCmd(),
		a.configCmd(),
	)
	return rootCmd, a
}

// setup resolves the workspace, loads configuration and initializes logging.
func (a *app) setup() error {
	zc := zap.NewProductionConfig()
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if a.workspace == "" {
		if a.workspace, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}
	if a.configPath == "" {
		a.configPath = filepath.Join(a.workspace, config.DefaultFileName)
	}

	a.settings, err = config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		a.settings.Logging.Level = "debug"
	}
	if err := a.settings.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.configPath, err)
	}

	if err := logging.Initialize(a.workspace, a.settings.Logging.ForLogger()); err != nil {
		return err
	}
	logging.Get(logging.CategoryBoot).Debug("workspace %s, config %s", a.workspace, a.configPath)
	a.logger.Debug("configuration loaded", zap.String("workspace", a.workspace), zap.String("config", a.configPath))
	return nil
}

// path resolves p against the workspace unless it is absolute.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.workspace, p)
}

func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, compose.ErrGateFailed), errors.Is(err, errScanFailed):
		return exitGateFailed
	case errors.As(err, &usage):
		return exitUsage
	default:
		return exitError
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd, a := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	code := exitCode(err)
	switch code {
	case exitOK:
	case exitUsage:
		a.console.errorf("%v", err)
		fmt.Fprintln(stderr, "Run 'composer --help' for usage.")
	default:
		a.console.errorf("%v", err)
	}
	return code
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
