// Package scan runs the authoring guard over an existing workspace tree, the
// way CI does: every file is validated against target-derived or inferred
// line bounds, identical contents are flagged as duplicates, and the results
// can be written as JSON and CSV reports.
//
// Files are read and validated in parallel; results are always sorted by
// path before they are reported.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"composer/internal/config"
	"composer/internal/content"
	"composer/internal/guard"
	"composer/internal/logging"
	"composer/internal/targets"
)

// Status values of a Summary.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// FileReport is the guard outcome for one scanned file.
type FileReport struct {
	File  string       `json:"file"`
	OK    bool         `json:"ok"`
	Guard guard.Report `json:"guard"`
}

// Summary aggregates a scan.
type Summary struct {
	Files      int     `json:"files"`
	OK         int     `json:"ok"`
	Fail       int     `json:"fail"`
	Duplicates int     `json:"duplicates"`
	PassRate   float64 `json:"pass_rate"`
	Status     string  `json:"status"`
}

// Result is a complete scan.
type Result struct {
	Files      []FileReport `json:"files"`
	Duplicates [][]string   `json:"duplicates"`
	Summary    Summary      `json:"summary"`
}

// Failed returns the file reports that did not pass.
func (r *Result) Failed() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if !f.OK {
			out = append(out, f)
		}
	}
	return out
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTargets supplies the target list used for line bounds. Files missing
// from it get bounds inferred from their own length.
func WithTargets(list []targets.Target) Option {
	return func(s *Scanner) {
		for _, t := range list {
			s.targets[path.Clean(filepath.ToSlash(t.File))] = t
		}
	}
}

// WithGuard replaces the default guard.
func WithGuard(g *guard.Guard) Option {
	return func(s *Scanner) { s.guard = g }
}

// WithWorkers bounds the number of files validated concurrently.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Scanner validates the files under a workspace root.
type Scanner struct {
	root       string
	exclude    []string
	zero       map[string]bool
	generation config.GenerationConfig
	targets    map[string]targets.Target
	guard      *guard.Guard
	workers    int
	log        *logging.Logger
}

// New creates a scanner for root using the scan and generation settings.
func New(root string, settings *config.Config, opts ...Option) *Scanner {
	if settings == nil {
		settings = config.DefaultConfig()
	}
	s := &Scanner{
		root:       root,
		exclude:    normalizePatterns(settings.Scan.Exclude),
		zero:       make(map[string]bool),
		generation: settings.Generation,
		targets:    make(map[string]targets.Target),
		guard:      guard.Default(),
		workers:    settings.Scan.Workers,
		log:        logging.Get(logging.CategoryScan),
	}
	for _, p := range settings.ZeroLinePaths() {
		s.zero[p] = true
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

// Excluded reports whether rel (slash-separated, relative to the root) is
// skipped by the scan.
func (s *Scanner) Excluded(rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	if s.zero[rel] {
		return true
	}
	for _, pattern := range s.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Walk lists the regular files under the root that are not excluded, as
// sorted slash-separated relative paths.
func (s *Scanner) Walk() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if s.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || s.Excluded(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Bounds returns the line bounds a file is validated against.
func (s *Scanner) Bounds(rel, body string) (predicted, required int) {
	if t, ok := s.targets[rel]; ok {
		floor := s.generation.MinLinesFor(content.Ext(rel))
		predicted = max(t.Predicted, floor)
		return predicted, max(t.Required, predicted)
	}
	n := 0
	if body != "" {
		n = strings.Count(body, "\n") + 1
	}
	return max(1, n-2), max(n, 1)
}

// Check validates one file body.
func (s *Scanner) Check(rel, body string) FileReport {
	predicted, required := s.Bounds(rel, body)
	report := s.guard.Validate(rel, body, predicted, required)
	return FileReport{File: rel, OK: report.OK, Guard: report}
}

// Run scans the whole tree.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryScan, "scan")
	defer timer.Stop()

	files, err := s.Walk()
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, len(files))
	digests := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			body := s.read(rel)
			reports[i] = s.Check(rel, body)
			if body != "" {
				digests[i] = content.Digest(body)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Files: reports, Duplicates: duplicateGroups(files, digests)}
	res.Summary = summarize(reports, len(res.Duplicates))
	for _, f := range res.Failed() {
		s.log.Info("guard fail: %s %v", f.File, f.Guard.Failed())
	}
	for _, group := range res.Duplicates {
		s.log.Info("duplicate content: %v", group)
	}
	return res, nil
}

func (s *Scanner) read(rel string) string {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("read %s: %v", rel, err)
		}
		return ""
	}
	return string(data)
}

// duplicateGroups returns every set of two or more files with identical
// non-empty contents. files is sorted, so groups and their members are too.
func duplicateGroups(files, digests []string) [][]string {
	byDigest := make(map[string][]string)
	var order []string
	for i, d := range digests {
		if d == "" {
			continue
		}
		if _, ok := byDigest[d]; !ok {
			order = append(order, d)
		}
		byDigest[d] = append(byDigest[d], files[i])
	}
	groups := [][]string{}
	for _, d := range order {
		if len(byDigest[d]) > 1 {
			groups = append(groups, byDigest[d])
		}
	}
	return groups
}

func summarize(reports []FileReport, duplicates int) Summary {
	sum := Summary{Files: len(reports), Duplicates: duplicates}
	for _, r := range reports {
		if r.OK {
			sum.OK++
		} else {
			sum.Fail++
		}
	}
	sum.Fail += duplicates

	sum.PassRate = 1
	if total := sum.OK + sum.Fail; total > 0 {
		sum.PassRate = float64(sum.OK) / float64(total)
	}
	sum.Status = StatusPass
	if sum.Fail > 0 {
		sum.Status = StatusFail
	}
	return sum
}
