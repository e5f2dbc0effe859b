package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"composer/internal/content"
	"composer/internal/logging"
)

// Candidate is one package's contribution for a file.
type Candidate struct {
	PackageID string         `json:"packageId"`
	File      string         `json:"file"`
	Content   string         `json:"content,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Replacement explains one overwritten candidate.
type Replacement struct {
	File       string `json:"file"`
	ReplacedBy string `json:"replaced_by"`
	Displaced  string `json:"displaced"`
}

// Report summarizes a resolution.
type Report struct {
	TS      string        `json:"ts"`
	Total   int           `json:"total"`
	Explain []Replacement `json:"explain"`
	Hash    string        `json:"hash"`
}

// Resolution is the winning candidate per file plus its report.
type Resolution struct {
	Files  []Candidate `json:"files"`
	Report Report      `json:"report"`
}

// Option configures Resolve.
type Option func(*resolveOptions)

type resolveOptions struct {
	ts string
}

// WithTimestamp overrides the report timestamp (default content.DefaultClock).
func WithTimestamp(ts string) Option {
	return func(o *resolveOptions) { o.ts = ts }
}

// Resolve keeps one candidate per file. Candidates are ordered by
// packageId, then file, then content digest; later candidates replace earlier
// ones, and each replacement is recorded. The result does not depend on the
// order of items.
func Resolve(items []Candidate, opts ...Option) (Resolution, error) {
	o := resolveOptions{ts: content.DefaultClock}
	for _, opt := range opts {
		opt(&o)
	}

	type keyed struct {
		key    string
		digest string
		c      Candidate
	}
	sorted := make([]keyed, 0, len(items))
	for _, it := range items {
		d, err := candidateDigest(it)
		if err != nil {
			return Resolution{}, err
		}
		sorted = append(sorted, keyed{key: it.PackageID + "\x00" + it.File, digest: d, c: it})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].key != sorted[j].key {
			return sorted[i].key < sorted[j].key
		}
		return sorted[i].digest < sorted[j].digest
	})

	var order []string
	winners := make(map[string]Candidate)
	explain := []Replacement{}
	for _, k := range sorted {
		file := k.c.File
		if prev, ok := winners[file]; ok {
			explain = append(explain, Replacement{File: file, ReplacedBy: k.c.PackageID, Displaced: prev.PackageID})
		} else {
			order = append(order, file)
		}
		winners[file] = k.c
	}

	files := make([]Candidate, 0, len(order))
	for _, f := range order {
		files = append(files, winners[f])
	}

	encoded, err := json.Marshal(files)
	if err != nil {
		return Resolution{}, fmt.Errorf("encode resolved files: %w", err)
	}
	sum := sha256.Sum256(encoded)

	logging.Get(logging.CategoryResolve).Info("resolved %d candidates into %d files (%d replaced)", len(items), len(files), len(explain))
	return Resolution{
		Files: files,
		Report: Report{
			TS:      o.ts,
			Total:   len(files),
			Explain: explain,
			Hash:    hex.EncodeToString(sum[:]),
		},
	}, nil
}

func candidateDigest(c Candidate) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("candidate %s/%s: %w", c.PackageID, c.File, err)
	}
	return content.Digest(string(data)), nil
}
