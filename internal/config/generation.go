package config

import (
	"path"
	"strings"
)

// GenerationConfig configures content generation.
type GenerationConfig struct {
	// MinLines floors the predicted line count per lower-case extension.
	MinLines map[string]int `yaml:"min_lines"`
	// DefaultMinLines applies to extensions missing from MinLines.
	DefaultMinLines int `yaml:"default_min_lines"`
	// Exclude lists extra workspace paths that are never generated.
	Exclude []string `yaml:"exclude,omitempty"`
}

// MinLinesFor returns the line floor for ext (case-insensitive).
func (g GenerationConfig) MinLinesFor(ext string) int {
	if n, ok := g.MinLines[strings.ToLower(ext)]; ok {
		return n
	}
	return g.DefaultMinLines
}

// ZeroLinePaths are the workspace paths compose must never generate: its own
// run log, ledger and checkpoint plus any configured exclusions.
func (c *Config) ZeroLinePaths() []string {
	out := []string{
		path.Clean(c.Paths.RunLog),
		path.Clean(c.Paths.Ledger),
		path.Clean(c.Paths.Checkpoint),
	}
	for _, p := range c.Generation.Exclude {
		out = append(out, path.Clean(p))
	}
	return out
}
