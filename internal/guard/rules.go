package guard

import (
	"regexp"

	"composer/internal/content"
)

// FlagBannedWords is recorded in Report.BannedFlags when hedging language is found.
const FlagBannedWords = "banned_words_found"

// BannedRule maps a lexical pattern to the flag it raises.
type BannedRule struct {
	Word    string
	Flag    string
	Pattern *regexp.Regexp
}

func bannedWord(word string) BannedRule {
	return BannedRule{
		Word:    word,
		Flag:    FlagBannedWords,
		Pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
	}
}

// EvidenceRule requires every match of Pattern to start with Prefix.
type EvidenceRule struct {
	Pattern *regexp.Regexp
	Prefix  string
}

// RuleSet is the data driving the lexical and density checks.
type RuleSet struct {
	Banned          []BannedRule
	Evidence        EvidenceRule
	FillerMarkers   []string
	CommentPrefixes []string
	// MaxFiller is the largest tolerated fraction of filler lines.
	MaxFiller float64
	// MinMeaningfulChars is the shortest trimmed line counted as meaningful.
	MinMeaningfulChars int
	// DensityFloor is the shortest content (in split segments) the density
	// check applies to.
	DensityFloor int
	// MinMeaningful is the per-kind minimum meaningful-line fraction.
	MinMeaningful map[content.Kind]float64
	// DefaultMinMeaningful applies to kinds missing from MinMeaningful.
	DefaultMinMeaningful float64
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() RuleSet {
	return RuleSet{
		Banned: []BannedRule{
			bannedWord("should"),
			bannedWord("probably"),
			bannedWord("maybe"),
		},
		Evidence: EvidenceRule{
			Pattern: regexp.MustCompile(`artifacts/[A-Za-z0-9._/-]+`),
			Prefix:  "artifacts/",
		},
		FillerMarkers:      []string{"filler"},
		CommentPrefixes:    []string{"#", "//", "*", "/*", "*/"},
		MaxFiller:          0.25,
		MinMeaningfulChars: 12,
		DensityFloor:       10,
		MinMeaningful: map[content.Kind]float64{
			content.KindMarkdown: 0.35,
			content.KindModule:   0.45,
			content.KindScript:   0.45,
			content.KindYAML:     0.25,
			content.KindJSON:     0.30,
			content.KindJSONL:    0.30,
		},
		DefaultMinMeaningful: 0.30,
	}
}

func (r RuleSet) minMeaningful(k content.Kind) float64 {
	if v, ok := r.MinMeaningful[k]; ok {
		return v
	}
	return r.DefaultMinMeaningful
}

// Structural patterns.
var (
	headingPattern      = regexp.MustCompile(`(?m)^#{1,3}\s`)
	verifyPattern       = regexp.MustCompile(`(?i)evidence|verify|artifacts/reports`)
	esmExportPattern    = regexp.MustCompile(`\bexport\s+(const|function|class)\b`)
	cjsExportPattern    = regexp.MustCompile(`module\.exports\s*=`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*\*.*\*/`)
	keyValuePattern     = regexp.MustCompile(`(?m)^[A-Za-z0-9_.-]+:\s?.+`)
)

const (
	minHeadings      = 3
	minKeyValueLines = 3
	minTextLines     = 3
)
