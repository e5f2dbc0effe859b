// Package guard implements the authoring guard: six independent checks that
// decide whether generated (or hand-written) content is acceptable for a path.
//
// Validation never fails with an error. Malformed input simply produces false
// booleans in the Report.
package guard

import (
	"errors"
	"strings"
	"unicode/utf16"

	"composer/internal/content"
	"composer/internal/logging"
)

// Check names, in evaluation order.
const (
	CheckLineBounds     = "line_bounds"
	CheckBannedLanguage = "banned_language"
	CheckEvidencePaths  = "evidence_paths"
	CheckJSONFields     = "json_fields"
	CheckQuality        = "quality"
	CheckStructural     = "structural"
)

var errTrailingData = errors.New("unexpected data after top-level value")

// CheckNames lists the checks every Report aggregates.
func CheckNames() []string {
	return []string{
		CheckLineBounds,
		CheckBannedLanguage,
		CheckEvidencePaths,
		CheckJSONFields,
		CheckQuality,
		CheckStructural,
	}
}

// Report is the guard's verdict for one path. Field names are part of the
// on-disk evidence format.
type Report struct {
	OK           bool     `json:"ok"`
	RelPath      string   `json:"relPath"`
	ActualLines  int      `json:"actual_lines"`
	Predicted    int      `json:"predicted"`
	Required     int      `json:"required"`
	EvPathsOK    bool     `json:"ev_paths_ok"`
	JSONFieldsOK bool     `json:"json_fields_ok"`
	QualityOK    bool     `json:"quality_ok"`
	StructuralOK bool     `json:"structural_ok"`
	BannedFlags  []string `json:"banned_flags"`
	ContentHash  string   `json:"content_hash"`
}

// Failed returns the names of the checks that did not pass.
func (r Report) Failed() []string {
	var out []string
	if r.ActualLines < r.Predicted || r.ActualLines > r.Required {
		out = append(out, CheckLineBounds)
	}
	if len(r.BannedFlags) > 0 {
		out = append(out, CheckBannedLanguage)
	}
	if !r.EvPathsOK {
		out = append(out, CheckEvidencePaths)
	}
	if !r.JSONFieldsOK {
		out = append(out, CheckJSONFields)
	}
	if !r.QualityOK {
		out = append(out, CheckQuality)
	}
	if !r.StructuralOK {
		out = append(out, CheckStructural)
	}
	return out
}

// Guard validates content against a RuleSet.
type Guard struct {
	rules RuleSet
}

// New returns a guard using rules.
func New(rules RuleSet) *Guard {
	return &Guard{rules: rules}
}

var defaultGuard = New(DefaultRules())

// Default returns the guard built from DefaultRules.
func Default() *Guard {
	return defaultGuard
}

// Validate runs the default guard.
func Validate(relPath, s string, predicted, required int) Report {
	return defaultGuard.Validate(relPath, s, predicted, required)
}

// Validate runs every check against s. ok is the conjunction of all six.
func (g *Guard) Validate(relPath, s string, predicted, required int) Report {
	kind := content.Classify(relPath)
	actual := CountLines(s)

	r := Report{
		RelPath:      relPath,
		ActualLines:  actual,
		Predicted:    predicted,
		Required:     required,
		EvPathsOK:    g.evidencePaths(s),
		JSONFieldsOK: jsonFields(kind, s),
		QualityOK:    g.density(kind, s),
		BannedFlags:  g.banned(s),
		ContentHash:  content.Digest(s),
	}

	v := structural(kind, s)
	r.StructuralOK = v.ok
	if v.err != nil {
		logging.Get(logging.CategoryGuard).Debug("%s: structural parse failed: %v", relPath, v.err)
	}

	linesOK := actual >= predicted && actual <= required
	r.OK = linesOK && len(r.BannedFlags) == 0 && r.EvPathsOK && r.JSONFieldsOK && r.QualityOK && r.StructuralOK
	return r
}

// banned returns the distinct flags raised by the banned-language table, in
// table order. The slice is never nil so it encodes as [].
func (g *Guard) banned(s string) []string {
	flags := []string{}
	seen := make(map[string]bool)
	for _, rule := range g.rules.Banned {
		if seen[rule.Flag] || !rule.Pattern.MatchString(s) {
			continue
		}
		seen[rule.Flag] = true
		flags = append(flags, rule.Flag)
	}
	return flags
}

func (g *Guard) evidencePaths(s string) bool {
	for _, m := range g.rules.Evidence.Pattern.FindAllString(s, -1) {
		if !strings.HasPrefix(m, g.rules.Evidence.Prefix) {
			return false
		}
	}
	return true
}

// density bounds the filler fraction and requires a minimum fraction of
// meaningful lines. Short content is exempt.
func (g *Guard) density(kind content.Kind, s string) bool {
	segs := splitSegments(s)
	total := max(1, len(segs))
	if total < g.rules.DensityFloor {
		return true
	}

	filler, meaningful := 0, 0
	for _, line := range segs {
		if g.isFiller(line) {
			filler++
			continue
		}
		if g.isMeaningful(line) {
			meaningful++
		}
	}
	fillerFrac := float64(filler) / float64(total)
	meaningfulFrac := float64(meaningful) / float64(total)
	return fillerFrac <= g.rules.MaxFiller && meaningfulFrac >= g.rules.minMeaningful(kind)
}

func (g *Guard) isFiller(line string) bool {
	for _, marker := range g.rules.FillerMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func (g *Guard) isMeaningful(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	for _, prefix := range g.rules.CommentPrefixes {
		if strings.HasPrefix(t, prefix) {
			return false
		}
	}
	return utf16Len(t) >= g.rules.MinMeaningfulChars
}

// utf16Len measures s in UTF-16 code units, so characters outside the BMP
// count twice. Invalid bytes count as one unit each.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
