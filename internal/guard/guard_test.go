package guard

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"composer/internal/content"
)

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"a\r\nb\r\n", 2},
		{"\n", 1},
		{"\n\n", 2},
		{"a\n\nb\n", 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, CountLines(tt.in))
		})
	}
}

func TestValidateMarkdownPasses(t *testing.T) {
	doc := strings.Join([]string{
		"# Title",
		"Overview of the generated document body.",
		"## Section",
		"Evidence: artifacts/reports/README.md.json",
		"### Sub",
		"The orchestrator renders reproducible content.",
		"Each line here carries meaningful text content.",
		"Another sentence that is long enough to count.",
		"Records are appended to the audit ledger file.",
		"The checkpoint stores the most recent score.",
		"Line bounds are checked against the targets.",
		"Structural rules depend on the file extension.",
	}, "\n") + "\n"

	r := Validate("README.md", doc, 10, 15)

	assert.True(t, r.OK, "failed checks: %v", r.Failed())
	assert.Equal(t, 12, r.ActualLines)
	assert.True(t, r.StructuralOK)
	assert.True(t, r.QualityOK)
	assert.True(t, r.EvPathsOK)
	assert.True(t, r.JSONFieldsOK)
	assert.Empty(t, r.BannedFlags)
	assert.Equal(t, content.Digest(doc), r.ContentHash)
}

func TestValidateBannedWord(t *testing.T) {
	r := Validate("a.txt", "this should work\nline two\nline three\n", 1, 10)

	assert.False(t, r.OK)
	assert.Equal(t, []string{FlagBannedWords}, r.BannedFlags)
	assert.Equal(t, []string{CheckBannedLanguage}, r.Failed())
}

func TestBannedWordsAreWholeWordAndCaseInsensitive(t *testing.T) {
	tests := []struct {
		text   string
		banned bool
	}{
		{"You SHOULD do it", true},
		{"Probably fine", true},
		{"maybe.", true},
		{"shoulder and maybelline", false},
		{"unprobably", false},
		{"nothing here", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := Validate("x.keep", tt.text, 0, 10)
			assert.Equal(t, tt.banned, len(r.BannedFlags) > 0)
		})
	}
}

func TestBannedFlagsEncodeAsEmptyArray(t *testing.T) {
	r := Validate("a.keep", "ok\n", 0, 5)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"banned_flags":[]`)
}

func TestValidateJSONL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"valid", "{\"a\":1}\n{\"b\":2}\n", true},
		{"one invalid", "{\"a\":1}\nnot json\n", false},
		{"blank lines skipped", "{\"a\":1}\n\n{\"b\":2}\n", true},
		{"empty", "", false},
		{"only blanks", "\n\n", false},
		{"stray closing brace", "{\"a\":1}}\n{\"b\":2}\n", false},
		{"trailing word", "{\"a\":1}\n{\"b\":2} nope\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate("data.jsonl", tt.in, 0, 10)
			assert.Equal(t, tt.ok, r.StructuralOK)
			assert.True(t, r.JSONFieldsOK, "jsonl is exempt from field checks")
		})
	}
}

func TestParseJSONTrailingData(t *testing.T) {
	tests := []struct {
		in      string
		trailed bool
	}{
		{`{"a":1}`, false},
		{"[1,2]\n\t ", false},
		{`{"a":1} garbage`, true},
		{"[1,2]]", true},
		{`{"a":1}}`, true},
		{`1 2`, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res := parseJSON(tt.in)
			if tt.trailed {
				assert.ErrorIs(t, res.err, errTrailingData)
				assert.False(t, res.ok())
				return
			}
			assert.NoError(t, res.err)
		})
	}
}

func TestJSONFieldAsymmetry(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		fieldsOK   bool
		structural bool
	}{
		{"type and version", `{"type":"t","version":"1"}`, true, true},
		{"type without version", `{"type":"t"}`, false, false},
		{"neither", `{"name":"x"}`, true, false},
		{"version only", `{"version":"1"}`, true, false},
		{"array", `[1,2]`, true, true},
		{"falsy type", `{"type":"","version":"1"}`, true, false},
		{"not json", `{oops`, true, false},
		{"trailing data", `{"type":"t","version":"1"} {}`, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate("config.json", tt.in, 0, 10)
			assert.Equal(t, tt.fieldsOK, r.JSONFieldsOK, "json_fields_ok")
			assert.Equal(t, tt.structural, r.StructuralOK, "structural_ok")
		})
	}
}

func TestJSONFieldsIgnoreExtensionCase(t *testing.T) {
	for _, path := range []string{"a.json", "A.JSON", "dir/b.Json"} {
		r := Validate(path, `{"type":"t"}`, 0, 10)
		assert.False(t, r.JSONFieldsOK, path)
	}
	assert.True(t, Validate("A.JSONL", `{"type":"t"}`+"\n", 0, 10).JSONFieldsOK)
}

func TestStructuralPerKind(t *testing.T) {
	tests := []struct {
		path string
		in   string
		want bool
	}{
		{"doc.md", "# a\n## b\n### c\nverify here\n", true},
		{"doc.md", "# a\n## b\nverify\n", false},
		{"doc.md", "# a\n## b\n### c\nno keyword\n", false},
		{"doc.md", "#### a\n#### b\n#### c\nevidence\n", false},
		{"m.mjs", "/** doc */\nexport const x = 1;\n", true},
		{"m.mjs", "export const x = 1;\n", false},
		{"s.js", "/**\n * doc\n */\nmodule.exports = {};\n", true},
		{"s.js", "/** doc */\nconst x = 1;\n", false},
		{"c.yaml", "a: 1\nb: 2\nc: 3\n", true},
		{"c.yml", "a: 1\nb: 2\n", false},
		{"notes.txt", "one\n\ntwo\nthree\n", true},
		{"notes.log", "one\n  \ntwo\n", false},
		{".gitkeep", "x", true},
		{"dir/a.keep", "", true},
		{"dir/.keep", "", false},
		{"Makefile", "all:\n", true},
		{"Makefile", " \n\t\n", false},
		{"image.png", "", true},
		{"a.json", `{"type":"x","version":"1"}` + "\n", true},
		{"a.json", `{"type":"x","version":"1"} garbage` + "\n", false},
		{"a.json", "[1,2]]\n", false},
		{"a.json", `{"a":1} {"b":2}` + "\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.in, func(t *testing.T) {
			r := Validate(tt.path, tt.in, 0, 100)
			assert.Equal(t, tt.want, r.StructuralOK)
		})
	}
}

func TestMeaningfulLengthInUTF16Units(t *testing.T) {
	g := New(DefaultRules())
	// Six emoji are six runes but twelve UTF-16 units.
	assert.True(t, g.isMeaningful("😀😀😀😀😀😀"))
	assert.False(t, g.isMeaningful("ééééééééééé"), "eleven BMP runes stay below the bound")
	assert.Equal(t, 4, utf16Len("a😀b"))
}

func TestDensity(t *testing.T) {
	meaningful := "this line is meaningful enough"
	short := "short"

	lines := func(parts ...string) string { return strings.Join(parts, "\n") }
	repeat := func(s string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = s
		}
		return out
	}

	t.Run("short content is exempt", func(t *testing.T) {
		r := Validate("a.md", lines(repeat(short, 9)...), 0, 100)
		assert.True(t, r.QualityOK)
	})

	t.Run("too few meaningful lines", func(t *testing.T) {
		in := lines(append(repeat(short, 8), repeat(meaningful, 2)...)...)
		r := Validate("a.md", in, 0, 100)
		assert.False(t, r.QualityOK)
	})

	t.Run("enough meaningful lines", func(t *testing.T) {
		in := lines(append(repeat(short, 6), repeat(meaningful, 4)...)...)
		r := Validate("a.md", in, 0, 100)
		assert.True(t, r.QualityOK)
	})

	t.Run("comment lines are not meaningful", func(t *testing.T) {
		in := lines(append(repeat("// a comment that is long", 6), repeat(meaningful, 4)...)...)
		r := Validate("a.js", in, 0, 100)
		assert.False(t, r.QualityOK, "4/10 is below the script minimum")
	})

	t.Run("filler fraction", func(t *testing.T) {
		in := lines(append(repeat("filler line with words", 3), repeat(meaningful, 7)...)...)
		r := Validate("a.txt", in, 0, 100)
		assert.False(t, r.QualityOK, "3/10 filler exceeds 0.25")
	})
}

func TestEvidencePathsRuleIsData(t *testing.T) {
	rules := DefaultRules()
	rules.Evidence.Pattern = regexp.MustCompile(`[A-Za-z./]*artifacts/[A-Za-z0-9._/-]+`)
	g := New(rules)

	assert.True(t, g.Validate("a.keep", "see artifacts/reports/x.json", 0, 5).EvPathsOK)
	assert.False(t, g.Validate("a.keep", "see ../artifacts/reports/x.json", 0, 5).EvPathsOK)
	assert.True(t, Validate("a.keep", "see ../artifacts/reports/x.json", 0, 5).EvPathsOK)
}

func TestLineBounds(t *testing.T) {
	in := "a\nb\nc\n"
	assert.Contains(t, Validate("a.keep", in, 4, 10).Failed(), CheckLineBounds)
	assert.Contains(t, Validate("a.keep", in, 0, 2).Failed(), CheckLineBounds)
	assert.Empty(t, Validate("a.keep", in, 3, 3).Failed())
}

// Adding a banned word to passing content can only turn ok false.
func TestGuardMonotonicity(t *testing.T) {
	gen := content.NewGenerator(nil, content.Options{})
	for _, p := range []string{"README.md", "notes.txt", "cfg.yaml", "mod.mjs"} {
		base := gen.Generate(p, 12)
		before := Validate(p, base, 12, 12)
		require.True(t, before.OK, "%s: %v", p, before.Failed())

		mutated := strings.Replace(base, "\n", " maybe\n", 1)
		after := Validate(p, mutated, 12, 12)
		assert.False(t, after.OK, p)
		assert.Equal(t, []string{FlagBannedWords}, after.BannedFlags)
	}
}

func TestGeneratedContentPassesGuard(t *testing.T) {
	floors := map[string]int{
		"docs/guide.md":      8,
		"config/app.json":    10,
		"data/events.jsonl":  1,
		"deploy/values.yml":  6,
		"deploy/values.yaml": 6,
		"src/index.mjs":      6,
		"src/legacy.js":      5,
		"notes/todo.txt":     3,
		"logs/app.log":       3,
		"assets/.keep":       1,
		"Dockerfile":         3,
		"scripts/run.sh":     3,
		"weird name (1).TXT": 3,
	}
	gen := content.NewGenerator(nil, content.Options{})

	for p, floor := range floors {
		for _, n := range []int{floor, floor + 1, floor + 4, 10, 25, 60} {
			if n < floor {
				continue
			}
			t.Run(fmt.Sprintf("%s/%d", p, n), func(t *testing.T) {
				out := gen.Generate(p, n)
				actual := CountLines(out)
				require.GreaterOrEqual(t, actual, n)

				r := Validate(p, out, n, max(n, actual))
				assert.True(t, r.OK, "failed checks: %v\n%s", r.Failed(), out)
			})
		}
	}
}
