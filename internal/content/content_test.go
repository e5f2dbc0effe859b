package content

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExt(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"README.md", ".md"},
		{"dir/file.tar.gz", ".gz"},
		{"Makefile", ""},
		{".gitignore", ""},
		{"dir/.keep", ""},
		{".eslintrc.json", ".json"},
		{"trailing.", "."},
		{`win\path\x.yml`, ".yml"},
		{"a.b/c", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Ext(tt.path))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"a.json", KindJSON},
		{"A.JSON", KindJSON},
		{"a.jsonl", KindJSONL},
		{"a.md", KindMarkdown},
		{"a.yml", KindYAML},
		{"a.YAML", KindYAML},
		{"a.mjs", KindModule},
		{"a.js", KindScript},
		{"a.txt", KindText},
		{"a.log", KindText},
		{"a.keep", KindPlaceholder},
		{"Dockerfile", KindBare},
		{".env", KindBare},
		{"a.go", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
	assert.Equal(t, "markdown", KindMarkdown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestSanitizeReportName(t *testing.T) {
	assert.Equal(t, "docs_guide.md", SanitizeReportName("docs/guide.md"))
	assert.Equal(t, "a__b_c.txt", SanitizeReportName("a  b/c.txt"))
	assert.Equal(t, "_.._x-y_z", SanitizeReportName("/../x-y_z"))
	assert.Equal(t, "caf_.md", SanitizeReportName("café.md"))
	assert.Equal(t, "artifacts/reports/docs_guide.md.json", EvidencePath("", "docs/guide.md"))
	assert.Equal(t, "out/r/a.txt.json", EvidencePath("out/r", "a.txt"))
}

func TestHash16(t *testing.T) {
	h := Hash16("README.md")
	assert.Len(t, h, 16)
	assert.Equal(t, Digest("README.md")[:16], h)
	assert.NotEqual(t, h, Hash16("README.MD"))
}

func TestGenerateDeterministic(t *testing.T) {
	g1 := NewGenerator([]map[string]any{{"id": "r1"}}, Options{})
	g2 := NewGenerator(nil, Options{})

	for _, p := range []string{"a.md", "b.json", "c.jsonl", "d.yaml", "e.mjs", "f.js", "g.txt", "Makefile"} {
		for _, n := range []int{0, 1, 7, 30} {
			assert.Equal(t, g1.Generate(p, n), g1.Generate(p, n), "%s/%d", p, n)
			assert.Equal(t, g1.Generate(p, n), g2.Generate(p, n), "rules do not affect output")
		}
	}
}

func TestGenerateSeedChangesPadding(t *testing.T) {
	a := NewGenerator(nil, Options{Seed: 1}).Generate("notes.txt", 40)
	b := NewGenerator(nil, Options{Seed: 2}).Generate("notes.txt", 40)
	assert.NotEqual(t, a, b)
}

func countLines(s string) int {
	return strings.Count(s, "\n")
}

func TestGenerateMeetsTarget(t *testing.T) {
	g := NewGenerator(nil, Options{})
	lineOriented := []string{"a.md", "c.jsonl", "d.yml", "e.mjs", "f.js", "g.txt", "h.log", "i.keep", "Dockerfile", "j.go"}

	for _, p := range lineOriented {
		for _, n := range []int{1, 3, 8, 12, 50} {
			out := g.Generate(p, n)
			require.True(t, strings.HasSuffix(out, "\n"), p)
			assert.Equal(t, n, countLines(out), "%s: line templates stop at the target", p)
		}
	}

	for _, n := range []int{1, 7, 8, 10, 16, 40} {
		out := g.Generate("cfg.json", n)
		assert.Equal(t, max(n, 8), countLines(out), "json grows one member per line")
	}
}

func TestGenerateEmbedsProvenance(t *testing.T) {
	g := NewGenerator(nil, Options{})
	for _, p := range []string{"docs/a.md", "cfg/b.json", "c.jsonl", "d.yaml", "e.mjs", "f.js", "g.txt"} {
		out := g.Generate(p, 20)
		assert.Contains(t, out, p)
		assert.Contains(t, out, Hash16(p))
		assert.Contains(t, out, DefaultClock)
		assert.Contains(t, out, EvidencePath("", p))
	}
}

func TestGenerateJSONShape(t *testing.T) {
	out := NewGenerator(nil, Options{Seed: 7, Clock: "2030-01-01T00:00:00Z"}).Generate("x.json", 30)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "generated_config", doc["type"])
	assert.Equal(t, "1.0.0", doc["version"])
	assert.Equal(t, map[string]any{"clock": "2030-01-01T00:00:00Z", "seed": float64(7)}, doc["determinism"])
	assert.Len(t, doc, 28)
	assert.Contains(t, doc, "detail_21")
}

func TestGenerateJSONLRecordsParse(t *testing.T) {
	out := NewGenerator(nil, Options{}).Generate("events.jsonl", 5)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	for i, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line %d", i)
		assert.Equal(t, "events.jsonl", rec["path"])
	}
}

func TestGenerateNegativeTarget(t *testing.T) {
	out := NewGenerator(nil, Options{}).Generate("a.txt", -3)
	assert.Equal(t, "\n", out)
}

func TestGeneratorOptionsDefaults(t *testing.T) {
	g := NewGenerator(make([]map[string]any, 3), Options{})
	assert.Equal(t, 3, g.RuleCount())
	assert.Equal(t, Options{Seed: 1337, Clock: DefaultClock, ReportsDir: DefaultReportsDir}, g.Options())
}
