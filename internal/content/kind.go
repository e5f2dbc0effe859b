// Package content classifies repository paths into content kinds and renders
// deterministic placeholder files for them.
//
// Every decision that depends on a file's extension (which template renders
// it, which structural rule validates it, how dense it must be) goes through
// Classify, so the extension tables live in one place.
package content

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind is the closed set of content families the orchestrator knows about.
type Kind int

const (
	KindOther       Kind = iota // any extension without a dedicated rule
	KindJSON                    // .json, structured object
	KindJSONL                   // .jsonl, line records
	KindMarkdown                // .md, prose document
	KindYAML                    // .yml / .yaml, key-value
	KindModule                  // .mjs, ES module source
	KindScript                  // .js, CommonJS source
	KindText                    // .txt / .log
	KindPlaceholder             // .keep
	KindBare                    // no extension
)

var kindNames = map[Kind]string{
	KindOther:       "other",
	KindJSON:        "json",
	KindJSONL:       "jsonl",
	KindMarkdown:    "markdown",
	KindYAML:        "yaml",
	KindModule:      "module",
	KindScript:      "script",
	KindText:        "text",
	KindPlaceholder: "placeholder",
	KindBare:        "bare",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kindsByExt = map[string]Kind{
	".json":  KindJSON,
	".jsonl": KindJSONL,
	".md":    KindMarkdown,
	".yml":   KindYAML,
	".yaml":  KindYAML,
	".mjs":   KindModule,
	".js":    KindScript,
	".txt":   KindText,
	".log":   KindText,
	".keep":  KindPlaceholder,
}

// Ext returns the extension of the last path element, including the dot.
// Leading dots do not start an extension, so ".gitignore" has none while
// ".eslintrc.json" has ".json".
func Ext(relPath string) string {
	base := path.Base(filepath.ToSlash(relPath))
	start := 0
	for start < len(base) && base[start] == '.' {
		start++
	}
	idx := strings.LastIndex(base[start:], ".")
	if idx < 0 {
		return ""
	}
	return base[start+idx:]
}

// Classify maps a relative path to its content kind. Extension matching is
// case-insensitive.
func Classify(relPath string) Kind {
	ext := strings.ToLower(Ext(relPath))
	if ext == "" {
		return KindBare
	}
	if k, ok := kindsByExt[ext]; ok {
		return k
	}
	return KindOther
}
