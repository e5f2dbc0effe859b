package guard

import (
	"fmt"
	"strings"

	"composer/internal/content"
)

// verdict is the outcome of a structural rule. err is set when the verdict
// came from a parse failure; it is kept for debug logging only.
type verdict struct {
	ok  bool
	err error
}

func pass() verdict          { return verdict{ok: true} }
func when(cond bool) verdict { return verdict{ok: cond} }

func structural(kind content.Kind, s string) verdict {
	switch kind {
	case content.KindMarkdown:
		headings := len(headingPattern.FindAllStringIndex(s, -1))
		return when(headings >= minHeadings && verifyPattern.MatchString(s))

	case content.KindModule, content.KindScript:
		exports := esmExportPattern.MatchString(s) || cjsExportPattern.MatchString(s)
		return when(exports && blockCommentPattern.MatchString(s))

	case content.KindYAML:
		return when(len(keyValuePattern.FindAllStringIndex(s, -1)) >= minKeyValueLines)

	case content.KindJSON:
		res := parseJSON(s)
		if !res.ok() {
			return verdict{err: res.err}
		}
		if res.array() {
			return pass()
		}
		obj, isObj := res.object()
		if !isObj {
			return verdict{err: fmt.Errorf("top-level %T is neither object nor array", res.value)}
		}
		return when(truthy(obj["type"]) && truthy(obj["version"]))

	case content.KindJSONL:
		records := 0
		for i, line := range splitSegments(s) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if res := parseJSON(line); !res.ok() {
				return verdict{err: fmt.Errorf("line %d: %w", i+1, res.err)}
			}
			records++
		}
		return when(records > 0)

	case content.KindText:
		nonBlank := 0
		for _, line := range splitSegments(s) {
			if strings.TrimSpace(line) != "" {
				nonBlank++
			}
		}
		return when(nonBlank >= minTextLines)

	case content.KindBare:
		return when(strings.TrimSpace(s) != "")

	default: // KindPlaceholder, KindOther
		return pass()
	}
}

// jsonFields enforces "type present implies version present" on JSON
// objects. A missing type passes, and JSONL is never checked.
func jsonFields(kind content.Kind, s string) bool {
	if kind != content.KindJSON {
		return true
	}
	obj, ok := parseJSON(s).object()
	if !ok {
		return true
	}
	_, hasType := obj["type"]
	_, hasVersion := obj["version"]
	return !hasType || hasVersion
}
