package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// STRUCTURED OBJECT (.json)
// =============================================================================

type jsonDeterminism struct {
	Clock string `json:"clock"`
	Seed  uint32 `json:"seed"`
}

type jsonMember struct {
	key   string
	value any
}

// renderJSON writes one top-level member per line, with nested values kept
// inline, so each padding member adds exactly one line. The smallest
// document has eight lines.
func renderJSON(ctx *renderCtx, n int) []string {
	members := []jsonMember{
		{"type", "generated_config"},
		{"version", "1.0.0"},
		{"path", ctx.relPath},
		{"hash16", ctx.hash16},
		{"determinism", jsonDeterminism{Clock: ctx.clock, Seed: ctx.seed}},
		{"evidence", []string{ctx.evidence}},
	}
	for i := 0; len(members)+2 < n; i++ {
		members = append(members, jsonMember{
			key:   fmt.Sprintf("detail_%d", i),
			value: fmt.Sprintf("entry %d %s %s", i, ctx.hash6, ctx.phrase()),
		})
	}

	lines := make([]string, 0, len(members)+2)
	lines = append(lines, "{")
	for i, m := range members {
		line := "  " + encodeJSON(m.key, false) + ": " + encodeJSON(m.value, false)
		if i < len(members)-1 {
			line += ","
		}
		lines = append(lines, line)
	}
	return append(lines, "}")
}

// =============================================================================
// LINE RECORDS (.jsonl)
// =============================================================================

type jsonlMeta struct {
	Type   string `json:"type"`
	Path   string `json:"path"`
	Hash16 string `json:"hash16"`
	TS     string `json:"ts"`
}

type jsonlRecord struct {
	Type     string `json:"type"`
	Seq      int    `json:"seq"`
	Path     string `json:"path"`
	Evidence string `json:"evidence"`
	Note     string `json:"note"`
	TS       string `json:"ts"`
}

func renderJSONL(ctx *renderCtx, n int) []string {
	lines := []string{encodeJSON(jsonlMeta{Type: "meta", Path: ctx.relPath, Hash16: ctx.hash16, TS: ctx.clock}, false)}
	for seq := 1; len(lines) < n; seq++ {
		lines = append(lines, encodeJSON(jsonlRecord{
			Type:     "record",
			Seq:      seq,
			Path:     ctx.relPath,
			Evidence: ctx.evidence,
			Note:     ctx.phrase(),
			TS:       ctx.clock,
		}, false))
	}
	return lines
}

// =============================================================================
// LINE-ORIENTED TEMPLATES
// =============================================================================

// fill pads base up to n lines and then trims to exactly n.
func fill(base []string, n int, pad func(lineNo int) string) []string {
	lines := base
	for len(lines) < n {
		lines = append(lines, pad(len(lines)))
	}
	return lines[:n]
}

func renderMarkdown(ctx *renderCtx, n int) []string {
	base := []string{
		"# " + ctx.relPath,
		"Generated deterministically: hash16 " + ctx.hash16 + ", ts " + ctx.clock + ".",
		"## Purpose",
		"This document is produced by the orchestrator with reproducible rules.",
		"## Verify",
		"Evidence: " + ctx.evidence,
		"## Notes",
		"Content is deterministic; quality and structural gates apply to every line.",
	}
	return fill(base, n, func(i int) string {
		return fmt.Sprintf("- detail %d %s %s", i, ctx.hash6, ctx.phrase())
	})
}

func renderYAML(ctx *renderCtx, n int) []string {
	base := []string{
		"type: generated_config",
		`version: "1.0.0"`,
		"path: " + strconv.Quote(ctx.relPath),
		"hash16: " + strconv.Quote(ctx.hash16),
		"determinism: " + strconv.Quote(ctx.clock),
		"evidence:",
		"  - " + strconv.Quote(ctx.evidence),
	}
	return fill(base, n, func(i int) string {
		return fmt.Sprintf("extra_key_%d: %s", i, strconv.Quote(ctx.hash6[:4]+" "+ctx.phrase()))
	})
}

func renderModule(ctx *renderCtx, n int) []string {
	base := []string{
		"/**",
		" * Deterministic module for " + ctx.relPath,
		" * Evidence: " + ctx.evidence,
		" */",
		fmt.Sprintf("export function moduleInfo() { return { path: '%s', hash16: '%s', ts: '%s' }; }",
			jsEscape(ctx.relPath), ctx.hash16, ctx.clock),
		"export function compute(x) { return (x ?? 0) ^ 0x5a5a; }",
	}
	return fill(base, n, func(i int) string {
		return fmt.Sprintf("export const detail%d = '%s %s';", i, ctx.hash6, ctx.phrase())
	})
}

func renderScript(ctx *renderCtx, n int) []string {
	base := []string{
		"/**",
		" * Deterministic script for " + ctx.relPath,
		" * Evidence: " + ctx.evidence,
		" */",
		fmt.Sprintf("module.exports = { info: () => ({ path: '%s', hash16: '%s', ts: '%s' }) };",
			jsEscape(ctx.relPath), ctx.hash16, ctx.clock),
	}
	return fill(base, n, func(i int) string {
		return fmt.Sprintf("module.exports.detail%d = '%s %s';", i, ctx.hash6, ctx.phrase())
	})
}

func renderText(ctx *renderCtx, n int) []string {
	base := []string{
		"File: " + ctx.relPath,
		"hash16: " + ctx.hash16,
		"ts: " + ctx.clock,
		"Evidence: " + ctx.evidence,
	}
	return fill(base, n, func(i int) string {
		return fmt.Sprintf("statement %d %s %s", i, ctx.hash6, ctx.phrase())
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// encodeJSON renders v without HTML escaping and without the encoder's
// trailing newline.
func encodeJSON(v any, indent bool) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		// Only plain structs of strings and ints reach here.
		panic(fmt.Sprintf("content: encode %T: %v", v, err))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func jsEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
