package guard

import "strings"

// splitSegments splits on "\n", treating "\r\n" as a single terminator. A
// trailing newline yields a final empty segment.
func splitSegments(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// CountLines returns the number of lines in s. The empty segment after a
// final newline is not a line, so "a\nb\n" and "a\nb" both count 2.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	segs := splitSegments(s)
	if segs[len(segs)-1] == "" {
		return len(segs) - 1
	}
	return len(segs)
}
