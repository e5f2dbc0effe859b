package content

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

const (
	// DefaultClock is the timestamp stamped into every generated artifact.
	// Wall-clock time never enters generated output.
	DefaultClock = "2025-01-01T00:00:00Z"

	// DefaultReportsDir is where per-file evidence reports are written.
	DefaultReportsDir = "artifacts/reports"
)

// Digest returns the hex-encoded SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Hash16 is the short, stable identifier embedded in generated files.
func Hash16(relPath string) string {
	return Digest(relPath)[:16]
}

// SanitizeReportName replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeReportName(relPath string) string {
	var b strings.Builder
	b.Grow(len(relPath))
	for _, r := range relPath {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EvidencePath is the report location for relPath under reportsDir.
func EvidencePath(reportsDir, relPath string) string {
	if reportsDir == "" {
		reportsDir = DefaultReportsDir
	}
	return path.Join(reportsDir, SanitizeReportName(relPath)+".json")
}
