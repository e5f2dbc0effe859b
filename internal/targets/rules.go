package targets

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Rule is one opaque rule object from the rule set.
type Rule = map[string]any

// LoadRules reads a JSONL rule set: one JSON object per non-blank line, in
// file order.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	var rules []Rule
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r Rule
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("load rules: %s:%d: %w", path, lineNo, err)
		}
		rules = append(rules, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rules, nil
}
