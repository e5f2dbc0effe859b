// Package targets loads the per-file line targets and the rule set that drive
// a compose run.
package targets

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"composer/internal/content"
	"composer/internal/logging"
)

var (
	// ErrSpreadsheetUnsupported is returned when only a spreadsheet is
	// available; it must be exported to .json or .csv first.
	ErrSpreadsheetUnsupported = errors.New("spreadsheet targets are not supported; export to .json or .csv")

	// ErrTargetsMissing is returned when no target list exists for a path.
	ErrTargetsMissing = errors.New("line targets missing (.json/.csv)")

	// ErrCountTooLarge is returned for a line count above MaxLines.
	ErrCountTooLarge = errors.New("line count too large")
)

// MaxLines is the largest line count a target may ask for.
const MaxLines = 1_000_000

// Target is the line-count contract for one file.
type Target struct {
	File      string `json:"file"`
	Predicted int    `json:"predicted"`
	Required  int    `json:"required"`
}

// Column aliases, in precedence order.
var (
	predictedKeys = []string{"predicted_lines_by_constitution", "predicted_lines", "predicted"}
	requiredKeys  = []string{"required_lines_for_perfection", "required_lines", "required", "predicted"}
)

var knownExt = regexp.MustCompile(`(?i)\.(xlsx|csv|json)$`)

// Load reads the target list for path. The extension is only a hint: a
// sibling <stem>.json is preferred, then <stem>.csv.
func Load(path string) ([]Target, error) {
	stem := knownExt.ReplaceAllString(path, "")
	log := logging.Get(logging.CategoryTargets)

	if data, err := os.ReadFile(stem + ".json"); err == nil {
		log.Debug("loading targets from %s.json", stem)
		return ParseJSON(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	if data, err := os.ReadFile(stem + ".csv"); err == nil {
		log.Debug("loading targets from %s.csv", stem)
		return ParseCSV(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	if strings.EqualFold(content.Ext(path), ".xlsx") {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("load targets %s: %w", path, ErrSpreadsheetUnsupported)
		}
	}
	return nil, fmt.Errorf("load targets %s: %w", path, ErrTargetsMissing)
}

// ParseJSON decodes a JSON array of target rows.
func ParseJSON(data []byte) ([]Target, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse targets json: %w", err)
	}
	return Normalize(rows)
}

// ParseCSV decodes a CSV document whose first row names the columns.
func ParseCSV(data []byte) ([]Target, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse targets csv: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]any
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse targets csv: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return Normalize(rows)
}

// Normalize maps raw rows to targets. The first alias with a non-zero
// numeric value wins; rows without a file are rejected.
func Normalize(rows []map[string]any) ([]Target, error) {
	out := make([]Target, 0, len(rows))
	for i, row := range rows {
		file, _ := row["file"].(string)
		file = strings.TrimSpace(file)
		if file == "" {
			return nil, fmt.Errorf("target row %d: missing file", i)
		}
		predicted, err := firstCount(row, predictedKeys)
		if err != nil {
			return nil, fmt.Errorf("target row %d (%s): %w", i, file, err)
		}
		required, err := firstCount(row, requiredKeys)
		if err != nil {
			return nil, fmt.Errorf("target row %d (%s): %w", i, file, err)
		}
		out = append(out, Target{File: file, Predicted: predicted, Required: required})
	}
	return out, nil
}

func firstCount(row map[string]any, keys []string) (int, error) {
	for _, k := range keys {
		n, err := toCount(row[k])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", k, err)
		}
		if n != 0 {
			return n, nil
		}
	}
	return 0, nil
}

// toCount converts a cell to a non-negative line count; anything that is not
// a finite number counts as zero. Counts above MaxLines are an error.
func toCount(v any) (int, error) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, nil
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, nil
		}
		f = parsed
	default:
		return 0, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, nil
	}
	if f > MaxLines {
		return 0, fmt.Errorf("%w: %g > %d", ErrCountTooLarge, f, MaxLines)
	}
	return int(math.Floor(f)), nil
}
