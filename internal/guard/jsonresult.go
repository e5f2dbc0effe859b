package guard

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// jsonResult is the outcome of parsing a document: either a value or the
// parse error. Checks inspect it instead of recovering from failures.
type jsonResult struct {
	value any
	err   error
}

func parseJSON(s string) jsonResult {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return jsonResult{err: err}
	}
	// Anything after the first value, valid token or not, is a parse error.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return jsonResult{err: errTrailingData}
	}
	return jsonResult{value: v}
}

func (r jsonResult) ok() bool { return r.err == nil }

func (r jsonResult) object() (map[string]any, bool) {
	if r.err != nil {
		return nil, false
	}
	m, ok := r.value.(map[string]any)
	return m, ok
}

func (r jsonResult) array() bool {
	if r.err != nil {
		return false
	}
	_, ok := r.value.([]any)
	return ok
}

// truthy follows the usual JSON truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
