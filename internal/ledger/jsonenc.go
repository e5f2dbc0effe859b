package ledger

import (
	"bytes"
	"encoding/json"
	"sort"
)

// marshalIndent encodes v with two-space indentation, no HTML escaping and a
// trailing newline.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// record is a JSON object whose leading keys keep their order, followed by
// the remaining fields sorted by key. Leading keys win over fields with the
// same name.
type record struct {
	lead   []field
	fields map[string]any
}

type field struct {
	key   string
	value any
}

func (r record) MarshalJSON() ([]byte, error) {
	seen := make(map[string]bool, len(r.lead))
	all := make([]field, 0, len(r.lead)+len(r.fields))
	for _, f := range r.lead {
		seen[f.key] = true
		all = append(all, f)
	}
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		all = append(all, field{k, r.fields[k]})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range all {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := encodeCompact(f.key)
		if err != nil {
			return nil, err
		}
		v, err := encodeCompact(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
