// Package merge combines contributions from several packages: Resolve picks
// one winner per file, and DeepMerge combines structured documents.
package merge

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DeepMerge combines overlay onto base.
//
//   - two arrays concatenate, dropping elements whose JSON encoding was
//     already seen (the first occurrence wins);
//   - two maps merge recursively over the sorted union of their keys;
//   - anything else resolves to overlay.
//
// A key missing from one side takes the other side's value; an explicit nil
// is a value and wins like any other. Inputs must be acyclic.
func DeepMerge(base, overlay any) any {
	return merge(base, true, overlay, true)
}

func merge(base any, hasBase bool, overlay any, hasOverlay bool) any {
	if !hasOverlay {
		return base
	}
	if !hasBase {
		return overlay
	}

	if ba, ok := asSlice(base); ok {
		if oa, ok := asSlice(overlay); ok {
			return mergeSlices(ba, oa)
		}
	}
	if bm, ok := asMap(base); ok {
		if om, ok := asMap(overlay); ok {
			return mergeMaps(bm, om)
		}
	}
	return overlay
}

func mergeSlices(base, overlay []any) []any {
	seen := make(map[string]bool, len(base)+len(overlay))
	out := make([]any, 0, len(base)+len(overlay))
	for _, v := range append(append([]any{}, base...), overlay...) {
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	keys := make([]string, 0, len(base)+len(overlay))
	for k := range base {
		keys = append(keys, k)
	}
	for k := range overlay {
		if _, dup := base[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		bv, hasB := base[k]
		ov, hasO := overlay[k]
		out[k] = merge(bv, hasB, ov, hasO)
	}
	return out
}

// valueKey is the identity used for array de-duplication. Values that cannot
// be encoded fall back to their Go representation.
func valueKey(v any) string {
	data, err := json.Marshal(Normalize(v))
	if err != nil {
		return fmt.Sprintf("%T:%#v", v, v)
	}
	return string(data)
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		n, _ := Normalize(m).(map[string]any)
		return n, true
	default:
		return nil, false
	}
}

// Normalize converts decoded documents to the map[string]any / []any shape
// DeepMerge works on. Maps with non-string keys (as YAML can produce) get
// their keys formatted with fmt.Sprint.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
