package targets

import "composer/internal/content"

// NoExt is the grouping key for files without an extension.
const NoExt = ".noext"

// RawExt returns the extension of file exactly as written (case preserved).
func RawExt(file string) string {
	return content.Ext(file)
}

// Subset picks up to n targets spread across extensions: targets are grouped
// by raw extension in first-seen order and drained round-robin. n <= 0
// returns the list unchanged.
func Subset(list []Target, n int) []Target {
	if n <= 0 {
		return list
	}

	var order []string
	queues := make(map[string][]Target)
	for _, t := range list {
		ext := RawExt(t.File)
		if ext == "" {
			ext = NoExt
		}
		if _, ok := queues[ext]; !ok {
			order = append(order, ext)
		}
		queues[ext] = append(queues[ext], t)
	}

	out := make([]Target, 0, min(n, len(list)))
	for len(out) < n {
		progressed := false
		for _, ext := range order {
			if len(out) >= n {
				break
			}
			if q := queues[ext]; len(q) > 0 {
				out = append(out, q[0])
				queues[ext] = q[1:]
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
