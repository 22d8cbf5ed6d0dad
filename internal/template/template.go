// Package template substitutes {var} placeholders in block payloads.
package template

import (
	"regexp"
	"sort"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// Render replaces every {name} with vars[name]. Unbound placeholders are kept literally so
// authors can spot them, and substituted values are never expanded again.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Names returns the distinct placeholder names used in text, sorted.
func Names(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
