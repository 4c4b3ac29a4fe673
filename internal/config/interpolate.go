package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// LookupFunc reads one environment variable.
type LookupFunc func(string) (string, bool)

// Interpolate replaces every {name} in s with vars[name], falling back to
// lookup. Unresolved names are reported together in one ConfigError.
func Interpolate(path, s string, vars map[string]string, lookup LookupFunc) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if lookup != nil {
			if v, ok := lookup(name); ok && v != "" {
				return v
			}
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", configErr(path, "unresolved placeholder(s) %s in %q", strings.Join(dedupe(missing), ", "), s)
	}
	return out, nil
}

// InterpolateAll applies Interpolate to each element of values.
func InterpolateAll(path string, values []string, vars map[string]string, lookup LookupFunc) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		r, err := Interpolate(fmt.Sprintf("%s[%d]", path, i), v, vars, lookup)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
