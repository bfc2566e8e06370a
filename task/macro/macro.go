// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package macro expands $(Name) variable macros in strings
// and in decoded map structures.
package macro

import (
	"maps"
	"slices"
	"strings"
)

// Lookup returns the value of the named variable.
type Lookup func(name string) (string, bool)

// Map returns a case-insensitive Lookup backed by m. When
// names in m differ only in case, the last in Keys order wins.
func Map(m map[string]string) Lookup {
	folded := make(map[string]string, len(m))
	for _, k := range Keys(m) {
		folded[strings.ToLower(k)] = m[k]
	}
	return func(name string) (string, bool) {
		v, ok := folded[strings.ToLower(name)]
		return v, ok
	}
}

// Keys returns the names in m in sorted order. Names that
// differ only in case sort upper case first, so a lower case
// name, as read from the environment, is applied last.
func Keys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

// Set sets the named variable in m, replacing any variable
// whose name differs only in case.
func Set(m map[string]string, name, value string) {
	for k := range m {
		if strings.EqualFold(k, name) {
			delete(m, k)
		}
	}
	m[name] = value
}

// Merge sets the variables of src in dst.
func Merge(dst, src map[string]string) {
	for _, k := range Keys(src) {
		Set(dst, k, src[k])
	}
}

// Expand evaluates macros in the map structure.
func Expand(data map[string]any, lookup Lookup) (missing []string) {
	var walk func(any) (bool, string)

	// helper function to walk the map and replace
	// macros in child values.
	walk = func(i any) (_ bool, _ string) {
		switch v := i.(type) {
		case string:
			if !strings.Contains(v, "$(") {
				return
			}
			s, m := ExpandString(v, lookup)
			missing = append(missing, m...)
			return true, s
		case []any:
			for i := 0; i < len(v); i++ {
				if ok, updated := walk(v[i]); ok {
					v[i] = updated
				}
			}
		case map[string]any:
			for key, value := range v {
				if ok, updated := walk(value); ok {
					v[key] = updated
				}
			}
		}
		return
	}

	// walk the map
	walk(data)
	return missing
}

// ExpandString replaces each $(Name) in s with the variable
// value. Unknown macros are left untouched and returned.
// Expansion is a single pass; values are not re-expanded.
func ExpandString(s string, lookup Lookup) (string, []string) {
	if !strings.Contains(s, "$(") {
		return s, nil
	}
	var (
		b       strings.Builder
		missing []string
	)
	for {
		start := strings.Index(s, "$(")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start:], ')')
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start
		name := s[start+2 : end]
		b.WriteString(s[:start])
		if !isName(name) {
			// not a macro, such as $(command substitution)
			b.WriteString(s[start : start+2])
			s = s[start+2:]
			continue
		}
		if value, ok := lookup(name); ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+1])
			missing = append(missing, name)
		}
		s = s[end+1:]
	}
	return b.String(), missing
}

// ExpandMap expands the macros in each map value.
func ExpandMap(m map[string]string, lookup Lookup) (map[string]string, []string) {
	if m == nil {
		return nil, nil
	}
	var missing []string
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, miss := ExpandString(v, lookup)
		out[k] = s
		missing = append(missing, miss...)
	}
	return out, missing
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
