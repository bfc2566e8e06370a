// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	variablePrefix = "v:"
	statusPrefix   = "s:"
	literalPrefix  = "l:"
	functionPrefix = "fn_"
)

// status functions are bound as parameters because they
// take no arguments at step level.
var statusFuncs = map[string]string{
	"succeeded":         "succeeded",
	"failed":            "failed",
	"succeededorfailed": "succeededOrFailed",
	"always":            "always",
	"canceled":          "canceled",
}

// translate rewrites a condition into the govaluate dialect:
// variables['X'] becomes [v:X], succeeded() becomes
// [s:succeeded] and eq(...) becomes fn_eq(...). The single
// quoted string literals are returned separately and bound as
// [l:N], so govaluate never parses them as dates.
func translate(expr string) (string, []string, error) {
	var (
		out      strings.Builder
		literals []string
		runes    = []rune(expr)
		n        = len(runes)
	)
	for i := 0; i < n; {
		r := runes[i]
		switch {
		case unicode.IsSpace(r), r == '(', r == ')', r == ',':
			out.WriteRune(r)
			i++

		case r == '\'':
			s, next, err := readString(runes, i)
			if err != nil {
				return "", nil, err
			}
			out.WriteString(param(literalPrefix + strconv.Itoa(len(literals))))
			literals = append(literals, s)
			i = next

		case r == '-' || unicode.IsDigit(r):
			start := i
			i++
			for i < n && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			out.WriteString(string(runes[start:i]))

		case isIdentStart(r):
			start := i
			for i < n && isIdentPart(runes[i]) {
				i++
			}
			ident := string(runes[start:i])
			lower := strings.ToLower(ident)

			switch {
			case lower == "true", lower == "false":
				out.WriteString(lower)

			case strings.HasPrefix(lower, "variables."):
				out.WriteString(param(variablePrefix + ident[len("variables."):]))

			case lower == "variables":
				name, next, err := readIndex(runes, i)
				if err != nil {
					return "", nil, err
				}
				out.WriteString(param(variablePrefix + name))
				i = next

			case statusFuncs[lower] != "":
				next, err := readEmptyArgs(runes, i, ident)
				if err != nil {
					return "", nil, err
				}
				out.WriteString(param(statusPrefix + statusFuncs[lower]))
				i = next

			case functions[functionPrefix+lower] != nil:
				out.WriteString(functionPrefix + lower)

			default:
				return "", nil, fmt.Errorf("unrecognized value: '%s'", ident)
			}

		default:
			return "", nil, fmt.Errorf("unexpected symbol: '%c'", r)
		}
	}
	return out.String(), literals, nil
}

// readString reads a single quoted string starting at i. Two
// consecutive quotes escape a quote.
func readString(runes []rune, i int) (string, int, error) {
	var b strings.Builder
	for j := i + 1; j < len(runes); j++ {
		if runes[j] != '\'' {
			b.WriteRune(runes[j])
			continue
		}
		if j+1 < len(runes) && runes[j+1] == '\'' {
			b.WriteRune('\'')
			j++
			continue
		}
		return b.String(), j + 1, nil
	}
	return "", 0, fmt.Errorf("unclosed string literal")
}

// readIndex reads an index expression such as ['Name'] or
// ["Name"] following the variables keyword.
func readIndex(runes []rune, i int) (string, int, error) {
	i = skipSpace(runes, i)
	if i >= len(runes) || runes[i] != '[' {
		return "", 0, fmt.Errorf("expected index after 'variables'")
	}
	i = skipSpace(runes, i+1)
	if i >= len(runes) || (runes[i] != '\'' && runes[i] != '"') {
		return "", 0, fmt.Errorf("expected quoted variable name")
	}
	q := runes[i]
	start := i + 1
	end := start
	for end < len(runes) && runes[end] != q {
		end++
	}
	if end >= len(runes) {
		return "", 0, fmt.Errorf("unclosed variable name")
	}
	name := string(runes[start:end])
	i = skipSpace(runes, end+1)
	if i >= len(runes) || runes[i] != ']' {
		return "", 0, fmt.Errorf("expected ']' after variable name")
	}
	return name, i + 1, nil
}

// readEmptyArgs consumes the empty argument list of a status
// function.
func readEmptyArgs(runes []rune, i int, name string) (int, error) {
	i = skipSpace(runes, i)
	if i >= len(runes) || runes[i] != '(' {
		return 0, fmt.Errorf("expected '(' after %s", name)
	}
	i = skipSpace(runes, i+1)
	if i >= len(runes) || runes[i] != ')' {
		return 0, fmt.Errorf("%s does not accept arguments at step level", name)
	}
	return i + 1, nil
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

func param(name string) string {
	return "[" + name + "]"
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
