// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

var functions map[string]govaluate.ExpressionFunction

func init() {
	functions = map[string]govaluate.ExpressionFunction{
		functionPrefix + "and":        fnAnd,
		functionPrefix + "or":         fnOr,
		functionPrefix + "not":        fnNot,
		functionPrefix + "xor":        fnXor,
		functionPrefix + "eq":         compareFn("eq", func(c int) bool { return c == 0 }),
		functionPrefix + "ne":         compareFn("ne", func(c int) bool { return c != 0 }),
		functionPrefix + "gt":         orderFn("gt", func(c int) bool { return c > 0 }),
		functionPrefix + "ge":         orderFn("ge", func(c int) bool { return c >= 0 }),
		functionPrefix + "lt":         orderFn("lt", func(c int) bool { return c < 0 }),
		functionPrefix + "le":         orderFn("le", func(c int) bool { return c <= 0 }),
		functionPrefix + "contains":   stringFn("contains", strings.Contains),
		functionPrefix + "startswith": stringFn("startsWith", strings.HasPrefix),
		functionPrefix + "endswith":   stringFn("endsWith", strings.HasSuffix),
		functionPrefix + "in":         fnIn,
		functionPrefix + "notin":      fnNotIn,
		functionPrefix + "coalesce":   fnCoalesce,
	}
}

func fnAnd(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("and requires at least 2 arguments")
	}
	for _, arg := range args {
		if !toBool(arg) {
			return false, nil
		}
	}
	return true, nil
}

func fnOr(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("or requires at least 2 arguments")
	}
	for _, arg := range args {
		if toBool(arg) {
			return true, nil
		}
	}
	return false, nil
}

func fnNot(args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("not requires exactly 1 argument")
	}
	return !toBool(args[0]), nil
}

func fnXor(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("xor requires exactly 2 arguments")
	}
	return toBool(args[0]) != toBool(args[1]), nil
}

func fnIn(args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("in requires at least 1 argument")
	}
	for _, arg := range args[1:] {
		if c, ok := compare(args[0], arg); ok && c == 0 {
			return true, nil
		}
	}
	return false, nil
}

func fnNotIn(args ...interface{}) (interface{}, error) {
	found, err := fnIn(args...)
	if err != nil {
		return nil, err
	}
	return !found.(bool), nil
}

func fnCoalesce(args ...interface{}) (interface{}, error) {
	for _, arg := range args {
		if s, ok := arg.(string); ok && s == "" {
			continue
		}
		if arg != nil {
			return arg, nil
		}
	}
	return "", nil
}

// compareFn returns an equality function. Operands that cannot
// be converted are not equal.
func compareFn(name string, accept func(int) bool) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly 2 arguments", name)
		}
		c, ok := compare(args[0], args[1])
		if !ok {
			c = 1
		}
		return accept(c), nil
	}
}

// orderFn returns an ordering function. Operands that cannot
// be converted are an error.
func orderFn(name string, accept func(int) bool) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly 2 arguments", name)
		}
		c, ok := compare(args[0], args[1])
		if !ok {
			return nil, fmt.Errorf("%s: cannot compare %v and %v", name, args[0], args[1])
		}
		return accept(c), nil
	}
}

func stringFn(name string, fn func(s, substr string) bool) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s requires exactly 2 arguments", name)
		}
		a := strings.ToLower(toString(args[0]))
		b := strings.ToLower(toString(args[1]))
		return fn(a, b), nil
	}
}

// compare converts the right operand to the type of the left
// operand and compares them. Strings compare case-insensitively.
func compare(left, right interface{}) (int, bool) {
	switch l := left.(type) {
	case bool:
		r := toBool(right)
		switch {
		case l == r:
			return 0, true
		case !l:
			return -1, true
		default:
			return 1, true
		}
	case float64:
		r, ok := toNumber(right)
		if !ok {
			return 0, false
		}
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		default:
			return 0, true
		}
	default:
		return strings.Compare(
			strings.ToLower(toString(left)),
			strings.ToLower(toString(right)),
		), true
	}
}

func toBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
