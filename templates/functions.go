// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package templates

import (
	"encoding/base64"
	"fmt"
	"strings"
	"text/template"
)

// Functions provides the functions available to file
// templates. Keep this list small; templates render step
// definitions, not logic.
func Functions() template.FuncMap {
	return template.FuncMap{
		"getAsBase64": getAsBase64,
		"default":     defaultValue,
		"lower":       strings.ToLower,
		"upper":       strings.ToUpper,
		"trim":        strings.TrimSpace,
		"quote":       quote,
	}
}

func getAsBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// defaultValue returns v, or def when v is nil or empty.
func defaultValue(def, v any) any {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		if t == "" {
			return def
		}
	}
	return v
}

// quote renders v as a single quoted yaml scalar.
func quote(v any) string {
	s := ""
	if v != nil {
		s = fmt.Sprint(v)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
