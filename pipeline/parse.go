// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/ghodss/yaml"
)

// Parse parses a yaml or json step list from io.Reader r.
// The list may be a bare sequence or a document with a
// top-level steps key.
func Parse(r io.Reader) ([]*Step, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b, err = yaml.YAMLToJSON(b)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	if b[0] == '{' {
		doc := struct {
			Steps []*Step `json:"steps"`
		}{}
		err = json.Unmarshal(b, &doc)
		return doc.Steps, err
	}
	var out []*Step
	err = json.Unmarshal(b, &out)
	return out, err
}

// ParseBytes parses the step list from bytes b.
func ParseBytes(b []byte) ([]*Step, error) {
	return Parse(
		bytes.NewBuffer(b),
	)
}

// ParseString parses the step list from string s.
func ParseString(s string) ([]*Step, error) {
	return ParseBytes(
		[]byte(s),
	)
}

// ParseFile parses the step list from the file at path.
func ParseFile(p string) ([]*Step, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// MarshalSteps renders the step list as a yaml document
// with a top-level steps key.
func MarshalSteps(steps []*Step) ([]byte, error) {
	doc := struct {
		Steps []*Step `json:"steps"`
	}{steps}
	return yaml.Marshal(doc)
}
