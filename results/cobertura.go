// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Coverage provides a Cobertura coverage summary.
type Coverage struct {
	LineRate        float64 `json:"line_rate"`
	BranchRate      float64 `json:"branch_rate"`
	LinesCovered    int     `json:"lines_covered"`
	LinesValid      int     `json:"lines_valid"`
	BranchesCovered int     `json:"branches_covered"`
	BranchesValid   int     `json:"branches_valid"`
	Packages        int     `json:"packages"`
}

type cobertura struct {
	XMLName         xml.Name `xml:"coverage"`
	LineRate        float64  `xml:"line-rate,attr"`
	BranchRate      float64  `xml:"branch-rate,attr"`
	LinesCovered    int      `xml:"lines-covered,attr"`
	LinesValid      int      `xml:"lines-valid,attr"`
	BranchesCovered int      `xml:"branches-covered,attr"`
	BranchesValid   int      `xml:"branches-valid,attr"`
	Packages        []struct {
		Name string `xml:"name,attr"`
	} `xml:"packages>package"`
}

// ParseCobertura parses the summary of a Cobertura xml
// coverage report.
func ParseCobertura(r io.Reader) (*Coverage, error) {
	doc := new(cobertura)
	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("cobertura: %w", err)
	}
	return &Coverage{
		LineRate:        doc.LineRate,
		BranchRate:      doc.BranchRate,
		LinesCovered:    doc.LinesCovered,
		LinesValid:      doc.LinesValid,
		BranchesCovered: doc.BranchesCovered,
		BranchesValid:   doc.BranchesValid,
		Packages:        len(doc.Packages),
	}, nil
}

// ParseCoberturaFile parses the Cobertura file at path.
func ParseCoberturaFile(path string) (*Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCobertura(f)
}
