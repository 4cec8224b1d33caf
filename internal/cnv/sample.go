// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cnv

import (
	"fmt"
	"strings"
	"unicode"
)

// Algorithms lists the tokens of the supported CNV calling algorithms.
var Algorithms = []string{"baseline", "bicseq2", "wisecondorx", "bluefuse"}

// NormalizeAlgorithm converts an algorithm name as displayed to users into
// its token: lower case, whitespace removed, any BIC-seq variant mapped to
// "bicseq2".
func NormalizeAlgorithm(display string) string {
	token := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, display)
	if strings.Contains(token, "bic") {
		return "bicseq2"
	}
	return token
}

// PrettyAlgorithm returns the human readable name of an algorithm token.
func PrettyAlgorithm(token string) string {
	switch strings.ToLower(token) {
	case "baseline":
		return "Baseline"
	case "bicseq2":
		return "BIC-seq2"
	case "wisecondorx":
		return "WISECONDORX"
	case "bluefuse":
		return "BlueFuse"
	}
	return token
}

// KnownAlgorithm reports whether token is one of Algorithms.
func KnownAlgorithm(token string) bool {
	for _, algorithm := range Algorithms {
		if algorithm == token {
			return true
		}
	}
	return false
}

// SampleName holds the parts of a sample identifier formatted as
// "Flowcell-Cycle-Embryo".  The cycle may itself contain dashes.
type SampleName struct {
	ID       string `json:"id"`
	Flowcell string `json:"flowcell"`
	Cycle    string `json:"cycle"`
	Embryo   string `json:"embryo"`
}

// ParseSample splits a sample identifier into its parts.  Identifiers with
// fewer than three parts cannot be split reliably; all parts are then the
// identifier itself.
func ParseSample(sample string) SampleName {
	tokens := strings.Split(sample, "-")
	if strings.TrimSpace(sample) == "" || len(tokens) < 3 {
		return SampleName{sample, sample, sample, sample}
	}
	return SampleName{
		ID:       sample,
		Flowcell: tokens[0],
		Cycle:    strings.Join(tokens[1:len(tokens)-1], "-"),
		Embryo:   tokens[len(tokens)-1],
	}
}

// DisplayName returns the name used in chart and report titles.
func (name SampleName) DisplayName() string {
	return name.Flowcell + "-" + name.Embryo
}

// BinsFileName returns the name of the bins file of a sample/algorithm pair.
func BinsFileName(sample, algorithm string) string {
	return fmt.Sprintf("%s_%s_bins.tsv", sample, algorithm)
}

// SegmentsFileName returns the name of the segments file of a
// sample/algorithm pair.
func SegmentsFileName(sample, algorithm string) string {
	return fmt.Sprintf("%s_%s_segments.tsv", sample, algorithm)
}

// Title returns the chart title for a sample, algorithm and chromosome
// filter (empty for all chromosomes).
func Title(sample, algorithm, chromosome string) string {
	scope := "All chromosomes"
	if chromosome != "" {
		scope = "Chromosome " + chromosome
	}
	return ParseSample(sample).DisplayName() + " -- " + PrettyAlgorithm(algorithm) + " -- " + scope
}
