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

// Package genomics contains definitions related to the human reference
// chromosomes used when concatenating per-chromosome data into a single
// linear genome.
package genomics

import (
	"fmt"
	"strings"
)

// Chromosomes is the canonical chromosome order used for concatenation and
// layout.  It must not be modified.
var Chromosomes = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "X", "Y",
}

var ranks = func() map[string]int {
	m := make(map[string]int, len(Chromosomes))
	for i, name := range Chromosomes {
		m[name] = i
	}
	return m
}()

// Rank returns the position of chrom in the canonical order, or -1 if chrom
// is not a canonical chromosome name.
func Rank(chrom string) int {
	if i, ok := ranks[chrom]; ok {
		return i
	}
	return -1
}

// NormalizeChromosome strips a leading case-insensitive "chr" prefix from
// token and upper-cases the sex chromosomes.  The boolean result reports
// whether the normalized name is one of the canonical chromosomes.
func NormalizeChromosome(token string) (string, bool) {
	name := strings.TrimSpace(token)
	if len(name) >= 3 && strings.EqualFold(name[:3], "chr") {
		name = name[3:]
	}
	switch name {
	case "x":
		name = "X"
	case "y":
		name = "Y"
	}
	_, ok := ranks[name]
	return name, ok
}

// ParseFilter parses a chromosome filter as typed by a user.  An empty
// result means that all chromosomes are in scope.
func ParseFilter(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all chromosome", "all chromosomes":
		return "", nil
	}
	name, ok := NormalizeChromosome(s)
	if !ok {
		return "", fmt.Errorf("unknown chromosome %q", s)
	}
	return name, nil
}
