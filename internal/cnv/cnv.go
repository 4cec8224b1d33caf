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

// Package cnv defines copy-number-variation records (bins and segments) and
// decodes them from tab-separated files.
package cnv

import (
	"fmt"
	"strings"
)

// Category is the normalized copy-number state of a segment, and therefore
// of every bin the segment contains.
type Category int

const (
	NoChange Category = iota
	Loss
	Gain
)

// Categories lists every category in drawing order.
var Categories = []Category{NoChange, Loss, Gain}

var categoryNames = map[Category]string{
	NoChange: "no_change",
	Loss:     "loss",
	Gain:     "gain",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// MarshalText encodes c using its lower case name.  It allows categories to
// be used as JSON object keys.
func (c Category) MarshalText() ([]byte, error) {
	name, ok := categoryNames[c]
	if !ok {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a category name produced by MarshalText.
func (c *Category) UnmarshalText(text []byte) error {
	for category, name := range categoryNames {
		if name == string(text) {
			*c = category
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", text)
}

// NormalizeType maps a raw segment type, as written by the various calling
// algorithms, to a Category.  Matching is case-insensitive and anything not
// recognized is NoChange.
func NormalizeType(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "loss", "del", "deletion", "loh":
		return Loss
	case "gain", "dup", "duplication", "amp", "amplification":
		return Gain
	}
	return NoChange
}

// BinPoint is a single genomic bin with a copy-number estimate.  Position is
// the start of the bin; End is the end of the bin, or the start when the end
// column could not be read.
type BinPoint struct {
	Chromosome string  `json:"chromosome"`
	Position   int64   `json:"position"`
	End        int64   `json:"end"`
	CopyNumber float64 `json:"copyNumber"`
}

// Segment is a called genomic region.  Start and End are inclusive.
type Segment struct {
	Chromosome string   `json:"chromosome"`
	Start      int64    `json:"start"`
	End        int64    `json:"end"`
	CopyNumber float64  `json:"copyNumber"`
	RawType    string   `json:"rawType"`
	Type       Category `json:"type"`
	Mosaic     string   `json:"mosaic,omitempty"`
}

// Contains reports whether pos lies inside s.
func (s Segment) Contains(pos int64) bool {
	return s.Start <= pos && pos <= s.End
}

func (s Segment) String() string {
	return fmt.Sprintf("[segment:%s, start:%d, end:%d, type:%s]", s.Chromosome, s.Start, s.End, s.Type)
}
