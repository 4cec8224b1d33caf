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

// Package render turns decoded bins and segments into the categorized model
// that charts are drawn from.
package render

import (
	"encoding/json"
	"sort"

	"github.com/googlegenomics/cnvview/internal/axis"
	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/genomics"
	"github.com/googlegenomics/cnvview/internal/layout"
	"github.com/googlegenomics/cnvview/internal/segindex"
)

// Point is a bin placed on the chart.  X is the global position and Y the
// copy number.  Points encode to JSON as [x, y] pairs.
type Point struct {
	X, Y float64
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// Bar is a segment placed on the chart.
type Bar struct {
	cnv.Segment
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

// Stats counts what happened to the rows of the input files.
type Stats struct {
	Bins      int `json:"bins"`
	Dropped   int `json:"dropped"`
	Ignored   int `json:"ignored"`
	RowErrors int `json:"rowErrors"`
	Segments  int `json:"segments"`
	Overlaps  int `json:"overlaps"`
}

// Model is everything a drawing surface needs to paint one chart.
type Model struct {
	Sample       string                   `json:"sample"`
	Algorithm    string                   `json:"algorithm"`
	Chromosome   string                   `json:"chromosome,omitempty"`
	Generation   uint64                   `json:"generation"`
	Title        string                   `json:"title"`
	Points       map[cnv.Category][]Point `json:"points"`
	Segments     []Bar                    `json:"segments"`
	Layout       layout.Layout            `json:"layout"`
	GenomeLength int64                    `json:"genomeLength"`
	Axis         axis.Plan                `json:"axis"`
	Summary      []ChromosomeSummary      `json:"summary"`
	Stats        Stats                    `json:"stats"`
}

// Count returns the number of points in all buckets.
func (m *Model) Count() int {
	n := 0
	for _, points := range m.Points {
		n += len(points)
	}
	return n
}

// Input is the decoded content of one sample and algorithm.
type Input struct {
	Sample     string
	Algorithm  string
	Chromosome string
	Generation uint64
	Bins       []cnv.BinPoint
	Segments   []cnv.Segment
	Stats      Stats
}

// Build lays out the bins of in, classifies every bin against the segments
// and collects the result in a Model.  Every bin whose chromosome is part
// of the layout ends up in exactly one bucket.
func Build(in Input) *Model {
	return BuildWithIndex(in, segindex.New(in.Segments))
}

// BuildWithIndex is like Build but uses a prebuilt segment index.
func BuildWithIndex(in Input, idx *segindex.Index) *Model {
	extents := layout.Extents{}
	for _, bin := range in.Bins {
		extents.Observe(bin.Chromosome, bin.End)
	}
	l := layout.Build(extents, in.Chromosome)

	m := &Model{
		Sample:       in.Sample,
		Algorithm:    in.Algorithm,
		Chromosome:   in.Chromosome,
		Generation:   in.Generation,
		Title:        cnv.Title(in.Sample, in.Algorithm, in.Chromosome),
		Points:       make(map[cnv.Category][]Point, len(cnv.Categories)),
		Layout:       l,
		GenomeLength: l.Total,
		Stats:        in.Stats,
	}
	for _, category := range cnv.Categories {
		m.Points[category] = []Point{}
	}

	bins := make([]cnv.BinPoint, len(in.Bins))
	copy(bins, in.Bins)
	sort.SliceStable(bins, func(i, j int) bool {
		a, b := bins[i], bins[j]
		if a.Chromosome != b.Chromosome {
			return genomics.Rank(a.Chromosome) < genomics.Rank(b.Chromosome)
		}
		return a.Position < b.Position
	})

	var (
		minCopy, maxCopy float64
		seen             bool
	)
	values := make(map[string][]float64)
	for _, bin := range bins {
		x, ok := l.Global(bin.Chromosome, bin.Position)
		if !ok {
			continue
		}
		category := idx.Classify(bin.Chromosome, bin.Position)
		m.Points[category] = append(m.Points[category], Point{X: x, Y: bin.CopyNumber})
		values[bin.Chromosome] = append(values[bin.Chromosome], bin.CopyNumber)
		if !seen || bin.CopyNumber < minCopy {
			minCopy = bin.CopyNumber
		}
		if !seen || bin.CopyNumber > maxCopy {
			maxCopy = bin.CopyNumber
		}
		seen = true
	}

	m.Segments = []Bar{}
	for _, chrom := range l.Chromosomes() {
		span, _ := l.Span(chrom)
		for _, s := range idx.Segments(chrom) {
			m.Segments = append(m.Segments, Bar{
				Segment: s,
				X1:      float64(span.Offset + s.Start),
				X2:      float64(span.Offset + s.End),
			})
		}
		if v := values[chrom]; len(v) > 0 {
			m.Summary = append(m.Summary, summarize(chrom, v))
		}
	}
	m.Stats.Segments = idx.Len()
	m.Stats.Overlaps = len(idx.Overlaps())

	m.Axis = axis.New(l, in.Chromosome != "", minCopy, maxCopy)
	return m
}
