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

// Package layout maps per-chromosome coordinates onto a single linear genome
// axis by concatenating chromosomes in canonical order.
package layout

import (
	"github.com/googlegenomics/cnvview/internal/genomics"
)

// Extents records the largest coordinate observed on each chromosome.
type Extents map[string]int64

// Observe records pos as a candidate extent of chrom.
func (e Extents) Observe(chrom string, pos int64) {
	if current, ok := e[chrom]; !ok || pos > current {
		e[chrom] = pos
	}
}

// Span is the placement of one chromosome on the linear axis.
type Span struct {
	Chromosome string `json:"chromosome"`
	Offset     int64  `json:"offset"`
	Length     int64  `json:"length"`
}

// End returns the global coordinate at which the chromosome ends.
func (s Span) End() int64 {
	return s.Offset + s.Length
}

// Layout is the ordered placement of every chromosome that has data.
type Layout struct {
	Spans []Span `json:"spans"`
	Total int64  `json:"total"`

	index map[string]int
}

// Build computes the layout of the chromosomes in extents.  Chromosomes are
// visited in canonical order; each is placed right after the previous one
// and chromosomes without data take no space.  If filter names a chromosome
// the layout contains only that chromosome, at offset zero.
func Build(extents Extents, filter string) Layout {
	var l Layout
	for _, chrom := range genomics.Chromosomes {
		if filter != "" && chrom != filter {
			continue
		}
		length, ok := extents[chrom]
		if !ok {
			continue
		}
		if length < 0 {
			length = 0
		}
		l.Spans = append(l.Spans, Span{Chromosome: chrom, Offset: l.Total, Length: length})
		l.Total += length
	}
	l.reindex()
	return l
}

func (l *Layout) reindex() {
	l.index = make(map[string]int, len(l.Spans))
	for i, span := range l.Spans {
		l.index[span.Chromosome] = i
	}
}

// Span returns the placement of chrom.
func (l Layout) Span(chrom string) (Span, bool) {
	if l.index == nil {
		for _, span := range l.Spans {
			if span.Chromosome == chrom {
				return span, true
			}
		}
		return Span{}, false
	}
	i, ok := l.index[chrom]
	if !ok {
		return Span{}, false
	}
	return l.Spans[i], true
}

// Global maps a position on chrom to the linear axis.  The boolean result is
// false when chrom is not part of the layout.
func (l Layout) Global(chrom string, pos int64) (float64, bool) {
	span, ok := l.Span(chrom)
	if !ok {
		return 0, false
	}
	return float64(span.Offset + pos), true
}

// Chromosomes returns the chromosomes of the layout in order.
func (l Layout) Chromosomes() []string {
	names := make([]string, len(l.Spans))
	for i, span := range l.Spans {
		names[i] = span.Chromosome
	}
	return names
}
