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

// Package segindex answers "which segment contains this bin" queries.
package segindex

import (
	"math"
	"sort"

	"github.com/biogo/store/interval"

	"github.com/googlegenomics/cnvview/internal/cnv"
)

// span is a segment as stored in the overlap tree.  Segments are inclusive
// on both ends so the tree range is [Start, End+1).
type span struct {
	start, end int
	uid        uintptr
}

func (s span) Overlap(b interval.IntRange) bool {
	return s.end > b.Start && s.start < b.End
}
func (s span) ID() uintptr              { return s.uid }
func (s span) Range() interval.IntRange { return interval.IntRange{Start: s.start, End: s.end} }

// Overlap is a pair of segments on the same chromosome that share at least
// one position.
type Overlap struct {
	First, Second cnv.Segment
}

// Index holds the segments of one load grouped by chromosome and sorted by
// start position.
type Index struct {
	byChromosome map[string][]cnv.Segment
	overlaps     []Overlap
	size         int
}

// New builds an index over segments.  The input is not modified.
func New(segments []cnv.Segment) *Index {
	idx := &Index{byChromosome: make(map[string][]cnv.Segment)}
	for _, s := range segments {
		idx.byChromosome[s.Chromosome] = append(idx.byChromosome[s.Chromosome], s)
	}
	for _, group := range idx.byChromosome {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Start < group[j].Start })
		idx.overlaps = append(idx.overlaps, findOverlaps(group)...)
		idx.size += len(group)
	}
	sort.SliceStable(idx.overlaps, func(i, j int) bool {
		a, b := idx.overlaps[i].First, idx.overlaps[j].First
		if a.Chromosome != b.Chromosome {
			return a.Chromosome < b.Chromosome
		}
		return a.Start < b.Start
	})
	return idx
}

func findOverlaps(group []cnv.Segment) []Overlap {
	var (
		tree     interval.IntTree
		overlaps []Overlap
	)
	for i, s := range group {
		end := s.End
		if end < math.MaxInt64 {
			end++
		}
		q := span{start: int(s.Start), end: int(end), uid: uintptr(i)}
		for _, hit := range tree.Get(q) {
			overlaps = append(overlaps, Overlap{First: group[hit.ID()], Second: s})
		}
		// Errors are only returned for inverted ranges; the readers reject
		// end < start and the end above saturates.
		_ = tree.Insert(q, false)
	}
	return overlaps
}

// Len returns the number of indexed segments.
func (idx *Index) Len() int {
	return idx.size
}

// Overlaps returns the overlapping segment pairs found while building the
// index.  Classification of positions covered by more than one segment
// returns whichever segment the binary search reaches first.
func (idx *Index) Overlaps() []Overlap {
	return idx.overlaps
}

// Lookup returns the segment of chrom that contains pos.
func (idx *Index) Lookup(chrom string, pos int64) (cnv.Segment, bool) {
	group := idx.byChromosome[chrom]
	lo, hi := 0, len(group)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		s := group[mid]
		switch {
		case pos < s.Start:
			hi = mid - 1
		case pos > s.End:
			lo = mid + 1
		default:
			return s, true
		}
	}
	return cnv.Segment{}, false
}

// Classify returns the category of the segment containing pos, or
// cnv.NoChange when no segment of chrom contains it.
func (idx *Index) Classify(chrom string, pos int64) cnv.Category {
	if s, ok := idx.Lookup(chrom, pos); ok {
		return s.Type
	}
	return cnv.NoChange
}

// Segments returns the segments of chrom in start order.
func (idx *Index) Segments(chrom string) []cnv.Segment {
	return idx.byChromosome[chrom]
}
