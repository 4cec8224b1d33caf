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

package render

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChromosomeSummary describes the distribution of the copy numbers of one
// chromosome.  It is what the box plot is drawn from.
type ChromosomeSummary struct {
	Chromosome string  `json:"chromosome"`
	Count      int     `json:"count"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stdDev"`
	Min        float64 `json:"min"`
	Q1         float64 `json:"q1"`
	Median     float64 `json:"median"`
	Q3         float64 `json:"q3"`
	Max        float64 `json:"max"`

	// Values holds the sorted copy numbers of the chromosome's points.
	Values []float64 `json:"-"`
}

// summarize computes the summary of values, which must not be empty.  The
// slice is sorted in place.
func summarize(chrom string, values []float64) ChromosomeSummary {
	sort.Float64s(values)
	s := ChromosomeSummary{
		Chromosome: chrom,
		Count:      len(values),
		Mean:       stat.Mean(values, nil),
		Min:        floats.Min(values),
		Q1:         stat.Quantile(0.25, stat.Empirical, values, nil),
		Median:     stat.Quantile(0.5, stat.Empirical, values, nil),
		Q3:         stat.Quantile(0.75, stat.Empirical, values, nil),
		Max:        floats.Max(values),
		Values:     values,
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s
}
