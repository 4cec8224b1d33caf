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

// Package axis plans the axes of a copy-number chart.
package axis

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"

	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/layout"
)

const (
	// ChromosomeTickUnit is the distance between ticks when a single
	// chromosome is shown.
	ChromosomeTickUnit = 25000000

	// genomeTicks is the number of tick intervals on a whole-genome axis.
	genomeTicks = 20

	// megabase is the unit of single chromosome tick labels.
	megabase = 1e6

	// minCopyNumberRange is the smallest upper bound of the copy-number
	// axis.
	minCopyNumberRange = 4

	// maxTicks bounds the number of tick intervals on a single chromosome
	// axis.
	maxTicks = 100
)

// Mode selects between the whole-genome and the single chromosome chart.
type Mode int

const (
	Genome Mode = iota
	Chromosome
)

func (m Mode) String() string {
	if m == Chromosome {
		return "chromosome"
	}
	return "genome"
}

// MarshalText encodes m by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Tick is a position on the horizontal axis.  Label is empty when tick
// labels are hidden.
type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label,omitempty"`
}

// ChromosomeLabel places the name of a chromosome under the middle of its
// span on a whole-genome axis.
type ChromosomeLabel struct {
	Chromosome string  `json:"chromosome"`
	Position   float64 `json:"position"`
}

// ReferenceLine is a fixed horizontal copy-number level.
type ReferenceLine struct {
	Value    float64      `json:"value"`
	Category cnv.Category `json:"category"`
}

// ReferenceLines are the copy-number levels marking single copy loss and
// single copy gain.
var ReferenceLines = []ReferenceLine{
	{Value: 1, Category: cnv.Loss},
	{Value: 3, Category: cnv.Gain},
}

// Plan describes both axes of a chart.
type Plan struct {
	Mode           Mode              `json:"mode"`
	XMin           float64           `json:"xMin"`
	XMax           float64           `json:"xMax"`
	TickUnit       float64           `json:"tickUnit"`
	ShowTickLabels bool              `json:"showTickLabels"`
	Ticks          []Tick            `json:"ticks"`
	Labels         []ChromosomeLabel `json:"labels,omitempty"`
	Boundaries     []float64         `json:"boundaries,omitempty"`

	YMin           float64         `json:"yMin"`
	YMax           float64         `json:"yMax"`
	ReferenceLines []ReferenceLine `json:"referenceLines"`
	Gridlines      []float64       `json:"gridlines,omitempty"`
}

// New plans the axes for l.  single selects the single chromosome mode;
// minCopy and maxCopy are the extremes of the copy numbers being drawn and
// are ignored when there are no points (pass 0 for both).
func New(l layout.Layout, single bool, minCopy, maxCopy float64) Plan {
	var p Plan
	if single {
		p.planChromosome(l)
	} else {
		p.planGenome(l)
	}
	p.planCopyNumber(minCopy, maxCopy)
	return p
}

func (p *Plan) planGenome(l layout.Layout) {
	p.Mode = Genome
	p.XMax = upperBound(l.Total)
	p.TickUnit = math.Max(1, float64(l.Total)/genomeTicks)
	p.Ticks = ticks(p.XMax, p.TickUnit, nil)
	for i, span := range l.Spans {
		p.Labels = append(p.Labels, ChromosomeLabel{
			Chromosome: span.Chromosome,
			Position:   float64(span.Offset) + float64(span.Length)/2,
		})
		if i < len(l.Spans)-1 {
			p.Boundaries = append(p.Boundaries, float64(span.End()))
		}
	}
}

func (p *Plan) planChromosome(l layout.Layout) {
	p.Mode = Chromosome
	p.ShowTickLabels = true
	p.XMax = upperBound(l.Total)
	p.TickUnit = ChromosomeTickUnit
	if l.Total < ChromosomeTickUnit {
		p.TickUnit = math.Max(1, math.Ceil(float64(l.Total)/5))
	}
	if p.XMax/p.TickUnit > maxTicks {
		p.TickUnit = ChromosomeTickUnit * math.Ceil(p.XMax/maxTicks/ChromosomeTickUnit)
	}
	p.Ticks = ticks(p.XMax, p.TickUnit, MegabaseLabel)
}

func (p *Plan) planCopyNumber(minCopy, maxCopy float64) {
	if math.IsNaN(minCopy) || math.IsInf(minCopy, 0) {
		minCopy = 0
	}
	if math.IsNaN(maxCopy) || math.IsInf(maxCopy, 0) {
		maxCopy = 0
	}
	if minCopy < 0 {
		p.YMin = math.Floor(minCopy)
	}
	p.YMax = math.Max(minCopyNumberRange, math.Ceil(maxCopy))
	p.ReferenceLines = ReferenceLines
	for _, t := range (plot.DefaultTicks{}).Ticks(p.YMin, p.YMax) {
		if t.IsMinor() || excludedGridline(t.Value) {
			continue
		}
		p.Gridlines = append(p.Gridlines, t.Value)
	}
}

func excludedGridline(v float64) bool {
	switch v {
	case 0, 1, 3, 4:
		return true
	}
	return false
}

func upperBound(total int64) float64 {
	if total <= 0 {
		return 1
	}
	return float64(total)
}

func ticks(max, unit float64, label func(float64) string) []Tick {
	var out []Tick
	for i := 0; ; i++ {
		v := float64(i) * unit
		if v > max {
			break
		}
		t := Tick{Value: v}
		if label != nil {
			t.Label = label(v)
		}
		out = append(out, t)
	}
	return out
}

// MegabaseLabel formats a position in whole megabases.
func MegabaseLabel(v float64) string {
	return fmt.Sprintf("%d", int64(math.Round(v/megabase)))
}
