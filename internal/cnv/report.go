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
	"io"
)

// Aberration is a report row: a segment classified as a loss or a gain.
type Aberration struct {
	Chromosome string  `json:"chromosome"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	CopyNumber float64 `json:"copyNumber"`
	Type       string  `json:"type"`
	Mosaic     string  `json:"mosaic"`
}

// Report lists the aberrations of one sample as called by one algorithm.
type Report struct {
	Title       string       `json:"title"`
	Aberrations []Aberration `json:"aberrations"`
}

// ReadReport reads a segments file and returns the segments that are not
// NoChange, in file order.  Only I/O errors are returned.
func ReadReport(r io.Reader, sample, algorithm string) (*Report, error) {
	report := &Report{
		Title:       ParseSample(sample).DisplayName() + " -- " + PrettyAlgorithm(algorithm),
		Aberrations: []Aberration{},
	}
	segments := NewSegmentReader(r, "")
	for segments.Next() {
		s := segments.Segment()
		if s.Type == NoChange {
			continue
		}
		report.Aberrations = append(report.Aberrations, Aberration{
			Chromosome: s.Chromosome,
			Start:      s.Start,
			End:        s.End,
			CopyNumber: s.CopyNumber,
			Type:       typeLabel(s.Type),
			Mosaic:     s.Mosaic,
		})
	}
	if err := segments.Err(); err != nil {
		return nil, fmt.Errorf("reading segments: %w", err)
	}
	return report, nil
}

func typeLabel(c Category) string {
	switch c {
	case Loss:
		return "Loss"
	case Gain:
		return "Gain"
	}
	return "No change"
}
