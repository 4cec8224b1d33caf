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

// Package sources defines where sample files are read from.
package sources

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/googlegenomics/cnvview/internal/cnv"
)

var (
	// ErrNotExist is matched by errors returned for missing files.
	ErrNotExist = errors.New("file does not exist")

	// ErrPermissionDenied is matched by errors returned when the caller
	// may not read a file.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthenticated is matched by errors returned when the caller's
	// credentials were rejected.
	ErrUnauthenticated = errors.New("invalid authentication")
)

// Files names the two files of a sample and algorithm.
type Files struct {
	Bins     string `json:"bins"`
	Segments string `json:"segments"`
}

// Sample is a catalog entry: a sample and the algorithms it has results
// for.
type Sample struct {
	cnv.SampleName
	Algorithms []string `json:"algorithms"`
}

// Source gives access to the files of samples.
type Source interface {
	// Resolve returns the names of the files of sample and algorithm.
	Resolve(sample, algorithm string) Files

	// Open opens a file returned by Resolve.  Errors for missing files
	// match ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns every sample that has both files for at least one
	// algorithm.
	List(ctx context.Context) ([]Sample, error)
}

// Resolve returns the default file names of sample and algorithm.
func Resolve(sample, algorithm string) Files {
	return Files{
		Bins:     cnv.BinsFileName(sample, algorithm),
		Segments: cnv.SegmentsFileName(sample, algorithm),
	}
}

const (
	binsSuffix     = "_bins.tsv"
	segmentsSuffix = "_segments.tsv"
	gzipSuffix     = ".gz"
)

// Catalog groups file names into samples.  Names that do not follow the
// "<sample>_<algorithm>_bins.tsv" and "<sample>_<algorithm>_segments.tsv"
// pattern, optionally gzipped, are ignored.  The result is sorted by sample
// and algorithm.
func Catalog(names []string) []Sample {
	type pair struct{ sample, algorithm string }
	seen := make(map[pair]int)
	for _, name := range names {
		name = strings.TrimSuffix(name, gzipSuffix)
		var stem string
		var bit int
		switch {
		case strings.HasSuffix(name, binsSuffix):
			stem, bit = strings.TrimSuffix(name, binsSuffix), 1
		case strings.HasSuffix(name, segmentsSuffix):
			stem, bit = strings.TrimSuffix(name, segmentsSuffix), 2
		default:
			continue
		}
		i := strings.LastIndex(stem, "_")
		if i <= 0 || i == len(stem)-1 {
			continue
		}
		seen[pair{stem[:i], stem[i+1:]}] |= bit
	}

	bySample := make(map[string][]string)
	for p, bits := range seen {
		if bits == 3 {
			bySample[p.sample] = append(bySample[p.sample], p.algorithm)
		}
	}
	samples := make([]Sample, 0, len(bySample))
	for sample, algorithms := range bySample {
		sort.Strings(algorithms)
		samples = append(samples, Sample{SampleName: cnv.ParseSample(sample), Algorithms: algorithms})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples
}

// Gzipped returns the gzipped variant of name.
func Gzipped(name string) string {
	return name + gzipSuffix
}

// IsGzipped reports whether name refers to a gzipped file.
func IsGzipped(name string) bool {
	return strings.HasSuffix(name, gzipSuffix)
}
