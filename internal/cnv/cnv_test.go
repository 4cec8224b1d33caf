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
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBins = "chromosome\tstart\tend\tcopy_number\n" +
	"1\t100\t200\t1.0\n" +
	"1\t5000\t5100\tnan\n" +
	"chr2\t50\t150\t2.0\n" +
	"2\tabc\t150\t2.0\n" +
	"2\t300\txyz\t2.5\tgain\n" +
	"MT\t1\t10\t2.0\n" +
	"3\t10\t20\tNaN\n" +
	"3\t10\t20\tmany\n"

func readBins(t *testing.T, input, filter string) ([]BinPoint, *BinReader) {
	t.Helper()
	r := NewBinReader(strings.NewReader(input), filter)
	var bins []BinPoint
	for r.Next() {
		bins = append(bins, r.Bin())
	}
	require.NoError(t, r.Err())
	return bins, r
}

func TestBinReader(t *testing.T) {
	bins, r := readBins(t, testBins, "")
	assert.Equal(t, []BinPoint{
		{Chromosome: "1", Position: 100, End: 200, CopyNumber: 1.0},
		{Chromosome: "2", Position: 50, End: 150, CopyNumber: 2.0},
		{Chromosome: "2", Position: 300, End: 300, CopyNumber: 2.5},
	}, bins)
	assert.Equal(t, 2, r.Dropped(), "NaN rows")
	assert.Equal(t, 1, r.Ignored(), "non-canonical rows")
	if assert.Len(t, r.RowErrors(), 2) {
		assert.Equal(t, 5, r.RowErrors()[0].Line)
		assert.Equal(t, 9, r.RowErrors()[1].Line)
	}
}

func TestBinReaderFilter(t *testing.T) {
	bins, _ := readBins(t, testBins, "2")
	for _, bin := range bins {
		assert.Equal(t, "2", bin.Chromosome)
	}
	assert.Len(t, bins, 2)
}

func TestBinReaderIsIdempotent(t *testing.T) {
	first, _ := readBins(t, testBins, "")
	second, _ := readBins(t, testBins, "")
	assert.Equal(t, first, second)
}

func TestSegmentReader(t *testing.T) {
	input := "chromosome\tstart\tend\tcopy\ttype\tmosaic\n" +
		"chr1\t90\t210\t1.0\tloss\t40%\n" +
		"1\t500\t900\t3.1\tDUP\tnan\n" +
		"1\t1000\t1100\t2.0\n" +
		"1\t2000\t1500\t2.0\tgain\n" +
		"X\t10\t20\tx\tgain\n"
	r := NewSegmentReader(strings.NewReader(input), "")
	var segments []Segment
	for r.Next() {
		segments = append(segments, r.Segment())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []Segment{
		{Chromosome: "1", Start: 90, End: 210, CopyNumber: 1.0, RawType: "loss", Type: Loss, Mosaic: "40%"},
		{Chromosome: "1", Start: 500, End: 900, CopyNumber: 3.1, RawType: "DUP", Type: Gain},
		{Chromosome: "1", Start: 1000, End: 1100, CopyNumber: 2.0, Type: NoChange},
	}, segments)
	assert.Len(t, r.RowErrors(), 2)
}

func TestNonFiniteCopyNumbers(t *testing.T) {
	bins, r := readBins(t, "chromosome\tstart\tend\tcopy_number\n"+
		"1\t100\t200\tinf\n"+
		"1\t300\t400\t-Infinity\n"+
		"1\t500\t600\t2.0\n", "")
	assert.Equal(t, []BinPoint{{Chromosome: "1", Position: 500, End: 600, CopyNumber: 2.0}}, bins)
	assert.Len(t, r.RowErrors(), 2)
	for _, err := range r.RowErrors() {
		assert.ErrorIs(t, err, errInfinite)
	}

	segments := NewSegmentReader(strings.NewReader("chromosome\tstart\tend\tcopy\ttype\n"+
		"1\t90\t210\tnan\tloss\n"+
		"1\t300\t400\t+Inf\tgain\n"+
		"1\t500\t600\t3.0\tgain\n"), "")
	var got []Segment
	for segments.Next() {
		got = append(got, segments.Segment())
	}
	require.NoError(t, segments.Err())
	require.Len(t, got, 1)
	assert.Equal(t, int64(500), got[0].Start)
	if assert.Len(t, segments.RowErrors(), 2) {
		assert.ErrorIs(t, segments.RowErrors()[0], errNotANumber)
		assert.ErrorIs(t, segments.RowErrors()[1], errInfinite)
	}
}

func TestNormalizeType(t *testing.T) {
	testCases := []struct {
		raw  string
		want Category
	}{
		{"loss", Loss}, {"DEL", Loss}, {"Deletion", Loss}, {"LOH", Loss},
		{"gain", Gain}, {"dup", Gain}, {"Duplication", Gain}, {"AMP", Gain}, {"amplification", Gain},
		{" gain ", Gain}, {"", NoChange}, {"neutral", NoChange}, {"aneuploidy", NoChange},
	}
	for _, tc := range testCases {
		if got := NormalizeType(tc.raw); got != tc.want {
			t.Errorf("NormalizeType(%q): got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestCategoryJSONKeys(t *testing.T) {
	data, err := json.Marshal(map[Category]int{Loss: 1, Gain: 2, NoChange: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"loss":1,"gain":2,"no_change":3}`, string(data))

	var decoded map[Category]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded[Loss])
}

func TestParseSample(t *testing.T) {
	name := ParseSample("FC01-C-2024-07-E5")
	assert.Equal(t, SampleName{"FC01-C-2024-07-E5", "FC01", "C-2024-07", "E5"}, name)
	assert.Equal(t, "FC01-E5", name.DisplayName())

	short := ParseSample("FC01-E5")
	assert.Equal(t, "FC01-E5", short.Cycle)
	assert.Equal(t, "FC01-E5-FC01-E5", short.DisplayName())
}

func TestAlgorithms(t *testing.T) {
	assert.Equal(t, "bicseq2", NormalizeAlgorithm("BIC seq 2"))
	assert.Equal(t, "wisecondorx", NormalizeAlgorithm("Wisecondor X"))
	assert.Equal(t, "BIC-seq2", PrettyAlgorithm("bicseq2"))
	assert.Equal(t, "custom", PrettyAlgorithm("custom"))
	assert.True(t, KnownAlgorithm("bluefuse"))
	assert.False(t, KnownAlgorithm("BlueFuse"))
}

func TestTitleAndFileNames(t *testing.T) {
	assert.Equal(t, "FC-E1 -- Baseline -- All chromosomes", Title("FC-C1-E1", "baseline", ""))
	assert.Equal(t, "FC-E1 -- BlueFuse -- Chromosome X", Title("FC-C1-E1", "bluefuse", "X"))
	assert.Equal(t, "S_baseline_bins.tsv", BinsFileName("S", "baseline"))
	assert.Equal(t, "S_baseline_segments.tsv", SegmentsFileName("S", "baseline"))
}

func TestReadReport(t *testing.T) {
	input := "chromosome\tstart\tend\tcopy\ttype\tmosaic\n" +
		"1\t90\t210\t1.0\tloss\t40%\n" +
		"1\t500\t900\t2.0\tno_change\t\n" +
		"7\t10\t20\t3.0\tgain\tnan\n"
	report, err := ReadReport(strings.NewReader(input), "FC-C1-E1", "bicseq2")
	require.NoError(t, err)
	assert.Equal(t, "FC-E1 -- BIC-seq2", report.Title)
	assert.Equal(t, []Aberration{
		{Chromosome: "1", Start: 90, End: 210, CopyNumber: 1.0, Type: "Loss", Mosaic: "40%"},
		{Chromosome: "7", Start: 10, End: 20, CopyNumber: 3.0, Type: "Gain"},
	}, report.Aberrations)
}
