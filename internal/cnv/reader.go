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
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/googlegenomics/cnvview/internal/genomics"
	"github.com/googlegenomics/cnvview/internal/tsv"
)

const (
	binColumns     = 4
	segmentColumns = 4
)

var (
	errNotANumber = errors.New("copy number is NaN")
	errInfinite   = errors.New("copy number is infinite")
)

// RowError describes a single line that could not be decoded.  Row errors
// never abort a stream; they are counted and the line is skipped.
type RowError struct {
	Line  int
	Cause error
}

func (err *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", err.Line, err.Cause)
}

func (err *RowError) Unwrap() error {
	return err.Cause
}

type rowReader struct {
	rows   *tsv.Reader
	filter string

	rowErrors []*RowError
	ignored   int
}

func newRowReader(r io.Reader, minColumns int, filter string) rowReader {
	return rowReader{rows: tsv.NewReader(r, minColumns, true), filter: filter}
}

// chromosome returns the normalized chromosome of fields, or false if the
// row is outside the canonical set or the active filter.
func (r *rowReader) chromosome(fields []string) (string, bool) {
	chrom, ok := genomics.NormalizeChromosome(fields[0])
	if !ok || (r.filter != "" && chrom != r.filter) {
		r.ignored++
		return "", false
	}
	return chrom, true
}

func (r *rowReader) fail(err error) {
	r.rowErrors = append(r.rowErrors, &RowError{r.rows.Line(), err})
}

// RowErrors returns the lines skipped because they could not be decoded.
func (r *rowReader) RowErrors() []*RowError {
	return r.rowErrors
}

// Ignored returns the number of well-formed rows skipped because their
// chromosome was not canonical or did not match the filter.
func (r *rowReader) Ignored() int {
	return r.ignored
}

// Err returns the first I/O error encountered by the underlying reader.
func (r *rowReader) Err() error {
	return r.rows.Err()
}

// BinReader decodes bins files with the columns
// "chromosome, start, end, copyNumber[, type]".
type BinReader struct {
	rowReader
	bin     BinPoint
	dropped int
}

// NewBinReader returns a BinReader over r.  If filter is not empty only
// rows of that (normalized) chromosome are returned.
func NewBinReader(r io.Reader, filter string) *BinReader {
	return &BinReader{rowReader: newRowReader(r, binColumns, filter)}
}

// Next advances to the next usable bin.  Rows with a NaN copy number are
// dropped.
func (r *BinReader) Next() bool {
	for r.rows.Next() {
		fields := r.rows.Fields()
		chrom, ok := r.chromosome(fields)
		if !ok {
			continue
		}
		bin, err := parseBin(chrom, fields)
		if errors.Is(err, errNotANumber) {
			r.dropped++
			continue
		}
		if err != nil {
			r.fail(err)
			continue
		}
		r.bin = bin
		return true
	}
	return false
}

// Bin returns the current bin.
func (r *BinReader) Bin() BinPoint {
	return r.bin
}

// Dropped returns the number of rows dropped for having a NaN copy number.
func (r *BinReader) Dropped() int {
	return r.dropped
}

func parseBin(chrom string, fields []string) (BinPoint, error) {
	start, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return BinPoint{}, fmt.Errorf("parsing start: %w", err)
	}
	copyNumber, err := parseCopyNumber(fields[3])
	if err != nil {
		return BinPoint{}, err
	}
	return BinPoint{
		Chromosome: chrom,
		Position:   start,
		End:        parseEnd(fields[2], start),
		CopyNumber: copyNumber,
	}, nil
}

// SegmentReader decodes segments files with the columns
// "chromosome, start, end, copyNumber, type[, mosaicPercent]".
type SegmentReader struct {
	rowReader
	segment Segment
}

// NewSegmentReader returns a SegmentReader over r.  If filter is not empty
// only rows of that (normalized) chromosome are returned.
func NewSegmentReader(r io.Reader, filter string) *SegmentReader {
	return &SegmentReader{rowReader: newRowReader(r, segmentColumns, filter)}
}

// Next advances to the next segment.
func (r *SegmentReader) Next() bool {
	for r.rows.Next() {
		fields := r.rows.Fields()
		chrom, ok := r.chromosome(fields)
		if !ok {
			continue
		}
		segment, err := parseSegment(chrom, fields)
		if err != nil {
			r.fail(err)
			continue
		}
		r.segment = segment
		return true
	}
	return false
}

// Segment returns the current segment.
func (r *SegmentReader) Segment() Segment {
	return r.segment
}

func parseSegment(chrom string, fields []string) (Segment, error) {
	start, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return Segment{}, fmt.Errorf("parsing start: %w", err)
	}
	end := parseEnd(fields[2], start)
	if end < start {
		return Segment{}, fmt.Errorf("end %d before start %d", end, start)
	}
	copyNumber, err := parseCopyNumber(fields[3])
	if err != nil {
		return Segment{}, err
	}
	segment := Segment{
		Chromosome: chrom,
		Start:      start,
		End:        end,
		CopyNumber: copyNumber,
	}
	if len(fields) > 4 {
		segment.RawType = strings.TrimSpace(fields[4])
	}
	segment.Type = NormalizeType(segment.RawType)
	if len(fields) > 5 {
		if mosaic := strings.TrimSpace(fields[5]); !strings.EqualFold(mosaic, "nan") {
			segment.Mosaic = mosaic
		}
	}
	return segment, nil
}

func parseCopyNumber(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if strings.EqualFold(field, "nan") {
		return 0, errNotANumber
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing copy number: %w", err)
	}
	if math.IsNaN(v) {
		return 0, errNotANumber
	}
	if math.IsInf(v, 0) {
		return 0, errInfinite
	}
	return v, nil
}

// parseEnd parses an end coordinate, falling back to start when the column
// is not a number.
func parseEnd(field string, start int64) int64 {
	end, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
	if err != nil {
		return start
	}
	return end
}
