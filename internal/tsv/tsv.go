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

// Package tsv provides a tolerant, streaming reader for tab-separated text.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineLength bounds the length of a single line.  Longer lines are
// discarded and counted as skipped.
const maxLineLength = 1024 * 1024

// Reader reads rows of tab-separated fields from an underlying reader.  Blank
// lines, lines starting with '#', lines with fewer than the minimum number
// of columns and lines longer than 1 MiB are skipped.  Only errors returned
// by the underlying reader are reported.
//
// Reader is used in the same way as bufio.Scanner:
//
//	r := tsv.NewReader(input, 4, true)
//	for r.Next() {
//		fields := r.Fields()
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
type Reader struct {
	br         *bufio.Reader
	buf        []byte
	minColumns int
	skipHeader bool

	line    int
	fields  []string
	skipped int
	eof     bool
	err     error
}

// NewReader returns a Reader that yields rows with at least minColumns
// fields.  If header is true the first line of input is discarded.
func NewReader(r io.Reader, minColumns int, header bool) *Reader {
	return &Reader{
		br:         bufio.NewReaderSize(r, 64*1024),
		minColumns: minColumns,
		skipHeader: header,
	}
}

// readLine returns the next line including its terminator.  The content of
// a line longer than maxLineLength is dropped and tooLong is set.
func (r *Reader) readLine() (line []byte, tooLong bool, err error) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !tooLong {
			if len(r.buf)+len(chunk) > maxLineLength {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return r.buf, tooLong, err
	}
}

// Next advances to the next row.  It returns false at the end of input or on
// a read error, which is then available from Err.
func (r *Reader) Next() bool {
	r.fields = nil
	for !r.eof && r.err == nil {
		line, tooLong, err := r.readLine()
		switch {
		case err == io.EOF:
			r.eof = true
			if len(line) == 0 && !tooLong {
				return false
			}
		case err != nil:
			r.err = fmt.Errorf("reading line %d: %w", r.line+1, err)
			return false
		}
		r.line++
		if r.line == 1 && r.skipHeader {
			continue
		}
		if tooLong {
			r.skipped++
			continue
		}
		text := strings.TrimRight(string(line), "\r\n")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < r.minColumns {
			r.skipped++
			continue
		}
		r.fields = fields
		return true
	}
	return false
}

// Fields returns the fields of the current row.  The slice is only valid
// until the next call to Next.
func (r *Reader) Fields() []string {
	return r.fields
}

// Line returns the 1-based line number of the current row.
func (r *Reader) Line() int {
	return r.line
}

// Skipped returns the number of lines skipped for having too few columns or
// for being too long.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Err returns the first read error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}
