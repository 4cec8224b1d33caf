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

// Package pipeline loads the files of a sample and builds its render model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/genomics"
	"github.com/googlegenomics/cnvview/internal/orchestrator"
	"github.com/googlegenomics/cnvview/internal/render"
	"github.com/googlegenomics/cnvview/internal/segindex"
	"github.com/googlegenomics/cnvview/sources"
)

var (
	// ErrFileMissing is returned when the bins file of a request does not
	// exist.
	ErrFileMissing = errors.New("data file is missing")

	// ErrNoData is returned when no bin of a request could be placed on the
	// chart.
	ErrNoData = errors.New("no data")
)

// maxLoggedRowErrors limits how many malformed rows are logged per file.
const maxLoggedRowErrors = 10

// Loader builds render models from the files of a source.  It implements
// orchestrator.Loader.
type Loader struct {
	source sources.Source
	log    logrus.FieldLogger
}

// New returns a loader reading from source.
func New(source sources.Source, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{source: source, log: log}
}

// Load implements orchestrator.Loader.
func (l *Loader) Load(ctx context.Context, req orchestrator.Request) (*render.Model, error) {
	start := time.Now()
	filter, err := genomics.ParseFilter(req.Chromosome)
	if err != nil {
		return nil, err
	}
	log := l.log.WithFields(logrus.Fields{
		"sample":     req.Sample,
		"algorithm":  req.Algorithm,
		"chromosome": filter,
		"generation": req.Generation,
	})
	files := l.source.Resolve(req.Sample, req.Algorithm)

	in := render.Input{
		Sample:     req.Sample,
		Algorithm:  req.Algorithm,
		Chromosome: filter,
		Generation: req.Generation,
	}
	if err := l.readBins(ctx, log, files.Bins, filter, &in); err != nil {
		return nil, err
	}
	if err := l.readSegments(ctx, log, files.Segments, filter, &in); err != nil {
		return nil, err
	}

	idx := segindex.New(in.Segments)
	for _, overlap := range idx.Overlaps() {
		log.WithFields(logrus.Fields{
			"first":  overlap.First.String(),
			"second": overlap.Second.String(),
		}).Warn("overlapping segments")
	}

	model := render.BuildWithIndex(in, idx)
	if model.GenomeLength == 0 {
		return nil, fmt.Errorf("%s %s: %w", req.Sample, req.Algorithm, ErrNoData)
	}
	log.WithFields(logrus.Fields{
		"points":      model.Count(),
		"loss":        len(model.Points[cnv.Loss]),
		"gain":        len(model.Points[cnv.Gain]),
		"segments":    len(model.Segments),
		"chromosomes": len(model.Layout.Spans),
		"elapsed":     time.Since(start),
	}).Info("render model built")
	return model, nil
}

func (l *Loader) readBins(ctx context.Context, log logrus.FieldLogger, name, filter string, in *render.Input) error {
	r, err := l.source.Open(ctx, name)
	if errors.Is(err, sources.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrFileMissing)
	}
	if err != nil {
		return err
	}
	defer r.Close()

	bins := cnv.NewBinReader(r, filter)
	for bins.Next() {
		in.Bins = append(in.Bins, bins.Bin())
	}
	if err := bins.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	logRowErrors(log.WithField("file", name), bins.RowErrors())
	in.Stats.Bins = len(in.Bins)
	in.Stats.Dropped = bins.Dropped()
	in.Stats.Ignored += bins.Ignored()
	in.Stats.RowErrors += len(bins.RowErrors())
	return nil
}

func (l *Loader) readSegments(ctx context.Context, log logrus.FieldLogger, name, filter string, in *render.Input) error {
	r, err := l.source.Open(ctx, name)
	if errors.Is(err, sources.ErrNotExist) {
		log.WithField("file", name).Info("no segments file, drawing every bin as unchanged")
		return nil
	}
	if err != nil {
		return err
	}
	defer r.Close()

	segments := cnv.NewSegmentReader(r, filter)
	for segments.Next() {
		in.Segments = append(in.Segments, segments.Segment())
	}
	if err := segments.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	logRowErrors(log.WithField("file", name), segments.RowErrors())
	in.Stats.Ignored += segments.Ignored()
	in.Stats.RowErrors += len(segments.RowErrors())
	return nil
}

func logRowErrors(log logrus.FieldLogger, rowErrors []*cnv.RowError) {
	for i, err := range rowErrors {
		if i == maxLoggedRowErrors {
			log.Debugf("%d more malformed rows", len(rowErrors)-i)
			break
		}
		log.WithError(err).Debug("skipping malformed row")
	}
}

// Report reads the aberration report of sample and algorithm.
func (l *Loader) Report(ctx context.Context, sample, algorithm string) (*cnv.Report, error) {
	name := l.source.Resolve(sample, algorithm).Segments
	r, err := l.source.Open(ctx, name)
	if errors.Is(err, sources.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrFileMissing)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	report, err := cnv.ReadReport(r, sample, algorithm)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return report, nil
}

var _ orchestrator.Loader = (*Loader)(nil)
