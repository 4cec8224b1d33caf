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

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/orchestrator"
	"github.com/googlegenomics/cnvview/internal/render"
	"github.com/googlegenomics/cnvview/sources"
)

// memorySource serves files from a map.
type memorySource struct {
	files map[string]string
	err   error
}

func (s *memorySource) Resolve(sample, algorithm string) sources.Files {
	return sources.Resolve(sample, algorithm)
}

func (s *memorySource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	content, ok := s.files[name]
	if !ok {
		return nil, sources.ErrNotExist
	}
	return io.NopCloser(bytes.NewBufferString(content)), nil
}

func (s *memorySource) List(ctx context.Context) ([]sources.Sample, error) {
	var names []string
	for name := range s.files {
		names = append(names, name)
	}
	return sources.Catalog(names), nil
}

const (
	sample = "FC1-C1-E1"

	scenarioBins = "chromosome\tstart\tend\tcopy_number\n" +
		"1\t100\t200\t1.0\n" +
		"1\t5000\t5100\tnan\n" +
		"2\t50\t150\t2.0\n"

	scenarioSegments = "chromosome\tstart\tend\tcopy_number\ttype\n" +
		"1\t90\t210\t1.0\tloss\n"
)

func newLoader(files map[string]string) (*Loader, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(&memorySource{files: files}, log), hook
}

func scenarioFiles() map[string]string {
	return map[string]string{
		cnv.BinsFileName(sample, "baseline"):     scenarioBins,
		cnv.SegmentsFileName(sample, "baseline"): scenarioSegments,
	}
}

func TestLoadScenario(t *testing.T) {
	loader, _ := newLoader(scenarioFiles())
	model, err := loader.Load(context.Background(), orchestrator.Request{Sample: sample, Algorithm: "baseline", Generation: 3})
	require.NoError(t, err)

	span, ok := model.Layout.Span("2")
	require.True(t, ok)
	assert.Equal(t, int64(200), span.Offset)
	assert.Equal(t, []render.Point{{X: 100, Y: 1}}, model.Points[cnv.Loss])
	assert.Equal(t, []render.Point{{X: 250, Y: 2}}, model.Points[cnv.NoChange])
	assert.Equal(t, 2, model.Count())
	assert.Equal(t, 1, model.Stats.Dropped)
	assert.Equal(t, uint64(3), model.Generation)
}

func TestLoadIsIdempotent(t *testing.T) {
	loader, _ := newLoader(scenarioFiles())
	req := orchestrator.Request{Sample: sample, Algorithm: "baseline"}
	first, err := loader.Load(context.Background(), req)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadWithFilter(t *testing.T) {
	loader, _ := newLoader(scenarioFiles())
	model, err := loader.Load(context.Background(), orchestrator.Request{Sample: sample, Algorithm: "baseline", Chromosome: "chr2"})
	require.NoError(t, err)
	assert.Equal(t, "2", model.Chromosome)
	assert.Equal(t, []render.Point{{X: 50, Y: 2}}, model.Points[cnv.NoChange])
	assert.Empty(t, model.Points[cnv.Loss])
}

func TestLoadWithoutSegments(t *testing.T) {
	loader, hook := newLoader(map[string]string{cnv.BinsFileName(sample, "baseline"): scenarioBins})
	model, err := loader.Load(context.Background(), orchestrator.Request{Sample: sample, Algorithm: "baseline"})
	require.NoError(t, err)
	assert.Len(t, model.Points[cnv.NoChange], 2)
	assert.Empty(t, model.Segments)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "no segments file, drawing every bin as unchanged" {
			found = true
		}
	}
	assert.True(t, found, "missing segments file was not logged")
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	req := orchestrator.Request{Sample: sample, Algorithm: "baseline"}

	loader, _ := newLoader(nil)
	_, err := loader.Load(ctx, req)
	assert.ErrorIs(t, err, ErrFileMissing)

	loader, _ = newLoader(map[string]string{cnv.BinsFileName(sample, "baseline"): "chromosome\tstart\tend\tcopy_number\n"})
	_, err = loader.Load(ctx, req)
	assert.ErrorIs(t, err, ErrNoData)

	loader, _ = newLoader(scenarioFiles())
	_, err = loader.Load(ctx, orchestrator.Request{Sample: sample, Algorithm: "baseline", Chromosome: "7"})
	assert.ErrorIs(t, err, ErrNoData)
	_, err = loader.Load(ctx, orchestrator.Request{Sample: sample, Algorithm: "baseline", Chromosome: "chr99"})
	assert.Error(t, err)

	errDisk := errors.New("disk on fire")
	failing := New(&memorySource{err: errDisk}, logrus.New())
	_, err = failing.Load(ctx, req)
	assert.ErrorIs(t, err, errDisk)
}

func TestLoadSkipsNonFiniteCopyNumbers(t *testing.T) {
	loader, _ := newLoader(map[string]string{
		cnv.BinsFileName(sample, "baseline"): scenarioBins +
			"1\t300\t400\tinf\n" +
			"2\t300\t400\t-Infinity\n",
		cnv.SegmentsFileName(sample, "baseline"): scenarioSegments +
			"2\t40\t160\tnan\tgain\n" +
			"2\t300\t400\tInf\tgain\n",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		model *render.Model
		err   error
	}
	done := make(chan result, 1)
	go func() {
		model, err := loader.Load(ctx, orchestrator.Request{Sample: sample, Algorithm: "baseline"})
		done <- result{model, err}
	}()
	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		t.Fatal("load did not finish")
	}
	require.NoError(t, r.err)

	assert.Equal(t, 2, r.model.Count())
	assert.Equal(t, 4, r.model.Stats.RowErrors)
	assert.Len(t, r.model.Segments, 1)
	assert.Equal(t, 4.0, r.model.Axis.YMax)
	_, err := json.Marshal(r.model)
	assert.NoError(t, err)
}

// modelSurface hands published models and failures to a test.
type modelSurface struct {
	models chan *render.Model
	errs   chan error
}

func (s *modelSurface) RenderModelReady(m *render.Model) { s.models <- m }

func (s *modelSurface) LoadFailed(_ orchestrator.Request, err error) { s.errs <- err }

func TestFilterThenWholeGenome(t *testing.T) {
	loader, _ := newLoader(scenarioFiles())
	surface := &modelSurface{models: make(chan *render.Model, 2), errs: make(chan error, 2)}
	o := orchestrator.New(loader, surface)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go o.Run(ctx)

	next := func() *render.Model {
		t.Helper()
		select {
		case m := <-surface.models:
			return m
		case err := <-surface.errs:
			t.Fatalf("load failed: %v", err)
		case <-ctx.Done():
			t.Fatal("no model published")
		}
		return nil
	}

	_, err := o.Submit(ctx, sample, "baseline", "1")
	require.NoError(t, err)
	first := next()
	assert.Equal(t, "1", first.Chromosome)
	assert.Equal(t, []string{"1"}, first.Layout.Chromosomes())

	_, err = o.Submit(ctx, sample, "baseline", "")
	require.NoError(t, err)
	second := next()
	assert.Empty(t, second.Chromosome)
	assert.Equal(t, []string{"1", "2"}, second.Layout.Chromosomes())
	assert.Equal(t, []render.Point{{X: 100, Y: 1}}, second.Points[cnv.Loss])
	assert.Equal(t, []render.Point{{X: 250, Y: 2}}, second.Points[cnv.NoChange])
	assert.Equal(t, uint64(2), second.Generation)
}

func TestOverlapsAreLogged(t *testing.T) {
	files := scenarioFiles()
	files[cnv.SegmentsFileName(sample, "baseline")] = scenarioSegments + "1\t200\t300\t3.0\tgain\n"
	loader, hook := newLoader(files)
	model, err := loader.Load(context.Background(), orchestrator.Request{Sample: sample, Algorithm: "baseline"})
	require.NoError(t, err)
	assert.Equal(t, 1, model.Stats.Overlaps)

	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestReport(t *testing.T) {
	loader, _ := newLoader(scenarioFiles())
	report, err := loader.Report(context.Background(), sample, "baseline")
	require.NoError(t, err)
	require.Len(t, report.Aberrations, 1)
	assert.Equal(t, "Loss", report.Aberrations[0].Type)

	_, err = loader.Report(context.Background(), "missing", "baseline")
	assert.ErrorIs(t, err, ErrFileMissing)
}
