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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"

	"github.com/googlegenomics/cnvview/internal/draw"
	"github.com/googlegenomics/cnvview/internal/orchestrator"
	"github.com/googlegenomics/cnvview/internal/pipeline"
	"github.com/googlegenomics/cnvview/internal/render"
)

// renderCmd loads one sample and writes its chart to a file.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the chart of a sample to an image file",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func init() {
	flags := renderCmd.Flags()
	flags.StringP("sample", "s", "", "sample identifier (required)")
	flags.StringP("algorithm", "a", "baseline", "calling algorithm")
	flags.StringP("chromosome", "c", "", `chromosome to show, empty or "all" for the whole genome`)
	flags.StringP("out", "o", "", "output file, the format is taken from its extension (default stdout)")
	flags.StringP("format", "f", "", "image format: png, svg or pdf")
	flags.Bool("boxplot", false, "draw the per-chromosome box plot instead of the scatter chart")
	flags.String("profile", "", `write a "cpu" or "mem" profile to the working directory`)
	renderCmd.MarkFlagRequired("sample")

	rootCmd.AddCommand(renderCmd)
}

// cliSurface hands the outcome of the single load to the command.
type cliSurface struct {
	models chan *render.Model
	errs   chan error
}

func newCLISurface() *cliSurface {
	return &cliSurface{models: make(chan *render.Model, 1), errs: make(chan error, 1)}
}

func (s *cliSurface) RenderModelReady(m *render.Model) {
	s.models <- m
}

func (s *cliSurface) LoadFailed(_ orchestrator.Request, err error) {
	s.errs <- err
}

// outputFormat picks the image format from the flag or the output file
// extension, defaulting to PNG.
func outputFormat(format, out string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(out), ".")
	}
	if format == "" {
		format = "png"
	}
	return draw.ParseFormat(format)
}

func runRender(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	sample, _ := flags.GetString("sample")
	algorithm, _ := flags.GetString("algorithm")
	chromosome, _ := flags.GetString("chromosome")
	out, _ := flags.GetString("out")
	format, _ := flags.GetString("format")
	boxplot, _ := flags.GetBool("boxplot")

	switch mode, _ := flags.GetString("profile"); mode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", mode)
	}

	format, err := outputFormat(format, out)
	if err != nil {
		return err
	}
	c, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	newSource, err := newSourceFunc(ctx, c.Source)
	if err != nil {
		return err
	}
	source, err := newSource(nil)
	if err != nil {
		return err
	}

	surface := newCLISurface()
	orch := orchestrator.New(pipeline.New(source, log), surface, orchestrator.WithLogger(log))
	go orch.Run(ctx)

	req, err := orch.Submit(ctx, sample, algorithm, chromosome)
	if err != nil {
		return err
	}
	var model *render.Model
	select {
	case model = <-surface.models:
	case err := <-surface.errs:
		return fmt.Errorf("loading %s: %w", req.Sample, err)
	case <-ctx.Done():
		return ctx.Err()
	}
	log.WithFields(logrus.Fields{
		"title":    model.Title,
		"points":   model.Count(),
		"segments": len(model.Segments),
	}).Info("model ready")

	plotter := draw.Chart
	if boxplot {
		plotter = draw.BoxPlot
	}
	p, err := plotter(model)
	if err != nil {
		return err
	}
	return writePlot(p, format, out)
}

func writePlot(p *plot.Plot, format, out string) error {
	w := io.Writer(os.Stdout)
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return draw.Write(w, p, format, draw.Width, draw.Height)
}
