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

// Package draw paints render models with gonum/plot.
package draw

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/googlegenomics/cnvview/internal/axis"
	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/render"
)

// ErrUnknownFormat is returned for unsupported image formats.
var ErrUnknownFormat = errors.New("unknown image format")

// Formats lists the supported image formats.
var Formats = []string{"png", "svg", "pdf"}

var contentTypes = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

// ParseFormat validates an image format name.
func ParseFormat(format string) (string, error) {
	format = strings.ToLower(format)
	if _, ok := contentTypes[format]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return format, nil
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	return contentTypes[format]
}

// Default chart dimensions.
const (
	Width  = 30 * vg.Centimeter
	Height = 12 * vg.Centimeter
)

// opacity of bin points, out of 255.
const pointAlpha = 153

var (
	pointColors = map[cnv.Category]color.NRGBA{
		cnv.NoChange: {R: 0x25, G: 0xc2, B: 0x25, A: pointAlpha},
		cnv.Loss:     {R: 0x1c, G: 0x60, B: 0xc5, A: pointAlpha},
		cnv.Gain:     {R: 0xce, G: 0x37, B: 0x1c, A: pointAlpha},
	}
	segmentColors = map[cnv.Category]color.NRGBA{
		cnv.NoChange: {R: 0x01, G: 0x7a, B: 0x09, A: 0xff},
		cnv.Loss:     {R: 0x02, G: 0x41, B: 0xff, A: 0xff},
		cnv.Gain:     {R: 0xfe, G: 0x01, B: 0x01, A: 0xff},
	}
	gridColor     = color.Gray{Y: 0xb0}
	boundaryColor = color.Gray{Y: 0x60}
	dashes        = []vg.Length{vg.Points(5), vg.Points(10)}
)

// Chart returns the scatter chart of m: one batched scatter per category,
// segment bars, reference levels and chromosome boundaries.
func Chart(m *render.Model) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = m.Title
	p.Y.Label.Text = "Copy number"

	glyph := vg.Points(2)
	if m.Axis.Mode == axis.Chromosome {
		glyph = vg.Points(3)
		p.X.Label.Text = "Position (Mb)"
	}

	for _, category := range cnv.Categories {
		points := m.Points[category]
		if len(points) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys(points))
		if err != nil {
			return nil, fmt.Errorf("plotting %v points: %w", category, err)
		}
		s.GlyphStyle.Color = pointColors[category]
		s.GlyphStyle.Radius = glyph
		s.GlyphStyle.Shape = vgdraw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(category.String(), s)
	}

	for _, bar := range m.Segments {
		l, err := horizontal(bar.X1, bar.X2, bar.CopyNumber)
		if err != nil {
			return nil, fmt.Errorf("plotting %v: %w", bar.Segment, err)
		}
		l.LineStyle.Width = vg.Points(4)
		l.LineStyle.Color = segmentColors[bar.Type]
		p.Add(l)
	}

	for _, ref := range m.Axis.ReferenceLines {
		l, err := horizontal(m.Axis.XMin, m.Axis.XMax, ref.Value)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = segmentColors[ref.Category]
		l.LineStyle.Dashes = dashes
		p.Add(l)
	}
	for _, v := range m.Axis.Gridlines {
		l, err := horizontal(m.Axis.XMin, m.Axis.XMax, v)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = gridColor
		l.LineStyle.Dashes = dashes
		p.Add(l)
	}

	if m.Axis.Mode == axis.Genome {
		if err := addChromosomes(p, m.Axis); err != nil {
			return nil, err
		}
	}

	var ticks []plot.Tick
	for _, t := range m.Axis.Ticks {
		ticks = append(ticks, plot.Tick{Value: t.Value, Label: t.Label})
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	// Axis bounds are set last since Add widens them to fit the data.
	p.X.Min, p.X.Max = m.Axis.XMin, m.Axis.XMax
	p.Y.Min, p.Y.Max = m.Axis.YMin, m.Axis.YMax
	return p, nil
}

func addChromosomes(p *plot.Plot, plan axis.Plan) error {
	for _, b := range plan.Boundaries {
		l, err := plotter.NewLine(plotter.XYs{{X: b, Y: plan.YMin}, {X: b, Y: plan.YMax}})
		if err != nil {
			return err
		}
		l.LineStyle.Color = boundaryColor
		p.Add(l)
	}
	if len(plan.Labels) == 0 {
		return nil
	}
	labels := plotter.XYLabels{}
	for _, label := range plan.Labels {
		labels.XYs = append(labels.XYs, plotter.XY{X: label.Position, Y: plan.YMax})
		labels.Labels = append(labels.Labels, label.Chromosome)
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = vgdraw.XCenter
		l.TextStyle[i].YAlign = vgdraw.YTop
	}
	p.Add(l)
	return nil
}

func horizontal(x1, x2, y float64) (*plotter.Line, error) {
	return plotter.NewLine(plotter.XYs{{X: x1, Y: y}, {X: x2, Y: y}})
}

func xys(points []render.Point) plotter.XYs {
	out := make(plotter.XYs, len(points))
	for i, pt := range points {
		out[i].X, out[i].Y = pt.X, pt.Y
	}
	return out
}

// BoxPlot returns a box plot of the copy numbers of every chromosome of m.
// It is the graphical form of the model's summary.
func BoxPlot(m *render.Model) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = m.Title
	p.Y.Label.Text = "Copy number"

	var names []string
	for _, summary := range m.Summary {
		if len(summary.Values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(12), float64(len(names)), plotter.Values(summary.Values))
		if err != nil {
			return nil, fmt.Errorf("plotting chromosome %s: %w", summary.Chromosome, err)
		}
		box.FillColor = pointColors[cnv.NoChange]
		p.Add(box)
		names = append(names, summary.Chromosome)
	}
	p.NominalX(names...)
	return p, nil
}

// Write encodes p in format.
func Write(w io.Writer, p *plot.Plot, format string, width, height vg.Length) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}
	var c interface {
		vg.CanvasSizer
		io.WriterTo
	}
	switch format {
	case "png":
		c = vgimg.PngCanvas{Canvas: vgimg.New(width, height)}
	case "svg":
		c = vgsvg.New(width, height)
	case "pdf":
		c = vgpdf.New(width, height)
	}
	p.Draw(vgdraw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("writing %s: %w", format, err)
	}
	return nil
}
