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

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/cnvview/analytics"
	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/genomics"
)

// maxComparedSamples is the largest number of samples shown side by side.
const maxComparedSamples = 6

var errNothingToCompare = errors.New("at least one sample and one algorithm are required")

// chart is one chart of a comparison.
type chart struct {
	Sample    string `json:"sample"`
	Algorithm string `json:"algorithm"`
}

// planComparison decides which charts show samples and algorithms.  Several
// samples are compared using the first algorithm only; a single sample is
// shown once per algorithm.  Duplicates are ignored and algorithms are
// shown in their canonical order.
func planComparison(samples, algorithms []string) ([]chart, error) {
	samples = distinct(samples)
	var tokens []string
	for _, name := range algorithms {
		algorithm, err := parseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, algorithm)
	}
	tokens = distinct(tokens)
	if len(samples) == 0 || len(tokens) == 0 {
		return nil, errNothingToCompare
	}
	if len(samples) > maxComparedSamples {
		return nil, fmt.Errorf("at most %d samples can be compared, got %d", maxComparedSamples, len(samples))
	}

	if len(samples) >= 2 {
		var charts []chart
		for _, sample := range samples {
			charts = append(charts, chart{sample, tokens[0]})
		}
		return charts, nil
	}
	var charts []chart
	for _, algorithm := range cnv.Algorithms {
		for _, token := range tokens {
			if token == algorithm {
				charts = append(charts, chart{samples[0], algorithm})
			}
		}
	}
	return charts, nil
}

func distinct(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type comparisonRequest struct {
	Samples    []string `json:"samples"`
	Algorithms []string `json:"algorithms"`
	Chromosome string   `json:"chromosome"`
}

type comparisonChart struct {
	chart
	ID         string `json:"id"`
	Generation uint64 `json:"generation"`
	Title      string `json:"title"`
}

func (server *Server) createComparison(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())

	var body comparisonRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, newInvalidInputError("decoding request", err))
		return
	}
	chromosome, err := genomics.ParseFilter(body.Chromosome)
	if err != nil {
		writeError(c, newInvalidInputError("parsing chromosome", err))
		return
	}
	charts, err := planComparison(body.Samples, body.Algorithms)
	if err != nil {
		writeError(c, newInvalidInputError("planning comparison", err))
		return
	}
	source, err := server.source(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}

	var out []comparisonChart
	abort := func(err error) {
		for _, opened := range out {
			server.closeView(opened.ID)
		}
		writeError(c, err)
	}
	for _, ch := range charts {
		v, err := server.openView(source)
		if err != nil {
			abort(err)
			return
		}
		req, err := v.orch.Submit(c.Request.Context(), ch.Sample, ch.Algorithm, chromosome)
		if err != nil {
			server.closeView(v.id)
			abort(viewCall(v.id, err))
			return
		}
		out = append(out, comparisonChart{
			chart:      ch,
			ID:         v.id,
			Generation: req.Generation,
			Title:      cnv.Title(ch.Sample, ch.Algorithm, chromosome),
		})
	}
	c.JSON(http.StatusCreated, gin.H{"charts": out})
	track(analytics.Count(analytics.CategoryViews, "Comparison Created", "", len(out)))
}
