// Copyright 2017 Google Inc.
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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/cnvview/sources"
	"github.com/googlegenomics/cnvview/sources/file"
)

const (
	testSample = "FC1-C1-E1"

	testBins = "chromosome\tstart\tend\tcopy_number\n" +
		"1\t100\t200\t1.0\n" +
		"1\t5000\t5100\tnan\n" +
		"2\t50\t150\t2.0\n"

	testSegments = "chromosome\tstart\tend\tcopy_number\ttype\n" +
		"1\t90\t210\t1.0\tloss\n"
)

func testData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		testSample + "_baseline_bins.tsv":     testBins,
		testSample + "_baseline_segments.tsv": testSegments,
		testSample + "_bicseq2_bins.tsv":      testBins,
		"FC1-C1-E2_baseline_bins.tsv":         testBins,
		"FC1-C1-E2_baseline_segments.tsv":     testSegments,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestRouter(t *testing.T, newSource NewSourceFunc, opts ...Option) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.Out = io.Discard
	server := NewServer(newSource, append([]Option{WithLogger(log)}, opts...)...)
	t.Cleanup(server.Close)
	router := gin.New()
	server.Export(router)
	return server, router
}

func fileSource(dir string) NewSourceFunc {
	return func(*http.Request) (sources.Source, error) {
		return file.New(dir), nil
	}
}

func testQuery(t *testing.T, router http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func expectError(t *testing.T, name string, code int, w *httptest.ResponseRecorder) {
	t.Helper()
	if got, want := w.Code, code; got != want {
		t.Errorf("Wrong status code: got %v, want %v", got, want)
	}
	body := make(map[string]interface{})
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Errorf("Failed to parse response: %v", err)
	}
	if got, want := body["error"], name; got != want {
		t.Errorf("Wrong 'error' field value: got %v, want %v", got, want)
	}
}

func createView(t *testing.T, router http.Handler) string {
	t.Helper()
	w := testQuery(t, router, "POST", "/views", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.NotEmpty(t, body.ID)
	return body.ID
}

func submit(t *testing.T, router http.Handler, id string, req loadRequest) uint64 {
	t.Helper()
	w := testQuery(t, router, "POST", "/views/"+id+"/requests", req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var body struct {
		Generation uint64 `json:"generation"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Generation
}

type statusBody struct {
	Latest struct {
		Generation uint64 `json:"generation"`
		State      string `json:"state"`
		Error      string `json:"error"`
	} `json:"latest"`
	Published uint64 `json:"published"`
}

func waitForState(t *testing.T, router http.Handler, id string, generation uint64, state string) statusBody {
	t.Helper()
	var status statusBody
	require.Eventually(t, func() bool {
		w := testQuery(t, router, "GET", "/views/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			return false
		}
		return status.Latest.Generation == generation && status.Latest.State == state
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

func TestInvalidInputs(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	id := createView(t, router)

	testCases := []struct {
		name string
		body interface{}
	}{
		{"no sample", loadRequest{Algorithm: "baseline"}},
		{"no algorithm", loadRequest{Sample: testSample}},
		{"unknown algorithm", loadRequest{Sample: testSample, Algorithm: "magic"}},
		{"unknown chromosome", loadRequest{Sample: testSample, Algorithm: "baseline", Chromosome: "chr99"}},
		{"not an object", []string{"baseline"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, "InvalidInput", http.StatusBadRequest,
				testQuery(t, router, "POST", "/views/"+id+"/requests", tc.body))
		})
	}
}

func TestUnknownView(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	for _, url := range []string{"/views/nope", "/views/nope/model", "/views/nope/plot/png", "/views/nope/events"} {
		expectError(t, "NotFound", http.StatusNotFound, testQuery(t, router, "GET", url, nil))
	}
	expectError(t, "NotFound", http.StatusNotFound, testQuery(t, router, "DELETE", "/views/nope", nil))
}

func TestSamples(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	w := testQuery(t, router, "GET", "/samples", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Samples []struct {
			ID         string   `json:"id"`
			Embryo     string   `json:"embryo"`
			Algorithms []string `json:"algorithms"`
		} `json:"samples"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Samples, 2)
	assert.Equal(t, testSample, body.Samples[0].ID)
	assert.Equal(t, "E1", body.Samples[0].Embryo)
	assert.Equal(t, []string{"baseline"}, body.Samples[0].Algorithms)
}

func TestReport(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	w := testQuery(t, router, "GET", "/samples/"+testSample+"/Baseline/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Title       string `json:"title"`
		Aberrations []struct {
			Type string `json:"type"`
		} `json:"aberrations"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "FC1-E1 -- Baseline", body.Title)
	require.Len(t, body.Aberrations, 1)
	assert.Equal(t, "Loss", body.Aberrations[0].Type)

	expectError(t, "NoData", http.StatusNotFound,
		testQuery(t, router, "GET", "/samples/"+testSample+"/bicseq2/report", nil))
	expectError(t, "InvalidInput", http.StatusBadRequest,
		testQuery(t, router, "GET", "/samples/"+testSample+"/magic/report", nil))
}

func TestViewLifecycle(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	id := createView(t, router)

	expectError(t, "NoData", http.StatusNotFound, testQuery(t, router, "GET", "/views/"+id+"/model", nil))

	generation := submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline"})
	assert.Equal(t, uint64(1), generation)
	status := waitForState(t, router, id, generation, "published")
	assert.Equal(t, generation, status.Published)

	w := testQuery(t, router, "GET", "/views/"+id+"/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var model struct {
		Generation   uint64                  `json:"generation"`
		GenomeLength int64                   `json:"genomeLength"`
		Points       map[string][][2]float64 `json:"points"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&model))
	assert.Equal(t, uint64(1), model.Generation)
	assert.Equal(t, int64(350), model.GenomeLength)
	assert.Equal(t, [][2]float64{{100, 1}}, model.Points["loss"])
	assert.Equal(t, [][2]float64{{250, 2}}, model.Points["no_change"])

	w = testQuery(t, router, "GET", "/views/"+id+"/plot/png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	w = testQuery(t, router, "GET", "/views/"+id+"/boxplot/svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	expectError(t, "UnsupportedFormat", http.StatusBadRequest,
		testQuery(t, router, "GET", "/views/"+id+"/plot/gif", nil))

	// Narrowing to one chromosome replaces the model.
	generation = submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline", Chromosome: "chr2"})
	assert.Equal(t, uint64(2), generation)
	waitForState(t, router, id, generation, "published")
	w = testQuery(t, router, "GET", "/views/"+id+"/model", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&model))
	assert.Equal(t, int64(150), model.GenomeLength)

	assert.Equal(t, http.StatusNoContent, testQuery(t, router, "DELETE", "/views/"+id, nil).Code)
	expectError(t, "NotFound", http.StatusNotFound, testQuery(t, router, "GET", "/views/"+id, nil))
}

func TestNonFiniteCopyNumbersAreSkipped(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"FC1-C1-E3_baseline_bins.tsv":     testBins + "1\t300\t400\tinf\n",
		"FC1-C1-E3_baseline_segments.tsv": testSegments + "2\t40\t160\tnan\tgain\n" + "2\t300\t400\t-inf\tloss\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	_, router := newTestRouter(t, fileSource(dir))
	id := createView(t, router)

	generation := submit(t, router, id, loadRequest{Sample: "FC1-C1-E3", Algorithm: "baseline"})
	waitForState(t, router, id, generation, "published")

	w := testQuery(t, router, "GET", "/views/"+id+"/model", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var model struct {
		Segments []json.RawMessage `json:"segments"`
		Axis     struct {
			YMax float64 `json:"yMax"`
		} `json:"axis"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&model))
	assert.Len(t, model.Segments, 1)
	assert.Equal(t, 4.0, model.Axis.YMax)

	assert.Equal(t, http.StatusOK, testQuery(t, router, "GET", "/views/"+id+"/plot/png", nil).Code)

	w = testQuery(t, router, "GET", "/samples/FC1-C1-E3/baseline/report", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report struct {
		Aberrations []json.RawMessage `json:"aberrations"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Len(t, report.Aberrations, 1)
}

func TestFilterThenWholeGenome(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	id := createView(t, router)

	var model struct {
		Chromosome string                  `json:"chromosome"`
		Points     map[string][][2]float64 `json:"points"`
	}
	first := submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline", Chromosome: "1"})
	waitForState(t, router, id, first, "published")
	w := testQuery(t, router, "GET", "/views/"+id+"/model", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&model))
	assert.Equal(t, "1", model.Chromosome)
	assert.Empty(t, model.Points["no_change"])

	model.Chromosome, model.Points = "", nil
	second := submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline"})
	waitForState(t, router, id, second, "published")
	w = testQuery(t, router, "GET", "/views/"+id+"/model", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&model))
	assert.Empty(t, model.Chromosome)
	assert.Equal(t, [][2]float64{{100, 1}}, model.Points["loss"])
	assert.Equal(t, [][2]float64{{250, 2}}, model.Points["no_change"])
}

func TestLoadFailureKeepsModel(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	id := createView(t, router)

	first := submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline"})
	waitForState(t, router, id, first, "published")

	second := submit(t, router, id, loadRequest{Sample: "missing", Algorithm: "baseline"})
	status := waitForState(t, router, id, second, "failed")
	assert.Equal(t, first, status.Published)
	assert.Contains(t, status.Latest.Error, "missing")

	assert.Equal(t, http.StatusOK, testQuery(t, router, "GET", "/views/"+id+"/model", nil).Code)
}

func TestEvents(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	ts := httptest.NewServer(router)
	defer ts.Close()
	id := createView(t, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/views/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	submit(t, router, id, loadRequest{Sample: "missing", Algorithm: "baseline"})
	submit(t, router, id, loadRequest{Sample: testSample, Algorithm: "baseline"})

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name := strings.TrimPrefix(scanner.Text(), "event:"); name != scanner.Text() {
				events <- strings.TrimSpace(name)
			}
		}
	}()

	// The failure of the first request is stale by the time it completes or
	// is reported before the second request publishes.
	for {
		select {
		case name, ok := <-events:
			require.True(t, ok, "event stream closed")
			if name == "model" {
				return
			}
			assert.Equal(t, "failed", name)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a model event")
		}
	}
}

func TestComparisons(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))

	w := testQuery(t, router, "POST", "/comparisons", comparisonRequest{
		Samples:    []string{testSample, "FC1-C1-E2", testSample},
		Algorithms: []string{"baseline", "bicseq2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Charts []struct {
			ID         string `json:"id"`
			Sample     string `json:"sample"`
			Algorithm  string `json:"algorithm"`
			Generation uint64 `json:"generation"`
		} `json:"charts"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Charts, 2)
	for i, sample := range []string{testSample, "FC1-C1-E2"} {
		assert.Equal(t, sample, body.Charts[i].Sample)
		assert.Equal(t, "baseline", body.Charts[i].Algorithm)
		waitForState(t, router, body.Charts[i].ID, body.Charts[i].Generation, "published")
	}

	expectError(t, "InvalidInput", http.StatusBadRequest,
		testQuery(t, router, "POST", "/comparisons", comparisonRequest{Samples: []string{testSample}}))
}

func TestPlanComparison(t *testing.T) {
	testCases := []struct {
		name       string
		samples    []string
		algorithms []string
		want       []chart
	}{
		{"single chart", []string{"a"}, []string{"baseline"}, []chart{{"a", "baseline"}}},
		{"one per algorithm", []string{"a"}, []string{"BlueFuse", "baseline"},
			[]chart{{"a", "baseline"}, {"a", "bluefuse"}}},
		{"one per sample", []string{"a", "b", "a"}, []string{"wisecondorx", "baseline"},
			[]chart{{"a", "wisecondorx"}, {"b", "wisecondorx"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := planComparison(tc.samples, tc.algorithms)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := planComparison(nil, []string{"baseline"})
	assert.Error(t, err)
	_, err = planComparison([]string{"a", "b", "c", "d", "e", "f", "g"}, []string{"baseline"})
	assert.Error(t, err)
	_, err = planComparison([]string{"a"}, []string{"magic"})
	assert.Error(t, err)
}

type bucketSource struct {
	sources.Source
	bucket string
}

func (s bucketSource) Bucket() string { return s.bucket }

func TestWhitelist(t *testing.T) {
	dir := testData(t)
	server, router := newTestRouter(t, func(*http.Request) (sources.Source, error) {
		return bucketSource{file.New(dir), "private"}, nil
	})
	server.Whitelist([]string{"public"})
	expectError(t, "PermissionDenied", http.StatusForbidden, testQuery(t, router, "GET", "/samples", nil))
	expectError(t, "PermissionDenied", http.StatusForbidden, testQuery(t, router, "POST", "/views", nil))

	server.Whitelist([]string{"private"})
	assert.Equal(t, http.StatusOK, testQuery(t, router, "GET", "/samples", nil).Code)
}

func TestSourceErrors(t *testing.T) {
	testCases := []struct {
		name, error string
		code        int
		err         error
	}{
		{"unauthenticated", "InvalidAuthentication", http.StatusUnauthorized, sources.ErrUnauthenticated},
		{"forbidden", "PermissionDenied", http.StatusForbidden, sources.ErrPermissionDenied},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, router := newTestRouter(t, func(*http.Request) (sources.Source, error) {
				return nil, tc.err
			})
			expectError(t, tc.error, tc.code, testQuery(t, router, "GET", "/samples", nil))
		})
	}
}

func TestTooManyViews(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)), WithMaxViews(1))
	createView(t, router)
	expectError(t, "TooManyViews", http.StatusTooManyRequests, testQuery(t, router, "POST", "/views", nil))
}

func TestForwardOrigin(t *testing.T) {
	_, router := newTestRouter(t, fileSource(testData(t)))
	req := httptest.NewRequest("GET", "/samples", nil)
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))
}
