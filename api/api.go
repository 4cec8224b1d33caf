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

// Package api implements the CNV view service.
//
// A client creates a view, submits load requests to it and receives the
// resulting render models, either by polling or as server-sent events.
// Every view runs its own load orchestrator, so a slow load can never
// replace the result of a request submitted after it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/googlegenomics/cnvview/analytics"
	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/genomics"
	"github.com/googlegenomics/cnvview/internal/pipeline"
	"github.com/googlegenomics/cnvview/sources"
)

const defaultMaxViews = 256

var (
	errUnknownView      = errors.New("unknown view")
	errNoModel          = errors.New("nothing has been published yet")
	errMissingSample    = errors.New("no sample specified")
	errMissingAlgorithm = errors.New("no algorithm specified")
	errTooManyViews     = errors.New("too many open views")
)

// NewSourceFunc is the type of function that constructs the source used to
// satisfy the incoming request.
type NewSourceFunc func(*http.Request) (sources.Source, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the server and of the loads it runs.
func WithLogger(log logrus.FieldLogger) Option {
	return func(server *Server) { server.log = log }
}

// WithTracker sets the function that receives analytics hits generated
// outside of requests, such as published models and failed loads.
func WithTracker(track func([]analytics.Hit)) Option {
	return func(server *Server) { server.track = track }
}

// WithMaxViews limits the number of views open at the same time.
func WithMaxViews(n int) Option {
	return func(server *Server) {
		if n > 0 {
			server.maxViews = n
		}
	}
}

// Server provides the view service.  Must be created with NewServer.
type Server struct {
	newSource NewSourceFunc
	whitelist map[string]bool
	log       logrus.FieldLogger
	track     func([]analytics.Hit)
	maxViews  int

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	views map[string]*view
}

// NewServer returns a new Server that reads sample files through the source
// returned by newSource.  The server calls newSource on every request that
// reads files or creates a view.
func NewServer(newSource NewSourceFunc, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		newSource: newSource,
		whitelist: make(map[string]bool),
		log:       logrus.StandardLogger(),
		track:     func([]analytics.Hit) {},
		maxViews:  defaultMaxViews,
		ctx:       ctx,
		cancel:    cancel,
		views:     make(map[string]*view),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

// Whitelist adds buckets to the set of buckets which the server is allowed to
// access. If Whitelist is never called for a given Server then reads from any
// bucket are allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Close stops every view.
func (server *Server) Close() {
	server.cancel()
	server.mu.Lock()
	defer server.mu.Unlock()
	for id, v := range server.views {
		v.stop()
		delete(server.views, id)
	}
}

// Export registers the endpoints of the service with router.
func (server *Server) Export(router gin.IRouter) {
	router.Use(forwardOrigin)
	router.GET("/samples", server.serveSamples)
	router.GET("/samples/:sample/:algorithm/report", server.serveReport)
	router.POST("/views", server.createView)
	router.GET("/views/:id", server.serveStatus)
	router.DELETE("/views/:id", server.deleteView)
	router.POST("/views/:id/requests", server.submitLoadRequest)
	router.GET("/views/:id/model", server.serveModel)
	router.GET("/views/:id/events", server.serveEvents)
	router.GET("/views/:id/plot/:format", server.servePlot)
	router.GET("/views/:id/boxplot/:format", server.serveBoxPlot)
	router.POST("/comparisons", server.createComparison)
}

// source returns the source for req after checking it against the
// whitelist.
func (server *Server) source(req *http.Request) (sources.Source, error) {
	source, err := server.newSource(req)
	if err != nil {
		return nil, newStorageError("creating source", err)
	}
	if b, ok := source.(interface{ Bucket() string }); ok {
		if err := server.checkWhitelist(b.Bucket()); err != nil {
			return nil, newPermissionDeniedError("checking whitelist", err)
		}
	}
	return source, nil
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

func (server *Server) serveSamples(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())

	source, err := server.source(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}
	samples, err := source.List(c.Request.Context())
	if err != nil {
		writeError(c, newStorageError("listing samples", err))
		return
	}
	if samples == nil {
		samples = []sources.Sample{}
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
	track(analytics.Count(analytics.CategoryViews, "Samples Listed", "", len(samples)))
}

func (server *Server) serveReport(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())

	sample := c.Param("sample")
	algorithm, err := parseAlgorithm(c.Param("algorithm"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing algorithm", err))
		return
	}
	source, err := server.source(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}
	report, err := pipeline.New(source, server.log).Report(c.Request.Context(), sample, algorithm)
	if err != nil {
		writeError(c, newLoadError("reading report", err))
		return
	}
	c.JSON(http.StatusOK, report)
	track(analytics.Count(analytics.CategoryReports, "Report Sent", algorithm, len(report.Aberrations)))
}

// loadRequest is the body of a load request.
type loadRequest struct {
	Sample     string `json:"sample"`
	Algorithm  string `json:"algorithm"`
	Chromosome string `json:"chromosome"`
}

// normalize validates the request and converts its fields to the names used
// in file names and render models.
func (r *loadRequest) normalize() error {
	if r.Sample == "" {
		return errMissingSample
	}
	algorithm, err := parseAlgorithm(r.Algorithm)
	if err != nil {
		return err
	}
	chromosome, err := genomics.ParseFilter(r.Chromosome)
	if err != nil {
		return err
	}
	r.Algorithm, r.Chromosome = algorithm, chromosome
	return nil
}

func parseAlgorithm(name string) (string, error) {
	if name == "" {
		return "", errMissingAlgorithm
	}
	algorithm := cnv.NormalizeAlgorithm(name)
	if !cnv.KnownAlgorithm(algorithm) {
		return "", fmt.Errorf("unknown algorithm %q", name)
	}
	return algorithm, nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newApiError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newApiError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newApiError("InvalidInput", http.StatusBadRequest, context, err)
}

func newPermissionDeniedError(context string, err error) error {
	return newApiError("PermissionDenied", http.StatusForbidden, context, err)
}

func newNotFoundError(context string, err error) error {
	return newApiError("NotFound", http.StatusNotFound, context, err)
}

func newNoDataError(context string, err error) error {
	return newApiError("NoData", http.StatusNotFound, context, err)
}

func newUnsupportedFormatError(err error) error {
	return &apiError{"UnsupportedFormat", http.StatusBadRequest, err}
}

func newTooManyViewsError(err error) error {
	return &apiError{"TooManyViews", http.StatusTooManyRequests, err}
}

// newStorageError maps errors returned by sources onto API errors.
func newStorageError(context string, err error) error {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		return err
	case errors.Is(err, sources.ErrNotExist):
		return newNotFoundError(context, err)
	case errors.Is(err, sources.ErrPermissionDenied):
		return newPermissionDeniedError(context, err)
	case errors.Is(err, sources.ErrUnauthenticated):
		return newInvalidAuthenticationError(context, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}

// newLoadError maps errors returned by the pipeline onto API errors.
func newLoadError(context string, err error) error {
	if errors.Is(err, pipeline.ErrFileMissing) || errors.Is(err, pipeline.ErrNoData) {
		return newNoDataError(context, err)
	}
	return newStorageError(context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err to
// c.  A JSON object is written only when the error has a name and code
// defined by the API.
func writeError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.code, gin.H{
			"error":   apiErr.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(apiErr.code), apiErr.cause),
		})
		return
	}
	writeHTTPError(c, http.StatusInternalServerError, err)
}

func writeHTTPError(c *gin.Context, code int, err error) {
	c.Error(err)
	c.String(code, "%s: %v", http.StatusText(code), err)
	c.Abort()
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}
