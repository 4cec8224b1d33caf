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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"

	"github.com/googlegenomics/cnvview/analytics"
	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/internal/draw"
	"github.com/googlegenomics/cnvview/internal/orchestrator"
	"github.com/googlegenomics/cnvview/internal/pipeline"
	"github.com/googlegenomics/cnvview/internal/render"
	"github.com/googlegenomics/cnvview/sources"
)

// eventBuffer is the number of events kept for a slow event stream before
// further events are dropped.
const eventBuffer = 16

// viewEvent is sent to event stream subscribers when a model is published
// ("model") or the current load fails ("failed").
type viewEvent struct {
	Type       string               `json:"-"`
	Sample     string               `json:"sample"`
	Algorithm  string               `json:"algorithm"`
	Chromosome string               `json:"chromosome,omitempty"`
	Generation uint64               `json:"generation"`
	Title      string               `json:"title,omitempty"`
	Counts     map[cnv.Category]int `json:"counts,omitempty"`
	Reason     string               `json:"reason,omitempty"`
}

// broadcaster is the drawing surface of a view.  It forwards the outcome of
// current loads to every event stream of the view.
type broadcaster struct {
	log   logrus.FieldLogger
	track func([]analytics.Hit)

	mu          sync.Mutex
	subscribers map[chan viewEvent]struct{}
	last        *viewEvent
}

func (b *broadcaster) RenderModelReady(m *render.Model) {
	counts := make(map[cnv.Category]int, len(m.Points))
	for category, points := range m.Points {
		counts[category] = len(points)
	}
	b.publish(viewEvent{
		Type:       "model",
		Sample:     m.Sample,
		Algorithm:  m.Algorithm,
		Chromosome: m.Chromosome,
		Generation: m.Generation,
		Title:      m.Title,
		Counts:     counts,
	})
	b.track([]analytics.Hit{analytics.Count(analytics.CategoryLoads, "Model Published", m.Algorithm, m.Count())})
}

func (b *broadcaster) LoadFailed(req orchestrator.Request, err error) {
	reason := err.Error()
	if errors.Is(err, pipeline.ErrFileMissing) || errors.Is(err, pipeline.ErrNoData) {
		reason = "no data"
	}
	b.publish(viewEvent{
		Type:       "failed",
		Sample:     req.Sample,
		Algorithm:  req.Algorithm,
		Chromosome: req.Chromosome,
		Generation: req.Generation,
		Reason:     reason,
	})
	b.track([]analytics.Hit{analytics.Event(analytics.CategoryLoads, "Load Failed", reason, nil)})
}

func (b *broadcaster) publish(e viewEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &e
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.log.WithField("generation", e.Generation).Warn("event stream is full, dropping event")
		}
	}
}

// subscribe returns a channel receiving every future event, preceded by the
// most recent one.
func (b *broadcaster) subscribe() (<-chan viewEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan viewEvent, eventBuffer)
	if b.last != nil {
		ch <- *b.last
	}
	if b.subscribers == nil {
		b.subscribers = make(map[chan viewEvent]struct{})
	}
	b.subscribers[ch] = struct{}{}
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, ch)
	}
}

// view is one chart of a client, backed by its own orchestrator.
type view struct {
	id     string
	orch   *orchestrator.Orchestrator
	events *broadcaster
	cancel context.CancelFunc
}

func (v *view) stop() {
	v.cancel()
}

// openView creates and starts a view reading from source.
func (server *Server) openView(source sources.Source) (*view, error) {
	id := uuid.NewString()
	log := server.log.WithField("view", id)
	events := &broadcaster{log: log, track: server.track}
	orch := orchestrator.New(pipeline.New(source, log), events, orchestrator.WithLogger(log))

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.views) >= server.maxViews {
		return nil, newTooManyViewsError(errTooManyViews)
	}
	ctx, cancel := context.WithCancel(server.ctx)
	v := &view{id: id, orch: orch, events: events, cancel: cancel}
	server.views[id] = v
	go orch.Run(ctx)
	log.Debug("view opened")
	return v, nil
}

func (server *Server) lookup(id string) (*view, error) {
	server.mu.Lock()
	defer server.mu.Unlock()
	v, ok := server.views[id]
	if !ok {
		return nil, newNotFoundError(id, errUnknownView)
	}
	return v, nil
}

// viewCall maps errors of calls to a view's orchestrator.
func viewCall(id string, err error) error {
	if errors.Is(err, orchestrator.ErrClosed) {
		return newNotFoundError(id, errUnknownView)
	}
	return err
}

func (server *Server) createView(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())

	source, err := server.source(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}
	v, err := server.openView(source)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": v.id})
	track(analytics.Event(analytics.CategoryViews, "View Created", "", nil))
}

// closeView stops and forgets the view with the given id.
func (server *Server) closeView(id string) bool {
	server.mu.Lock()
	v, ok := server.views[id]
	delete(server.views, id)
	server.mu.Unlock()
	if ok {
		v.stop()
	}
	return ok
}

func (server *Server) deleteView(c *gin.Context) {
	id := c.Param("id")
	if !server.closeView(id) {
		writeError(c, newNotFoundError(id, errUnknownView))
		return
	}
	c.Status(http.StatusNoContent)
}

func (server *Server) submitLoadRequest(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())

	v, err := server.lookup(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var body loadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, newInvalidInputError("decoding request", err))
		return
	}
	if err := body.normalize(); err != nil {
		writeError(c, newInvalidInputError("validating request", err))
		return
	}
	req, err := v.orch.Submit(c.Request.Context(), body.Sample, body.Algorithm, body.Chromosome)
	if err != nil {
		writeError(c, viewCall(v.id, err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"generation": req.Generation})
	track(analytics.Event(analytics.CategoryLoads, "Load Submitted", req.Algorithm, nil))
}

func (server *Server) serveStatus(c *gin.Context) {
	v, err := server.lookup(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	latest, err := v.orch.Latest(ctx)
	if err != nil {
		writeError(c, viewCall(v.id, err))
		return
	}
	history, err := v.orch.History(ctx)
	if err != nil {
		writeError(c, viewCall(v.id, err))
		return
	}
	current, err := v.orch.Current(ctx)
	if err != nil {
		writeError(c, viewCall(v.id, err))
		return
	}
	var published uint64
	if current != nil {
		published = current.Generation
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        v.id,
		"latest":    latest,
		"published": published,
		"history":   history,
	})
}

// currentModel returns the model currently published by the view named in
// the request.
func (server *Server) currentModel(c *gin.Context) (*render.Model, error) {
	v, err := server.lookup(c.Param("id"))
	if err != nil {
		return nil, err
	}
	model, err := v.orch.Current(c.Request.Context())
	if err != nil {
		return nil, viewCall(v.id, err)
	}
	if model == nil {
		return nil, newNoDataError(v.id, errNoModel)
	}
	return model, nil
}

func (server *Server) serveModel(c *gin.Context) {
	model, err := server.currentModel(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

func (server *Server) serveEvents(c *gin.Context) {
	v, err := server.lookup(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	events, unsubscribe := v.events.subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case e := <-events:
			c.SSEvent(e.Type, e)
			return true
		case <-v.orch.Done():
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (server *Server) servePlot(c *gin.Context) {
	server.serveImage(c, draw.Chart)
}

func (server *Server) serveBoxPlot(c *gin.Context) {
	server.serveImage(c, draw.BoxPlot)
}

func (server *Server) serveImage(c *gin.Context, plotter func(*render.Model) (*plot.Plot, error)) {
	format, err := draw.ParseFormat(c.Param("format"))
	if err != nil {
		writeError(c, newUnsupportedFormatError(err))
		return
	}
	model, err := server.currentModel(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := plotter(model)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := draw.Write(&buf, p, format, draw.Width, draw.Height); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, draw.ContentType(format), buf.Bytes())
}
