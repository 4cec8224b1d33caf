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

// Package orchestrator runs background loads of render models and decides
// which of their results may be published.
//
// Every submitted request is tagged with a new generation.  A finished load
// is published only when its generation is still the latest one and its
// parameters still match the live request; anything else is discarded.  All
// state is owned by the goroutine running Run, so results that complete out
// of order can never overwrite a newer model.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/googlegenomics/cnvview/internal/render"
)

// ErrClosed is returned by calls made after Run has returned.
var ErrClosed = errors.New("orchestrator is closed")

const defaultHistory = 64

// Request identifies one load.
type Request struct {
	Sample     string `json:"sample"`
	Algorithm  string `json:"algorithm"`
	Chromosome string `json:"chromosome,omitempty"`
	Generation uint64 `json:"generation"`
}

func (r Request) sameParameters(other Request) bool {
	return r.Sample == other.Sample && r.Algorithm == other.Algorithm && r.Chromosome == other.Chromosome
}

func (r Request) fields() logrus.Fields {
	return logrus.Fields{
		"sample":     r.Sample,
		"algorithm":  r.Algorithm,
		"chromosome": r.Chromosome,
		"generation": r.Generation,
	}
}

// State is the lifecycle state of one generation.
type State int

const (
	Idle State = iota
	Loading
	Published
	Superseded
	Failed
)

var stateNames = [...]string{"idle", "loading", "published", "superseded", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes s by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the diagnostic record of one generation.
type Status struct {
	Request
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Loader computes the render model of a request.  Loads run on their own
// goroutine; the context is cancelled once the request is superseded, but
// loaders are free to ignore that.
type Loader interface {
	Load(ctx context.Context, req Request) (*render.Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, req Request) (*render.Model, error)

// Load calls f(ctx, req).
func (f LoaderFunc) Load(ctx context.Context, req Request) (*render.Model, error) {
	return f(ctx, req)
}

// Surface receives the outcome of current requests.  Both methods are called
// on the goroutine running Run and must not call back into the orchestrator.
type Surface interface {
	RenderModelReady(model *render.Model)
	LoadFailed(req Request, err error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithHistory sets how many generations are remembered for Status.
func WithHistory(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.history = n
		}
	}
}

// Orchestrator serializes load requests for one view.
type Orchestrator struct {
	loader  Loader
	surface Surface
	log     logrus.FieldLogger
	history int

	ops  chan func()
	done chan struct{}

	// The fields below are only accessed by the Run goroutine.
	base       context.Context
	generation uint64
	live       Request
	cancel     context.CancelFunc
	current    *render.Model
	statuses   map[uint64]*Status
	order      []uint64
}

// New returns an orchestrator that loads models with loader and reports
// them to surface.  It does nothing until Run is called.
func New(loader Loader, surface Surface, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:   loader,
		surface:  surface,
		log:      logrus.StandardLogger(),
		history:  defaultHistory,
		ops:      make(chan func()),
		done:     make(chan struct{}),
		statuses: make(map[uint64]*Status),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes requests until ctx is done.  It must be called exactly
// once.  Loads in flight when Run returns are abandoned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.base = ctx
	defer close(o.done)
	for {
		select {
		case op := <-o.ops:
			op()
		case <-ctx.Done():
			if o.cancel != nil {
				o.cancel()
			}
			return ctx.Err()
		}
	}
}

// Done is closed when Run returns.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// do runs op on the Run goroutine and waits for it to finish.
func (o *Orchestrator) do(ctx context.Context, op func()) error {
	finished := make(chan struct{})
	select {
	case o.ops <- func() { op(); close(finished) }:
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Submit starts loading the chart of sample and algorithm, restricted to
// chromosome unless it is empty.  It returns the request with its newly
// allocated generation.  Earlier requests that are still loading become
// stale.
func (o *Orchestrator) Submit(ctx context.Context, sample, algorithm, chromosome string) (Request, error) {
	var req Request
	err := o.do(ctx, func() {
		o.generation++
		req = Request{Sample: sample, Algorithm: algorithm, Chromosome: chromosome, Generation: o.generation}
		o.live = req
		if o.cancel != nil {
			o.cancel()
		}
		var loadCtx context.Context
		loadCtx, o.cancel = context.WithCancel(o.base)
		o.record(&Status{Request: req, State: Loading, Started: time.Now()})
		o.log.WithFields(req.fields()).Debug("load submitted")
		go o.load(loadCtx, req)
	})
	return req, err
}

func (o *Orchestrator) load(ctx context.Context, req Request) {
	model, err := o.loader.Load(ctx, req)
	select {
	case o.ops <- func() { o.complete(req, model, err) }:
	case <-o.done:
	}
}

func (o *Orchestrator) complete(req Request, model *render.Model, err error) {
	status := o.statuses[req.Generation]
	if status == nil {
		// Evicted from the history; the request is long stale.
		status = &Status{Request: req}
	}
	status.Finished = time.Now()
	log := o.log.WithFields(req.fields()).WithField("elapsed", status.Finished.Sub(status.Started))

	if req.Generation != o.generation || !req.sameParameters(o.live) {
		status.State = Superseded
		log.WithError(err).Debug("stale result discarded")
		return
	}
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		status.State = Failed
		status.Error = err.Error()
		log.WithError(err).Warn("load failed")
		o.surface.LoadFailed(req, err)
		return
	}
	status.State = Published
	model.Generation = req.Generation
	o.current = model
	log.Info("model published")
	o.surface.RenderModelReady(model)
}

func (o *Orchestrator) record(status *Status) {
	o.statuses[status.Generation] = status
	o.order = append(o.order, status.Generation)
	for len(o.order) > o.history {
		delete(o.statuses, o.order[0])
		o.order = o.order[1:]
	}
}

// Current returns the most recently published model, or nil if nothing has
// been published yet.
func (o *Orchestrator) Current(ctx context.Context) (*render.Model, error) {
	var model *render.Model
	err := o.do(ctx, func() { model = o.current })
	return model, err
}

// Status returns the status of generation.  The boolean result is false for
// generations that were never allocated or have dropped out of the history.
func (o *Orchestrator) Status(ctx context.Context, generation uint64) (Status, bool, error) {
	var (
		status Status
		ok     bool
	)
	err := o.do(ctx, func() {
		var s *Status
		if s, ok = o.statuses[generation]; ok {
			status = *s
		}
	})
	return status, ok, err
}

// Latest returns the status of the most recent generation.  Before the
// first submission it returns a status in the Idle state.
func (o *Orchestrator) Latest(ctx context.Context) (Status, error) {
	var status Status
	err := o.do(ctx, func() {
		if s, ok := o.statuses[o.generation]; ok {
			status = *s
		}
	})
	return status, err
}

// History returns the remembered statuses, oldest first.
func (o *Orchestrator) History(ctx context.Context) ([]Status, error) {
	var history []Status
	err := o.do(ctx, func() {
		for _, generation := range o.order {
			history = append(history, *o.statuses[generation])
		}
	})
	return history, err
}
