package worker

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"kiana/logutil"
	"kiana/pipeline"
)

// ProcessFunc turns an image into a pipeline result.
type ProcessFunc func(ctx context.Context, img image.Image) pipeline.Result

// ResultCallback is invoked on completion from a worker goroutine.
// Callers should post back onto their own UI context.
type ResultCallback func(res pipeline.Result, err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs    chan job
	wg      sync.WaitGroup
	process ProcessFunc
	log     zerolog.Logger
}

type job struct {
	ctx context.Context
	img image.Image
	cb  ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, process ProcessFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		jobs:    make(chan job, 1),
		process: process,
		log:     logutil.Component("worker"),
	}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				b := j.img.Bounds()
				p.log.Debug().Int("worker", id).Int("w", b.Dx()).Int("h", b.Dy()).Msg("job started")
				res, err := p.runWithContext(j.ctx, j.img)
				p.log.Debug().Int("worker", id).Stringer("outcome", res.Outcome).Err(err).Msg("job finished")
				j.cb(res, err)
			}
		}(i)
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, img image.Image, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, img: img, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runWithContext returns ctx.Err() once the job's deadline passes, leaving the
// underlying work to finish in the background.
func (p *Pool) runWithContext(ctx context.Context, img image.Image) (pipeline.Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		return p.safeProcess(ctx, img)
	}
	type outcome struct {
		res pipeline.Result
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		res, err := p.safeProcess(ctx, img)
		resCh <- outcome{res, err}
	}()
	select {
	case o := <-resCh:
		return o.res, o.err
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
}

// safeProcess reports a panic in the process func as an error.
func (p *Pool) safeProcess(ctx context.Context, img image.Image) (res pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("%v", r)
		}
	}()
	return p.process(ctx, img), nil
}
