// Package jobs runs processing jobs on a bounded worker pool. At most one
// job per match is in flight; a second submission for the same match is
// rejected until the first finishes.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/allanai/rallymetrics/internal/engine"
	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/metrics"
	"github.com/allanai/rallymetrics/internal/storage"
)

var (
	// ErrInFlight means a run for the match is already queued or running.
	ErrInFlight = errors.New("match is already being processed")

	// ErrQueueFull means the pending queue is at capacity.
	ErrQueueFull = errors.New("processing queue is full")

	// ErrStopped means the pool is shutting down.
	ErrStopped = errors.New("processing pool is stopped")
)

// Job is one processing request.
type Job struct {
	MatchID string
	Doc     *ingest.Document
}

// Pool fans jobs out to a fixed set of workers.
type Pool struct {
	engine  *engine.Engine
	store   *storage.DB
	log     *slog.Logger
	metrics *metrics.Metrics

	jobs    chan Job
	workers int

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool

	wg sync.WaitGroup
}

// NewPool sizes the pool with workers goroutines and a queue of queueSize
// pending jobs. Call Run before submitting.
func NewPool(e *engine.Engine, store *storage.DB, log *slog.Logger, m *metrics.Metrics, workers, queueSize int) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		engine:   e,
		store:    store,
		log:      log,
		metrics:  m,
		jobs:     make(chan Job, queueSize),
		workers:  workers,
		inFlight: make(map[string]struct{}),
	}
}

// Run starts the workers. They drain the queue until Shutdown closes it; ctx
// cancels in-progress engine runs.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.process(ctx, job)
			}
		}()
	}
}

// Submit enqueues a job. Fails fast when the match is already in flight or
// the queue is full. The enqueue happens under the mutex so Shutdown can
// never close the channel between the stopped check and the send.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if _, busy := p.inFlight[job.MatchID]; busy {
		return ErrInFlight
	}

	select {
	case p.jobs <- job:
		p.inFlight[job.MatchID] = struct{}{}
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.jobs))
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// InFlight reports whether a run for the match is queued or running.
func (p *Pool) InFlight(matchID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.inFlight[matchID]
	return busy
}

// Shutdown stops intake and waits for queued jobs to finish, up to ctx's
// deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release(matchID string) {
	p.mu.Lock()
	delete(p.inFlight, matchID)
	p.mu.Unlock()
}

func (p *Pool) process(ctx context.Context, job Job) {
	defer p.release(job.MatchID)
	if p.metrics != nil {
		p.metrics.RunStarted()
		p.metrics.SetQueueDepth(len(p.jobs))
	}
	start := time.Now()

	if err := p.store.MarkProcessing(job.MatchID, job.Doc.Source); err != nil {
		p.log.Error("mark processing", "match_id", job.MatchID, "error", err)
	}

	doc, err := p.engine.Process(ctx, job.MatchID, job.Doc)
	if err != nil {
		p.log.Error("processing failed", "match_id", job.MatchID, "error", err)
		if p.metrics != nil {
			p.metrics.RunFailed()
		}
		if markErr := p.store.MarkFailed(job.MatchID, err.Error()); markErr != nil {
			p.log.Error("mark failed", "match_id", job.MatchID, "error", markErr)
		}
		return
	}

	if err := p.store.SaveResult(doc); err != nil {
		p.log.Error("save result", "match_id", job.MatchID, "error", err)
		if p.metrics != nil {
			p.metrics.RunFailed()
		}
		if markErr := p.store.MarkFailed(job.MatchID, "persist result: "+err.Error()); markErr != nil {
			p.log.Error("mark failed", "match_id", job.MatchID, "error", markErr)
		}
		return
	}

	if p.metrics != nil {
		p.metrics.RunCompleted(time.Since(start).Seconds())
	}
}
