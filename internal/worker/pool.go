package worker

import (
	"context"
	"sync"
)

// Job is a unit of work, typically one input shard
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	GetError() error
}

type queued struct {
	seq int
	job Job
}

type done struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of goroutines. Results are returned
// in submission order regardless of completion order.
type Pool struct {
	workers    int
	jobQueue   chan queued
	results    chan done
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int

	// results are drained as they arrive so Submit never waits on a
	// full results channel
	collected   map[int]Result
	collectDone chan struct{}
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops workers
// after their current job.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:     workers,
		jobQueue:    make(chan queued, workers*2),
		results:     make(chan done, workers*2),
		ctx:         ctx,
		cancelFunc:  cancel,
		collected:   make(map[int]Result),
		collectDone: make(chan struct{}),
	}
}

// Workers returns the pool size
func (p *Pool) Workers() int { return p.workers }

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool) collect() {
	defer close(p.collectDone)
	for d := range p.results {
		p.collected[d.seq] = d.result
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := q.job.Execute(p.ctx)
			select {
			case p.results <- done{seq: q.seq, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false if the pool is shutting down.
// Submit and Wait must be called from the same goroutine.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	q := queued{seq: p.submitted, job: job}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- q:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for every submitted job and returns the
// results indexed by submission order. Slots of jobs that never ran
// because the pool was cancelled are nil. Start must have been called.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collectDone

	out := make([]Result, p.submitted)
	for seq, r := range p.collected {
		out[seq] = r
	}
	return out
}

// Shutdown cancels the pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
