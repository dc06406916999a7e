package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Job is one strategy replayed over one symbol
type Job struct {
	ID      string
	Symbol  string
	Builder Builder
}

// JobResult is the outcome of a Job
type JobResult struct {
	ID       string
	Result   *Result
	Duration time.Duration
	Err      error
}

// WorkerPool runs replays in parallel
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	resultQueue chan JobResult
	run         func(context.Context, Job) (*Result, error)
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerPool creates a pool of workerCount workers, one per CPU when
// workerCount is not positive. run executes a single job.
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int, run func(context.Context, Job) (*Result, error)) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		run:         run,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop waits for queued jobs to finish and closes the result channel
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob queues job, blocking while the queue is full
func (wp *WorkerPool) SubmitJob(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel completed jobs are delivered on
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			result := wp.process(job)
			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) process(job Job) (result JobResult) {
	start := time.Now()
	result.ID = job.ID
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
		result.Duration = time.Since(start)
	}()
	result.Result, result.Err = wp.run(wp.ctx, job)
	return result
}

// RunAll replays every builder over every symbol in parallel and reports
// the batch. A failed job is logged and left out of the report; the error
// is returned only when the context is done.
func (e *Engine) RunAll(ctx context.Context, builders []Builder, symbols []string, series Series) (*Report, error) {
	var jobs []Job
	for bi, b := range builders {
		for si, symbol := range symbols {
			jobs = append(jobs, Job{ID: jobID(b, symbol, bi, si), Symbol: symbol, Builder: b})
		}
	}

	pool := NewWorkerPool(ctx, e.cfg.Workers, len(jobs), func(ctx context.Context, j Job) (*Result, error) {
		return e.Run(ctx, j.Builder, j.Symbol, series)
	})
	pool.Start()
	for _, j := range jobs {
		if err := pool.SubmitJob(j); err != nil {
			pool.Stop()
			return nil, err
		}
	}

	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		index[j.ID] = i
	}
	ordered := make([]*Result, len(jobs))
collect:
	for range jobs {
		select {
		case jr := <-pool.Results():
			if jr.Err != nil {
				e.log.LogError("backtest "+jr.ID, jr.Err)
				continue
			}
			ordered[index[jr.ID]] = jr.Result
			e.log.Debug("backtest %s finished in %s", jr.ID, jr.Duration)
		case <-ctx.Done():
			break collect
		}
	}
	pool.Stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(jobs))
	for _, r := range ordered {
		if r != nil {
			results = append(results, r)
		}
	}
	return NewReport(e.cfg.InitialBalance, results), nil
}

func jobID(b Builder, symbol string, bi, si int) string {
	return fmt.Sprintf("%s_%s_%d_%d", b.Style, symbol, bi, si)
}
