package orchestrator

import (
	"context"
	"sync"
)

// workerPool evaluates one symbol per job. Each symbol is submitted once per
// pass, so no symbol is ever worked on by two workers at the same time.
type workerPool struct {
	size int
	jobs chan string
	run  func(ctx context.Context, symbol string) error
	wg   sync.WaitGroup

	mu    sync.Mutex
	first error
}

func newWorkerPool(size int, run func(ctx context.Context, symbol string) error) *workerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{size: size, jobs: make(chan string, size), run: run}
}

func (p *workerPool) start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *workerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for sym := range p.jobs {
		if ctx.Err() != nil {
			continue
		}
		if err := p.run(ctx, sym); err != nil {
			p.mu.Lock()
			if p.first == nil {
				p.first = err
			}
			p.mu.Unlock()
		}
	}
}

// submit blocks until a worker is free or ctx is done
func (p *workerPool) submit(ctx context.Context, symbol string) error {
	select {
	case p.jobs <- symbol:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait drains the queue and returns the first job error
func (p *workerPool) wait() error {
	close(p.jobs)
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.first
}

// runPass evaluates symbols on size workers
func runPass(ctx context.Context, size int, symbols []string, run func(context.Context, string) error) error {
	p := newWorkerPool(size, run)
	p.start(ctx)
	for _, sym := range symbols {
		if err := p.submit(ctx, sym); err != nil {
			break
		}
	}
	return p.wait()
}
