package worker

import (
	"sync"

	"github.com/vidarx/recovery-backend/internal/metrics"
)

type Task func()

// Pool runs tasks on a fixed number of goroutines. Batch recovery submits
// one task per transaction; the pool size bounds how many processor queries
// are in flight at once.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
}

func NewPool(n int) *Pool {
	if n <= 0 {
		n = 4
	}
	p := &Pool{jobs: make(chan Task, 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Dec()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(t Task) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- t
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
