package worker

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	defer p.Stop()

	var (
		done atomic.Int64
		wg   sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			done.Add(1)
		})
	}
	wg.Wait()
	assert.EqualValues(t, 200, done.Load())
}

func TestPoolStopDrainsQueue(t *testing.T) {
	p := NewPool(2)

	var done atomic.Int64
	for i := 0; i < 50; i++ {
		p.Submit(func() { done.Add(1) })
	}
	p.Stop()
	assert.EqualValues(t, 50, done.Load(), "Stop waits for queued tasks")
}

func TestPoolDefaultsWorkerCount(t *testing.T) {
	p := NewPool(0)
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(wg.Done)
	wg.Wait()
}
