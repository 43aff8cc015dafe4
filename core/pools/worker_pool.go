package pools

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Task is a unit of work run by a WorkerPool.
type Task func()

// WorkerPool runs tasks on a fixed set of goroutines. Each worker owns a
// queue and steals from its neighbours when its own queue is empty.
type WorkerPool struct {
	queues []chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	next   atomic.Uint64

	// Submitters and workers write different counters; keep them on
	// separate cache lines.
	_         cpu.CacheLinePad
	submitted atomic.Uint64
	inline    atomic.Uint64
	_         cpu.CacheLinePad
	completed atomic.Uint64
	steals    atomic.Uint64
}

// WorkerPoolStats is a snapshot of WorkerPool counters.
type WorkerPoolStats struct {
	Workers   int
	Submitted uint64
	Completed uint64
	Pending   uint64
	Inline    uint64
	Steals    uint64
}

// NewWorkerPool starts n workers, or one per CPU when n <= 0.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &WorkerPool{queues: make([]chan Task, n)}
	for i := range p.queues {
		p.queues[i] = make(chan Task, 256)
	}
	p.wg.Add(n)
	for i := range p.queues {
		go p.work(i)
	}
	return p
}

// Submit queues task. When every queue it tries is full the task runs on
// the caller's goroutine. It reports false once the pool is closed.
func (p *WorkerPool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.submitted.Add(1)

	n := uint64(len(p.queues))
	idx := p.next.Add(1) % n
	for i := uint64(0); i < 2; i++ {
		select {
		case p.queues[(idx+i)%n] <- task:
			return true
		default:
		}
	}
	p.inline.Add(1)
	p.run(task)
	return true
}

func (p *WorkerPool) work(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case task, ok := <-own:
			if !ok {
				return
			}
			p.run(task)
			continue
		default:
		}

		if p.steal(id) {
			continue
		}

		task, ok := <-own
		if !ok {
			return
		}
		p.run(task)
	}
}

func (p *WorkerPool) steal(id int) bool {
	n := len(p.queues)
	for i := 1; i < n; i++ {
		select {
		case task, ok := <-p.queues[(id+i)%n]:
			if !ok {
				continue
			}
			p.steals.Add(1)
			p.run(task)
			return true
		default:
		}
	}
	return false
}

func (p *WorkerPool) run(task Task) {
	defer p.completed.Add(1)
	task()
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats returns a snapshot of the pool counters.
func (p *WorkerPool) Stats() WorkerPoolStats {
	s := WorkerPoolStats{
		Workers:   len(p.queues),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Inline:    p.inline.Load(),
		Steals:    p.steals.Load(),
	}
	if s.Submitted > s.Completed {
		s.Pending = s.Submitted - s.Completed
	}
	return s
}
