package pool

import (
	"runtime"
	"sync"
)

// Pool represents a pool of workers, used for parallelizing functions.
//
// Functions needing a *Pool will work with a nil receiver, doing the equivalent
// work on the current goroutine instead.
//
// By creating a pool, you avoid the overhead of spinning up goroutines for
// each new operation.
type Pool struct {
	// The common channel used to send tasks to the workers.
	tasks   chan func()
	workers int
	once    sync.Once
}

// NewPool creates a new pool, with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		tasks:   make(chan func()),
		workers: count,
	}
	for i := 0; i < count; i++ {
		go func() {
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Workers returns the number of workers, which is 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// TearDown stops the workers. The pool must not be used afterwards.
func (p *Pool) TearDown() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.tasks) })
}

// Parallelize calls f count times, passing in indices from 0..count-1.
//
// The result will be a slice containing [f(0), f(1), ..., f(count - 1)].
// f must not call Parallelize on the same pool.
func Parallelize[T any](p *Pool, count int, f func(int) T) []T {
	results := make([]T, count)
	if p == nil {
		for i := range results {
			results[i] = f(i)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		i := i
		p.tasks <- func() {
			defer wg.Done()
			results[i] = f(i)
		}
	}
	wg.Wait()
	return results
}
