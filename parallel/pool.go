// Package parallel provides the persistent worker pool used for per-probe
// integration and ray intersection.
package parallel

import (
	"runtime"
	"sync"
)

// Threshold is the minimum item count to use the pool.
// Below this, single-threaded is faster due to goroutine overhead.
const Threshold = 64

// ChunkFunc processes items [start, end). chunk is unique among concurrently
// running calls and can index per-worker scratch space.
type ChunkFunc func(start, end, chunk int)

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	start, end, chunk int
	fn                ChunkFunc
}

// Pool is a fixed set of worker goroutines fed over channels.
// Run must not be called concurrently.
type Pool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

// New creates a pool with n workers (GOMAXPROCS when n <= 0).
// Workers start lazily on the first parallel Run.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Pool{numWorkers: n}
}

// Workers returns the number of workers, which bounds the chunk index.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.numWorkers
}

// start launches persistent worker goroutines.
func (p *Pool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them.
func (p *Pool) Stop() {
	if p == nil || !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case c, ok := <-p.workChan:
			if !ok {
				return
			}
			c.fn(c.start, c.end, c.chunk)
			p.doneChan <- struct{}{}
		}
	}
}

// Run splits [0, n) into one chunk per worker and blocks until all are done.
// A nil pool, a single worker or a small n runs inline as chunk 0.
func (p *Pool) Run(n int, fn ChunkFunc) {
	if n <= 0 {
		return
	}
	if p == nil || p.numWorkers == 1 || n < Threshold {
		fn(0, n, 0)
		return
	}

	p.start()

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, chunk: w, fn: fn}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
