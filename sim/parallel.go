package sim

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to fan a stage out to
// the worker pool. Below this, single-threaded is faster than the
// dispatch overhead.
const parallelThreshold = 256

// chunk is a range of particle indices for one worker.
type chunk struct {
	start, end int
}

// pool runs pipeline stages over particle index ranges using persistent
// workers. run returns only after every index has been processed, which
// is the barrier between stages: stage N+1 never observes a particle
// whose stage-N output is still being written.
type pool struct {
	numWorkers int

	workChan chan chunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool

	// fn is set by run before dispatching and read by workers after
	// receiving a chunk; the channel send orders the accesses.
	fn func(start, end, worker int)
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &pool{numWorkers: workers}
}

// start launches the persistent worker goroutines.
func (p *pool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan chunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *pool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case c, ok := <-p.workChan:
			if !ok {
				return
			}
			p.fn(c.start, c.end, id)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes fn over [0, n) and returns once all of it has completed.
// Within one run, fn must write only state owned by the indices it was
// given and read only state finalized before the run started.
func (p *pool) run(n int, fn func(start, end, worker int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		fn(0, n, 0)
		return
	}
	if !p.running {
		p.start()
	}

	p.fn = fn
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
		p.workChan <- chunk{start: start, end: end}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
	p.fn = nil
}
