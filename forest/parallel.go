package forest

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum cell count to use the worker pool.
// Below this, a single pass is faster than the channel round trips.
const parallelThreshold = 4096

// workChunk is a half-open row range for one worker.
type workChunk struct {
	start, end int
}

// rowPool is a persistent set of goroutines that evaluate row ranges.
type rowPool struct {
	numWorkers int
	run        func(start, end int)

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// newRowPool sizes the pool. workers <= 0 means GOMAXPROCS.
func newRowPool(workers int, run func(start, end int)) *rowPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &rowPool{numWorkers: workers, run: run}
}

// startWorkers launches persistent worker goroutines.
func (p *rowPool) startWorkers() {
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

// stopWorkers signals all workers to exit and waits for them.
func (p *rowPool) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker processes chunks until stopped.
func (p *rowPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.run(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// forRows evaluates rows [0, n) and returns once every row is done.
func (p *rowPool) forRows(n, cells int) {
	if p.numWorkers == 1 || cells < parallelThreshold {
		p.run(0, n)
		return
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
