package game

import (
	"math/rand"
	"sync"
)

// workChunk is one static partition of the population.
type workChunk struct {
	start, end int
	rng        *rand.Rand
}

// parallelState holds the worker pool that steps agents each tick.
type parallelState struct {
	chunks     []workChunk
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// newParallelState splits n agents into contiguous partitions, one per worker.
// Each partition owns a generator seeded from seed, so a run is reproducible
// for a fixed worker count.
func newParallelState(workers, n int, seed int64) *parallelState {
	numWorkers := max(min(workers, n), 1)
	chunkSize := (n + numWorkers - 1) / numWorkers

	p := &parallelState{numWorkers: numWorkers}
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.chunks = append(p.chunks, workChunk{
			start: start,
			end:   end,
			rng:   rand.New(rand.NewSource(seed + int64(w) + 1)),
		})
	}
	return p
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(g *Game) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(g)
	}
}

// stopWorkers signals all workers to exit and waits for them. Called between
// ticks, so no chunk is in flight.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(g *Game) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			g.stepChunk(chunk)
			p.doneChan <- struct{}{}
		}
	}
}

// stepAll dispatches every partition and waits for all of them: the per-tick
// barrier.
func (p *parallelState) stepAll() {
	for _, chunk := range p.chunks {
		p.workChan <- chunk
	}
	for range p.chunks {
		<-p.doneChan
	}
}

// stepChunk steps the agents of one partition.
func (g *Game) stepChunk(chunk workChunk) {
	for i := chunk.start; i < chunk.end; i++ {
		g.agents[i].Step(chunk.rng)
	}
}
