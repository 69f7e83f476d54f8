/*
Copyright (C) 2013-2014 Regents of the University of Minnesota.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package orchestra

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// MemoryOption selects how a ProcessNodes batch seeds its unknowns
// (spec.md §4.5).
type MemoryOption int

const (
	// MemoryNone uses each node's current values (Calculate).
	MemoryNone MemoryOption = iota
	// MemoryWarm seeds from the last-successful-node template stored
	// inside each calculator (CalculateWithWarm). With a single worker
	// every node uses CalculateWithWarm; with several, only nodes[0] is
	// computed that way (by the first calculator, whose template is then
	// copied to the others), and the workers compute every node of the
	// batch with Calculate.
	MemoryWarm
)

// NodeProcessor is a persistent worker pool holding one cloned
// Calculator per worker, dispatching batches of nodes over a shared,
// mutex-guarded cursor with a two-condition-variable start/drain
// barrier (spec.md §4.5, §5; ported from
// original_source/NodeProcessor.cpp).
type NodeProcessor struct {
	calcs []*Calculator
	stop  *StopFlag
	log   Logger

	mu         sync.Mutex
	startCv    *sync.Cond // main -> workers (and back, for last-taken)
	busyCv     *sync.Cond // workers -> main, for drain
	nodes      []*Node
	currentIdx int
	setSize    int
	startFlag  bool
	lastTaken  bool
	busyCount  int
	quit       bool

	wg sync.WaitGroup
}

// NewNodeProcessorFromInput resolves fileID through CalculatorFromCache --
// reusing an already-parsed-and-optimized Calculator when another processor
// was already built from the same fileID -- then builds a pool exactly as
// NewNodeProcessor does, cloning that shared template once per worker.
func NewNodeProcessorFromInput(fileID string, nThreads int, stop *StopFlag, nodes []*Node) (*NodeProcessor, error) {
	calc, err := CalculatorFromCache(fileID)
	if err != nil {
		return nil, err
	}
	// CalculatorFromCache's result may be shared with other callers that
	// resolved the same fileID; Clone it before handing it to any worker,
	// per CalculatorFromCache's own documented invariant.
	return NewNodeProcessor(calc.Clone(), nThreads, stop, nodes), nil
}

// NewNodeProcessor clones calc nThreads times (nThreads<=0 means
// runtime.NumCPU), performs a single throw-away warm-up calculation on
// nodes[0] with each clone, and starts the worker goroutines. stop, if
// non-nil, is the cancellation handle workers poll between batches and
// Newton iterations.
func NewNodeProcessor(calc *Calculator, nThreads int, stop *StopFlag, nodes []*Node) *NodeProcessor {
	if nThreads <= 0 {
		nThreads = runtime.NumCPU()
	}
	if stop == nil {
		stop = NewStopFlag()
	}
	p := &NodeProcessor{stop: stop, log: defaultLogger()}
	p.startCv = sync.NewCond(&p.mu)
	p.busyCv = sync.NewCond(&p.mu)
	p.nodes = nodes

	p.calcs = make([]*Calculator, nThreads)
	for i := 0; i < nThreads; i++ {
		p.calcs[i] = calc.Clone()
	}
	if len(nodes) > 0 {
		warm := NewStopFlag()
		for _, c := range p.calcs {
			c.Calculate(nodes[0].Clone(), warm)
		}
	}

	if nThreads > 1 {
		p.wg.Add(nThreads)
		for i := 0; i < nThreads; i++ {
			go p.worker(i)
		}
	}
	p.log.WithFields(logrus.Fields{
		"workers": nThreads,
		"nodes":   len(nodes),
	}).Debug("orchestra: node processor constructed")
	return p
}

// worker implements the persistent loop of spec.md §4.5's "Phases":
// wait on the start predicate, claim consecutive node batches until the
// queue is drained, then rejoin the barrier.
func (p *NodeProcessor) worker(id int) {
	defer p.wg.Done()
	calc := p.calcs[id]
	for {
		p.mu.Lock()
		for !p.startFlag {
			p.startCv.Wait()
		}
		if p.quit {
			p.mu.Unlock()
			return
		}
		p.busyCount++
		p.mu.Unlock()

		for {
			p.mu.Lock()
			if p.currentIdx >= len(p.nodes) {
				wasTaken := p.lastTaken
				p.lastTaken = true
				if !wasTaken {
					// Clear the start predicate in the same critical section
					// that detects exhaustion, closing the window where another
					// worker could re-acquire the mutex and find startFlag still
					// set (mirrors original_source/NodeProcessor.cpp's getNextNodes).
					p.startFlag = false
				}
				p.mu.Unlock()
				if !wasTaken {
					p.startCv.Broadcast()
				}
				break
			}
			start := p.currentIdx
			end := start + p.setSize
			if end > len(p.nodes) {
				end = len(p.nodes)
			}
			p.currentIdx = end
			p.mu.Unlock()

			for i := start; i < end; i++ {
				if p.stop.Cancelled() {
					continue
				}
				calc.Calculate(p.nodes[i], p.stop)
			}
		}

		p.mu.Lock()
		p.busyCount--
		done := p.busyCount == 0
		p.mu.Unlock()
		if done {
			p.busyCv.Broadcast()
		}
	}
}

// ProcessNodes dispatches nodes across the pool's workers, partitioning
// the queue into consecutive batches of setSize = max(1,
// len(nodes)/(nThreads*10)), and blocks until every node has been
// processed exactly once (spec.md §4.5).
//
// If the pool has only one worker, it bypasses the dispatch machinery
// entirely and calls the calculator directly per node (the "single
// thread fast path").
func (p *NodeProcessor) ProcessNodes(nodes []*Node, memOpt MemoryOption) {
	if len(p.calcs) <= 1 {
		calc := p.calcs[0]
		for _, n := range nodes {
			if p.stop.Cancelled() {
				continue
			}
			if memOpt == MemoryWarm {
				calc.CalculateWithWarm(n, p.stop)
			} else {
				calc.Calculate(n, p.stop)
			}
		}
		return
	}

	if memOpt == MemoryWarm && len(nodes) > 0 {
		p.calcs[0].CalculateWithWarm(nodes[0], p.stop)
		for _, c := range p.calcs[1:] {
			c.applyWarmTemplate(nodes[0])
		}
	}

	p.mu.Lock()
	p.nodes = nodes
	p.currentIdx = 0
	n := len(p.calcs)
	p.setSize = len(nodes) / (n * 10)
	if p.setSize < 1 {
		p.setSize = 1
	}
	p.lastTaken = false
	p.busyCount = 0
	p.startFlag = true
	p.mu.Unlock()
	p.startCv.Broadcast()

	p.mu.Lock()
	for !p.lastTaken {
		p.startCv.Wait()
	}
	// startFlag was already cleared by the worker that found the queue
	// exhausted, in the same critical section that set lastTaken.
	for p.busyCount != 0 {
		p.busyCv.Wait()
	}
	p.mu.Unlock()
}

// PleaseStop cancels the processor's stop flag, causing workers to
// abandon in-flight calculations (reporting non-convergence for those
// nodes) without exiting the pool.
func (p *NodeProcessor) PleaseStop(label string) {
	p.log.WithField("label", label).Warn("orchestra: node processor cancellation requested")
	p.stop.PleaseStop(label)
}

// Close shuts the pool down: it raises quit, wakes every worker and
// joins them. The processor's calculators must not be used afterward.
func (p *NodeProcessor) Close() {
	p.log.WithField("workers", len(p.calcs)).Info("orchestra: node processor shutting down")
	if len(p.calcs) <= 1 {
		return
	}
	p.mu.Lock()
	p.quit = true
	p.startFlag = true
	p.mu.Unlock()
	p.startCv.Broadcast()
	p.wg.Wait()
}
