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
	"math"
	"testing"
	"time"
)

func buildNodes(t *testing.T, calc *Calculator, n int, initial float64) []*Node {
	t.Helper()
	nodes := make([]*Node, n)
	for i := range nodes {
		node := NewNode(calc.Type)
		node.SetValue(calc.Type.Index("x"), initial)
		nodes[i] = node
	}
	return nodes
}

// TestProcessNodesParallelMatchesSingleThread is spec.md S5: many
// independent, identical nodes processed by a multi-worker pool must all
// converge to the same answer a single-threaded pass would produce.
func TestProcessNodesParallelMatchesSingleThread(t *testing.T) {
	calc, err := Parse(linearProgram)
	if err != nil {
		t.Fatal(err)
	}
	nodes := buildNodes(t, calc, 50, 0)

	stop := NewStopFlag()
	proc := NewNodeProcessor(calc, 4, stop, nodes)
	defer proc.Close()

	proc.ProcessNodes(nodes, MemoryNone)

	for i, n := range nodes {
		got := n.GetValue(calc.Type.Index("x"))
		if math.Abs(got-5) > 1e-8 {
			t.Errorf("node %d: got x=%v, want 5", i, got)
		}
	}
}

func TestProcessNodesSingleThreadFastPath(t *testing.T) {
	calc, err := Parse(linearProgram)
	if err != nil {
		t.Fatal(err)
	}
	nodes := buildNodes(t, calc, 10, 0)

	stop := NewStopFlag()
	proc := NewNodeProcessor(calc, 1, stop, nodes)
	defer proc.Close()

	proc.ProcessNodes(nodes, MemoryNone)

	for i, n := range nodes {
		got := n.GetValue(calc.Type.Index("x"))
		if math.Abs(got-5) > 1e-8 {
			t.Errorf("node %d: got x=%v, want 5", i, got)
		}
	}
}

func TestProcessNodesRepeatedBatchesDoNotDeadlock(t *testing.T) {
	calc, err := Parse(linearProgram)
	if err != nil {
		t.Fatal(err)
	}
	nodes := buildNodes(t, calc, 20, 0)

	stop := NewStopFlag()
	proc := NewNodeProcessor(calc, 3, stop, nodes)
	defer proc.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			proc.ProcessNodes(nodes, MemoryNone)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessNodes appears to have deadlocked across repeated calls")
	}
}

// TestProcessNodesCancellationBoundsRuntime is spec.md S6: a stop flag
// raised before dispatch must make ProcessNodes return promptly, with
// the pool still usable afterward once the flag is reset.
func TestProcessNodesCancellationBoundsRuntime(t *testing.T) {
	calc, err := Parse(linearProgram)
	if err != nil {
		t.Fatal(err)
	}
	nodes := buildNodes(t, calc, 200, 0)

	stop := NewStopFlag()
	proc := NewNodeProcessor(calc, 4, stop, nodes)
	defer proc.Close()

	stop.PleaseStop("test")

	done := make(chan struct{})
	go func() {
		proc.ProcessNodes(nodes, MemoryNone)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessNodes did not return promptly after cancellation")
	}

	stop.Reset()
	proc.ProcessNodes(nodes, MemoryNone)
	for i, n := range nodes {
		got := n.GetValue(calc.Type.Index("x"))
		if math.Abs(got-5) > 1e-8 {
			t.Errorf("node %d after reset: got x=%v, want 5", i, got)
		}
	}
}

func TestNodeProcessorWarmPropagatesTemplate(t *testing.T) {
	calc, err := Parse(linearProgram)
	if err != nil {
		t.Fatal(err)
	}
	nodes := buildNodes(t, calc, 10, 0)

	stop := NewStopFlag()
	proc := NewNodeProcessor(calc, 3, stop, nodes)
	defer proc.Close()

	proc.ProcessNodes(nodes, MemoryWarm)
	for _, c := range proc.calcs {
		if !c.hasRun || c.warm == nil {
			t.Error("expected every clone to have a warm template after a warm batch")
		}
	}
}
