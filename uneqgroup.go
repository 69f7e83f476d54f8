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

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

const (
	minStepFactor = 1e-5
	seedValue     = 1e-3
	tightenedTol  = 1e-3
)

// UnEqGroup is the nonlinear solver core: the active-set management,
// Jacobian assembly, LU solve and two-level (mineral/Newton) iteration
// described in spec.md §3, §4.3.
type UnEqGroup struct {
	unEqs  []*UnEq
	active []*UnEq

	// jacobian is the row-major dim*dim dense array, grow-only per
	// spec.md §4.3's "State machine for the Jacobian array".
	jacobian []float64
	jacCap   int
	rhs      []float64

	minTol    *Cell
	tolerance *Cell

	maxIter int

	// mintolflipped records that minTol has been force-tightened to
	// 1e-3 once already during the current calculation, mirroring the
	// teacher-adjacent original's one-shot semantics (spec.md §4.3, step 2).
	mintolflipped bool

	lastOuterIter int
	lastInnerIter int

	log Logger
}

// NewUnEqGroup creates an empty solver core referencing the distinguished
// minTol and tolerance cells (spec.md §3).
func NewUnEqGroup(minTol, tolerance *Cell) *UnEqGroup {
	minTol.markDirectUse()
	tolerance.markDirectUse()
	return &UnEqGroup{minTol: minTol, tolerance: tolerance, maxIter: 200, log: defaultLogger()}
}

// Add registers u as a row of the system.
func (g *UnEqGroup) Add(u *UnEq) { g.unEqs = append(g.unEqs, u) }

// NrOfMinerals returns the number of type3 rows, used to size the outer
// loop's iteration bound (spec.md §4.3 step 4).
func (g *UnEqGroup) NrOfMinerals() int {
	n := 0
	for _, u := range g.unEqs {
		if u.Type3() {
			n++
		}
	}
	return n
}

// Initialise rebuilds the active list from each UnEq's current Active()
// state and grows the Jacobian array if needed, per spec.md §4.3's
// grow-only state machine. Called at the start of every inner loop.
func (g *UnEqGroup) Initialise() {
	g.active = g.active[:0]
	for _, u := range g.unEqs {
		if u.Active() {
			g.active = append(g.active, u)
		}
	}
	n := len(g.active)
	need := n * n
	if need > g.jacCap {
		g.jacobian = make([]float64, need)
		g.jacCap = need
	} else {
		for i := range g.jacobian[:need] {
			g.jacobian[i] = 0
		}
	}
	if cap(g.rhs) < n {
		g.rhs = make([]float64, n)
	} else {
		g.rhs = g.rhs[:n]
	}
}

// HowConvergent returns the maximum of every active row's HowConvergent
// metric; values <=1 mean the whole active set satisfies its tolerance
// (spec.md §4.3).
func (g *UnEqGroup) HowConvergent() float64 {
	if len(g.active) == 0 {
		return 0
	}
	tol := g.tolerance.Value()
	vals := make([]float64, len(g.active))
	for i, u := range g.active {
		vals[i] = u.HowConvergent(tol)
	}
	return floats.Max(vals)
}

// calculateJacobian evaluates the central residual of every active row,
// then assembles the dense Jacobian by forward-differencing each active
// unknown in turn -- offsetting it, re-evaluating every active row's
// equation (reusing memoized sub-evaluations unaffected by the offset
// cell), and resetting it, per spec.md §4.2/§4.3 step 2.
func (g *UnEqGroup) calculateJacobian() error {
	n := len(g.active)
	for _, u := range g.active {
		u.CalculateCentralResidual()
	}
	for col, colEq := range g.active {
		saved := colEq.OffsetUnknown()
		for row, rowEq := range g.active {
			rowEq.CalculateJResidual()
			entry := rowEq.jacobianEntry()
			if math.IsNaN(entry) || math.IsInf(entry, 0) {
				colEq.ResetUnknown(saved)
				return &NumericFault{Msg: "non-finite Jacobian entry"}
			}
			g.jacobian[row*n+col] = entry
		}
		colEq.ResetUnknown(saved)
	}
	for row, rowEq := range g.active {
		r := rowEq.centralResidual
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return &NumericFault{Msg: "non-finite central residual"}
		}
		g.rhs[row] = -r
	}
	return nil
}

// adaptEstimations solves J*delta = -r in place, computes the common
// damping factor across all active rows, and applies each row's update
// (spec.md §4.3 steps 3-5). Per the original's commonfactor reduction,
// a row whose own factor already falls below minStepFactor is excluded
// from the commonfactor min and applied at its own (smaller) factor
// instead; the minStepFactor floor applies only to the aggregate
// commonfactor, never to an individual row's raw CheckUnknownStep value.
func (g *UnEqGroup) adaptEstimations() error {
	n := len(g.active)
	if err := luDecomposeSolve(g.jacobian, g.rhs, n); err != nil {
		return err
	}
	factors := make([]float64, 0, n)
	for i, u := range g.active {
		f := u.CheckUnknownStep(g.rhs[i])
		if f < minStepFactor {
			// Excluded from the commonfactor min; applied at its own
			// (smaller) factor below instead.
			continue
		}
		factors = append(factors, f)
	}
	commonfactor := 1.0
	if len(factors) > 0 {
		commonfactor = floats.Min(factors)
	}
	if commonfactor < minStepFactor {
		commonfactor = minStepFactor
	}
	for i, u := range g.active {
		f := commonfactor
		if u.factor < f {
			f = u.factor
		}
		u.UpdateUnknown(f, g.rhs[i])
	}
	return nil
}

// iterateLevel0 runs the inner damped Newton-Raphson loop to (attempted)
// convergence, per spec.md §4.3. Every active row's central residual is
// evaluated before each convergence test. It returns the iteration count
// and whether the active set converged within maxIter.
func (g *UnEqGroup) iterateLevel0(stop *StopFlag) (int, bool) {
	iter := 0
	for {
		for _, u := range g.active {
			u.CalculateCentralResidual()
		}
		if g.HowConvergent() <= 1 {
			break
		}
		if stop != nil && stop.Cancelled() {
			return iter, false
		}
		if iter >= g.maxIter {
			return iter, false
		}
		if err := g.calculateJacobian(); err != nil {
			return iter, false
		}
		if err := g.adaptEstimations(); err != nil {
			return iter, false
		}
		iter++
	}
	g.lastInnerIter = iter
	return iter, true
}

// mostSupersaturated returns the inactive type3 UnEq with the largest
// positive saturation index, or nil if none is supersaturated.
func (g *UnEqGroup) mostSupersaturated() *UnEq {
	var best *UnEq
	bestVal := 0.0
	for _, u := range g.unEqs {
		if !u.Type3() || u.Active() {
			continue
		}
		si := u.SaturationIndex.Value()
		if si > 0 && (best == nil || si > bestVal) {
			best = u
			bestVal = si
		}
	}
	return best
}

// IterateLevelMinerals runs the full two-level solve: the outer
// mineral-activation loop wrapping the inner Newton loop, per spec.md
// §4.3. It returns true on overall convergence.
func (g *UnEqGroup) IterateLevelMinerals(stop *StopFlag) bool {
	g.mintolflipped = false
	for _, u := range g.unEqs {
		if u.Type3() {
			if u.InitiallyInactive() {
				u.Deactivate()
			} else if u.Unknown.IniValue() > 0 {
				u.Activate(u.Unknown.IniValue())
			} else {
				u.Deactivate()
			}
		}
	}

	maxOuter := g.NrOfMinerals()
	if maxOuter < 50 {
		maxOuter = 50
	}

	for outer := 0; outer < maxOuter; outer++ {
		g.lastOuterIter = outer
		g.Initialise()
		if inner, ok := g.iterateLevel0(stop); !ok {
			if stop != nil && stop.Cancelled() {
				g.log.WithField("outerIter", outer).Warn("orchestra: iteration cancelled")
			} else {
				g.log.WithFields(logrus.Fields{
					"outerIter": outer,
					"innerIter": inner,
				}).Warn("orchestra: inner loop did not converge within maxIter")
			}
			return false
		}
		if stop != nil && stop.Cancelled() {
			g.log.WithField("outerIter", outer).Warn("orchestra: iteration cancelled")
			return false
		}

		if next := g.mostSupersaturated(); next != nil {
			next.Activate(seedValue)
			if !g.mintolflipped {
				g.minTol.SetValue(tightenedTol)
				g.mintolflipped = true
			}
			continue
		}

		if g.minTol.Value() > 0 {
			g.minTol.SetValue(0)
			continue
		}
		return true
	}
	g.log.WithField("maxOuter", maxOuter).Warn("orchestra: mineral activation loop did not converge within maxOuter")
	return false
}
