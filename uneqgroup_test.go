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
)

func newGroup() (*UnEqGroup, *VarGroup) {
	vars := NewVarGroup()
	minTol := vars.AddCell("minTol", 0)
	tolerance := vars.AddCell("tolerance", 1e-10)
	return NewUnEqGroup(minTol, tolerance), vars
}

// TestS1PureConstants is spec.md S1: a single UnEq where equation is
// unknown - 5; expect unknown == 5 in <=5 outer iterations.
func TestS1PureConstants(t *testing.T) {
	g, vars := newGroup()
	x := vars.AddCell("x", 0)
	eq := vars.AddCell("eq", 0)
	m := NewMemo(eq, NewMinus(NewVarRef(x), NewConstant(5)))
	vars.registerMemo(m)
	vars.Optimize()

	u := NewUnEq("u1", x, eq, 0)
	g.Add(u)

	ok := g.IterateLevelMinerals(nil)
	if !ok {
		t.Fatal("expected convergence")
	}
	if math.Abs(x.Value()-5) > 1e-9 {
		t.Errorf("got x=%v, want 5", x.Value())
	}
	if g.lastOuterIter > 5 {
		t.Errorf("took %d outer iterations, want <=5", g.lastOuterIter)
	}
}

// TestS2TwoVariableLinear is spec.md S2: f1 = x+y-3, f2 = x-y-1; expect
// x=2, y=1 to 1e-10 in <=6 iterations.
func TestS2TwoVariableLinear(t *testing.T) {
	g, vars := newGroup()
	x := vars.AddCell("x", 0)
	y := vars.AddCell("y", 0)
	eq1 := vars.AddCell("eq1", 0)
	eq2 := vars.AddCell("eq2", 0)
	vars.registerMemo(NewMemo(eq1, NewMinus(NewPlus(NewVarRef(x), NewVarRef(y)), NewConstant(3))))
	vars.registerMemo(NewMemo(eq2, NewMinus(NewMinus(NewVarRef(x), NewVarRef(y)), NewConstant(1))))
	vars.Optimize()

	g.Add(NewUnEq("f1", x, eq1, 0))
	g.Add(NewUnEq("f2", y, eq2, 0))

	ok := g.IterateLevelMinerals(nil)
	if !ok {
		t.Fatal("expected convergence")
	}
	if math.Abs(x.Value()-2) > 1e-10 || math.Abs(y.Value()-1) > 1e-10 {
		t.Errorf("got x=%v y=%v, want x=2 y=1", x.Value(), y.Value())
	}
	if g.lastInnerIter > 6 {
		t.Errorf("took %d iterations, want <= 6", g.lastInnerIter)
	}
}

// TestS3MineralActivation is spec.md S3: a type3 UnEq starts inactive;
// once its saturation index is observed positive, the outer loop
// activates it and the inner loop drives its unknown to the root of its
// equation.
func TestS3MineralActivation(t *testing.T) {
	g, vars := newGroup()
	x := vars.AddCell("x", -1)
	eq := vars.AddCell("eq", 0)
	si := vars.AddCell("si", 1) // supersaturated from the start
	vars.registerMemo(NewMemo(eq, NewMinus(NewVarRef(x), NewConstant(1))))
	vars.Optimize()

	u := NewUnEq("mineral", x, eq, 0)
	u.MakeType3(si, true) // initially inactive regardless of x's sign
	g.Add(u)

	ok := g.IterateLevelMinerals(nil)
	if !ok {
		t.Fatal("expected convergence")
	}
	if !u.Active() {
		t.Error("expected the type3 UnEq to have been activated")
	}
	if math.Abs(x.Value()-1) > 1e-8 {
		t.Errorf("got x=%v, want ~1", x.Value())
	}
}

// TestS4SingularJacobian is spec.md S4: redundant rows (both equations
// have the same gradient, [1 1], so the Jacobian is rank-deficient) but
// with inconsistent right-hand sides (x+y can't equal both 3 and 1), so
// no assignment of x,y ever satisfies both residuals simultaneously;
// expect no crash and a reported non-convergence.
func TestS4SingularJacobian(t *testing.T) {
	g, vars := newGroup()
	x := vars.AddCell("x", 1)
	y := vars.AddCell("y", 1)
	eq1 := vars.AddCell("eq1", 0)
	eq2 := vars.AddCell("eq2", 0)
	vars.registerMemo(NewMemo(eq1, NewMinus(NewPlus(NewVarRef(x), NewVarRef(y)), NewConstant(3))))
	vars.registerMemo(NewMemo(eq2, NewMinus(NewPlus(NewVarRef(x), NewVarRef(y)), NewConstant(1))))
	vars.Optimize()

	g.Add(NewUnEq("f1", x, eq1, 0))
	g.Add(NewUnEq("f2", y, eq2, 0))

	ok := g.IterateLevelMinerals(nil)
	if ok {
		t.Error("expected non-convergence on a singular, inconsistent Jacobian")
	}
}

func TestIterateLevelMineralsRespectsCancellation(t *testing.T) {
	g, vars := newGroup()
	x := vars.AddCell("x", 0)
	eq := vars.AddCell("eq", 0)
	vars.registerMemo(NewMemo(eq, NewMinus(NewVarRef(x), NewConstant(5))))
	vars.Optimize()
	g.Add(NewUnEq("u1", x, eq, 0))

	stop := NewStopFlag()
	stop.PleaseStop("test")
	if g.IterateLevelMinerals(stop) {
		t.Error("expected cancellation to prevent convergence")
	}
}
