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

func newLinearUnEq(name string, unknownVal float64) *UnEq {
	unknown := NewCell(name+"_u", unknownVal)
	equation := NewCell(name+"_eq", 0)
	m := NewMemo(equation, NewMinus(NewVarRef(unknown), NewConstant(5)))
	vars := NewVarGroup()
	vars.registerMemo(m)
	vars.Optimize()
	return NewUnEq(name, unknown, equation, 0)
}

func TestUnEqCentralResidual(t *testing.T) {
	u := newLinearUnEq("r", 5)
	if v := u.CalculateCentralResidual(); v != 0 {
		t.Errorf("got %v, want 0", v)
	}
	u.Unknown.SetValue(8)
	if v := u.CalculateCentralResidual(); v != 3 {
		t.Errorf("got %v, want 3", v)
	}
}

func TestUnEqOffsetAndReset(t *testing.T) {
	u := newLinearUnEq("r", 2)
	saved := u.OffsetUnknown()
	if saved != 2 {
		t.Errorf("got %v, want 2", saved)
	}
	if u.Unknown.Value() != 2+u.unDelta {
		t.Errorf("unknown not offset by unDelta")
	}
	u.ResetUnknown(saved)
	if u.Unknown.Value() != 2 {
		t.Errorf("ResetUnknown did not restore original value")
	}
}

func TestUnEqJacobianEntryIsDerivative(t *testing.T) {
	u := newLinearUnEq("r", 2)
	u.CalculateCentralResidual()
	u.OffsetUnknown()
	u.CalculateJResidual()
	// equation = unknown - 5, so d(equation)/d(unknown) == 1.
	if got := u.jacobianEntry(); math.Abs(got-1) > 1e-6 {
		t.Errorf("got %v, want ~1", got)
	}
}

func TestUnEqConvergence(t *testing.T) {
	u := newLinearUnEq("r", 5)
	u.CalculateCentralResidual()
	if !u.IsConvergent(1e-6) {
		t.Error("residual 0 should be convergent")
	}
	u.Unknown.SetValue(100)
	u.CalculateCentralResidual()
	if u.IsConvergent(1e-6) {
		t.Error("large residual should not be convergent")
	}
}

func TestUnEqCheckUnknownStepCaps(t *testing.T) {
	u := newLinearUnEq("r", 1)
	u.stepCeiling = 5
	f := u.CheckUnknownStep(100)
	if f <= 0 || f > 1 {
		t.Errorf("factor %v out of (0,1]", f)
	}
	if f > 5.0/100 {
		t.Errorf("factor %v does not respect the step ceiling", f)
	}
}

func TestUnEqActivateDeactivate(t *testing.T) {
	u := newLinearUnEq("r", -1)
	u.MakeType3(NewCell("si", -1), true)
	if !u.Active() {
		t.Fatal("NewUnEq defaults active; MakeType3 itself doesn't change that")
	}
	u.Deactivate()
	if u.Active() {
		t.Error("Deactivate should clear active")
	}
	u.Activate(1e-3)
	if !u.Active() {
		t.Error("Activate should set active")
	}
	if u.Unknown.Value() != 1e-3 {
		t.Errorf("Activate should seed the unknown, got %v", u.Unknown.Value())
	}
}
