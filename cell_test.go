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

import "testing"

func TestCellValueWithoutMemo(t *testing.T) {
	c := NewCell("x", 3.5)
	if v := c.Value(); v != 3.5 {
		t.Errorf("got %v, want 3.5", v)
	}
	c.SetValue(7)
	if v := c.Value(); v != 7 {
		t.Errorf("got %v, want 7", v)
	}
}

func TestCellSetValueInvalidatesDependents(t *testing.T) {
	c := NewCell("x", 1)
	m := &Memo{owner: nil, child: NewConstant(0), needsEval: false}
	c.addDependent(m)
	if m.needsEval {
		t.Fatal("memo should not start dirty in this test")
	}
	c.SetValue(2)
	if !m.needsEval {
		t.Error("SetValue did not re-arm dependent memo")
	}
}

func TestCellAddDependentDedups(t *testing.T) {
	c := NewCell("x", 1)
	m := &Memo{child: NewConstant(0)}
	c.addDependent(m)
	c.addDependent(m)
	if len(c.dependents) != 1 {
		t.Errorf("got %d dependents, want 1", len(c.dependents))
	}
}

func TestCellClone(t *testing.T) {
	c := NewCell("x", 1)
	c.SetIniValue(2)
	c.SetConstant(true)
	c2 := c.clone()
	if c2.Name != c.Name || c2.Value() != c.Value() || c2.IniValue() != c.IniValue() || c2.Constant() != c.Constant() {
		t.Errorf("clone %+v does not match original %+v", c2, c)
	}
	if c2.memo != nil {
		t.Error("clone should not carry over a memo")
	}
	c2.SetValue(99)
	if c.Value() == 99 {
		t.Error("clone is not independent of original")
	}
}
