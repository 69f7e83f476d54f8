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

// Cell is a named scalar slot in a VarGroup. Its value is either a free
// unknown/input (mutated directly by SetValue) or the cached output of an
// owned Memo, in which case Value re-evaluates through the memo.
//
// A Cell also tracks how many VarRef expressions reference it; the
// optimization pass in expr.go uses this count to decide whether the
// Cell's owning Memo can be elided.
type Cell struct {
	Name string

	value    float64
	iniValue float64
	constant bool

	// memo is the expression that computes this cell's value, or nil if
	// the cell is a free/input value with no defining expression.
	memo *Memo

	// refs counts VarRef expressions that point at this cell. Built up
	// during parsing, consumed during optimization.
	refs int

	// dependents is the set of memos (anywhere in the graph, at any
	// depth) whose cached value depends on this cell, built once after
	// optimization by VarGroup.Optimize (via collectDependentCells).
	// Writing the cell re-arms every entry.
	dependents []*Memo
}

// NewCell creates a free cell with the given name and initial value.
func NewCell(name string, value float64) *Cell {
	return &Cell{Name: name, value: value, iniValue: value}
}

// Value returns the cell's current value, evaluating its owning memo if
// it has one and the memo's cache is stale.
func (c *Cell) Value() float64 {
	if c.memo != nil {
		return c.memo.Evaluate()
	}
	return c.value
}

// SetValue sets the cell's current value directly (bypassing any owned
// memo -- used for unknowns and inputs) and re-arms every memo
// transitively dependent on this cell, per invariant 1 of spec.md §8.
func (c *Cell) SetValue(v float64) {
	c.value = v
	for _, m := range c.dependents {
		m.needsEval = true
	}
}

// IniValue returns the value recorded the last time SetIniValue was
// called (typically once per calculation, from node input).
func (c *Cell) IniValue() float64 { return c.iniValue }

// SetIniValue records v as the cell's initial value for this calculation
// without touching its current value.
func (c *Cell) SetIniValue(v float64) { c.iniValue = v }

// Constant reports whether the cell is flagged as a constant. A constant
// cell's value never changes during a calculation, which lets the
// expression optimizer fold it away.
func (c *Cell) Constant() bool { return c.constant }

// SetConstant sets or clears the cell's constant flag.
func (c *Cell) SetConstant(v bool) { c.constant = v }

// Memo returns the cell's owning memo, or nil.
func (c *Cell) Memo() *Memo { return c.memo }

// SetMemo installs m as the cell's owning expression.
func (c *Cell) SetMemo(m *Memo) { c.memo = m }

// markDirectUse records that an UnEq or UnEqGroup holds a direct
// pointer to this cell (an unknown, equation, saturation-index, minTol
// or tolerance cell). It is folded into the same refs counter VarRef
// bumps, which Memo.optimize's "referenced from only one place" test
// reads; the count only reaches that test for cells marked before
// VarGroup.Optimize runs, and Parse and Calculator.Clone build their
// UnEqs after optimizing.
func (c *Cell) markDirectUse() { c.refs++ }

// addDependent registers m as a memo whose cache must be invalidated
// whenever this cell is written.
func (c *Cell) addDependent(m *Memo) {
	for _, d := range c.dependents {
		if d == m {
			return
		}
	}
	c.dependents = append(c.dependents, m)
}

// clone produces an independent copy of the cell holding the same
// scalar state but no memo and no dependents; callers are expected to
// rebuild the expression graph (see Calculator.Clone).
func (c *Cell) clone() *Cell {
	return &Cell{
		Name:     c.Name,
		value:    c.value,
		iniValue: c.iniValue,
		constant: c.constant,
	}
}
