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

// Memo wraps a subexpression and caches its value until the owning
// cell's dependency set is written to. It is the only node kind that
// may have more than one logical parent: the DAG property described in
// spec.md §3.
type Memo struct {
	owner *Cell // the cell this memo was created to compute
	child Expr

	needsEval bool
	lastValue float64

	optimized bool // guards optimize() against re-running more than once
	elided    Expr // cached result of optimize() once it has run
}

// NewMemo creates a memo computing child on behalf of owner. The memo
// starts dirty so its first Evaluate performs the initial computation.
func NewMemo(owner *Cell, child Expr) *Memo {
	m := &Memo{owner: owner, child: child, needsEval: true}
	owner.SetMemo(m)
	return m
}

// Evaluate implements Expr: recompute child only if needsEval is set,
// otherwise return the cached value (spec.md §3 invariant).
func (m *Memo) Evaluate() float64 {
	if m.needsEval {
		m.lastValue = m.child.Evaluate()
		m.needsEval = false
	}
	return m.lastValue
}

// Constant implements Expr.
func (m *Memo) Constant() bool { return m.child.Constant() }

// optimize runs the child-first optimization pass described in
// spec.md §4.1 and returns either m itself (still memoized, still
// shared) or a replacement expression for the *sole* caller that invoked
// optimize on this particular occurrence.
//
// A child that folds to a constant makes the memo -- and the cell it
// backs -- permanently constant, since the result will never again
// change; that mutation is global (any future lookup of owner by name
// sees the constant). A memo referenced from only one place in the
// graph has no caching benefit, so its child is inlined for that one
// caller only; owner.memo is left untouched so lookups of owner by
// name (e.g. from Outputter) keep working.
func (m *Memo) optimize() Expr {
	if m.optimized {
		return m.elided
	}
	m.optimized = true
	m.child = optimize(m.child)

	if m.child.Constant() {
		v := m.child.Evaluate()
		m.owner.memo = nil
		m.owner.value = v
		m.owner.constant = true
		m.elided = NewConstant(v)
		return m.elided
	}
	if m.owner.refs <= 1 {
		m.elided = m.child
		return m.elided
	}
	m.elided = m
	return m.elided
}

// invalidate marks the memo dirty. Cell.SetValue has the same effect on
// each of its dependents by setting needsEval directly.
func (m *Memo) invalidate() { m.needsEval = true }

// collectDependentCells walks e (descending transparently through any
// nested Memo's child) and registers m as a dependent of every Cell
// reachable via a VarRef (spec.md §9). The registrations are plain
// *Memo pointers in Cell.dependents; they own nothing and are used only
// to re-arm m when a cell is written.
func collectDependentCells(m *Memo, e Expr) {
	switch n := e.(type) {
	case *ConstantExpr:
	case *VarRefExpr:
		n.Cell.addDependent(m)
		if n.Cell.memo != nil {
			collectDependentCells(m, n.Cell.memo.child)
		}
	case *PlusExpr:
		for _, t := range n.Terms {
			collectDependentCells(m, t)
		}
	case *MinusExpr:
		collectDependentCells(m, n.A)
		collectDependentCells(m, n.B)
	case *TimesExpr:
		collectDependentCells(m, n.A)
		collectDependentCells(m, n.B)
	case *DivideExpr:
		collectDependentCells(m, n.A)
		collectDependentCells(m, n.B)
	case *PowerExpr:
		collectDependentCells(m, n.A)
		collectDependentCells(m, n.B)
	case *NegateExpr:
		collectDependentCells(m, n.X)
	case *FuncExpr:
		for _, a := range n.Args {
			collectDependentCells(m, a)
		}
	case *Memo:
		collectDependentCells(m, n.child)
	}
}
