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

import "fmt"

// VarGroup is a name-indexed collection of Cells with an insertion-order
// list for iteration and a synonym table mapping alias names to their
// canonical cell, as described in spec.md §3.
type VarGroup struct {
	byName map[string]*Cell
	order  []*Cell

	// synonyms maps an alias name directly to the Cell it resolves to.
	synonyms map[string]*Cell

	// memos is the flat table of every Memo created while parsing this
	// group's expressions, in construction order. Optimize walks it to
	// optimize each memo still owned by its cell and to wire up
	// invalidation dependencies (spec.md §9).
	memos []*Memo

	optimized bool
}

// NewVarGroup creates an empty variable group.
func NewVarGroup() *VarGroup {
	return &VarGroup{
		byName:   make(map[string]*Cell),
		synonyms: make(map[string]*Cell),
	}
}

// Get returns the cell named name (resolving synonyms), or nil.
func (g *VarGroup) Get(name string) *Cell {
	if c, ok := g.byName[name]; ok {
		return c
	}
	return g.synonyms[name]
}

// AddCell inserts a new cell named name with initial value, returning
// the existing cell instead if name is already defined (spec.md
// §6 input format: redefinition overwrites value, matching the
// teacher-adjacent original VarGroup::readOne).
func (g *VarGroup) AddCell(name string, value float64) *Cell {
	if c, ok := g.byName[name]; ok {
		c.SetValue(value)
		c.SetIniValue(value)
		return c
	}
	c := NewCell(name, value)
	g.byName[name] = c
	g.order = append(g.order, c)
	return c
}

// AddSynonym registers alias as another name for the cell already
// defined as canonical, returning a ReadError if canonical is unknown.
func (g *VarGroup) AddSynonym(alias, canonical string) error {
	c, ok := g.byName[canonical]
	if !ok {
		return &ReadError{Msg: fmt.Sprintf("could not find variable %q to create synonym %q", canonical, alias)}
	}
	g.synonyms[alias] = c
	return nil
}

// Cells returns the insertion-ordered list of cells in the group.
func (g *VarGroup) Cells() []*Cell { return g.order }

// registerMemo appends m to the group's flat memo table.
func (g *VarGroup) registerMemo(m *Memo) { g.memos = append(g.memos, m) }

// Optimize runs the expression-graph optimization pass over every cell
// in the group and every memo registered with it (constant folding, memo
// elision, plus-chain fusion) and
// then wires up the memo invalidation dependency sets, per spec.md
// §4.1. It is idempotent and must be called once, after all
// declarations have been parsed and before the first Calculate.
func (g *VarGroup) Optimize() {
	if g.optimized {
		return
	}
	g.optimized = true
	for _, c := range g.order {
		if c.memo != nil {
			c.memo.optimize()
		}
	}
	for _, m := range g.memos {
		if m.owner.memo == m {
			m.optimize()
		}
	}
	for _, m := range g.memos {
		if m.owner.memo == m { // still in use; elided memos need no dependents
			collectDependentCells(m, m.child)
		}
	}
}
