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

import "github.com/sirupsen/logrus"

// Calculator is one configured solver instance: a variable group, its
// optimized expression graph, and an UnEq group, plus the NodeType
// bridging it to Node-addressed storage (spec.md §4.4).
type Calculator struct {
	Vars *VarGroup
	Eqs  *UnEqGroup
	Type *NodeType

	// warm is the snapshot of the last successfully computed node,
	// represented as an owned vector copied under no lock (spec.md §9,
	// "Warm-start template").
	warm   *Node
	hasRun bool

	// lastErr records the reason the most recent Calculate/CalculateWithWarm
	// call failed to converge, retrievable via LastError (spec.md §7).
	lastErr error

	log Logger
}

// NewCalculator assembles a Calculator from an already-parsed variable
// group and UnEq group. minTol and tolerance must already be registered
// with eqs (see NewUnEqGroup); c.Type is built with NodeType.
// UseGlobalVariablesFromCalculator once construction is complete.
func NewCalculator(vars *VarGroup, eqs *UnEqGroup) *Calculator {
	c := &Calculator{Vars: vars, Eqs: eqs, log: defaultLogger()}
	c.Type = NewNodeType()
	c.Type.UseGlobalVariablesFromCalculator(c)
	c.log.WithFields(logrus.Fields{
		"unknowns": len(vars.order),
		"unEqs":    len(eqs.unEqs),
	}).Debug("orchestra: calculator constructed")
	return c
}

// FromInput loads program text identified by fileID (resolved through
// the configured input source, see input.go), optionally appended with
// extraText fragments, parses it, and returns a ready Calculator
// (spec.md §6: Calculator::from_input).
func FromInput(fileID string, extraText ...string) (*Calculator, error) {
	text, err := LoadInputText(fileID)
	if err != nil {
		return nil, err
	}
	for _, extra := range extraText {
		text += "\n" + extra
	}
	return Parse(text)
}

// inputPhase copies node's values into the calculator's variable cells,
// recording each as the cell's initial value for this calculation
// (spec.md §4.4). Constant cells keep their value.
func (c *Calculator) inputPhase(node *Node) {
	for i := 0; i < c.Type.Len(); i++ {
		name := c.Type.Name(i)
		if cell := c.Vars.Get(name); cell != nil && !cell.Constant() {
			v := node.GetValue(i)
			cell.SetValue(v)
			cell.SetIniValue(v)
		}
	}
}

// outputPhase copies the calculator's variable cells back into node.
func (c *Calculator) outputPhase(node *Node) {
	for i := 0; i < c.Type.Len(); i++ {
		name := c.Type.Name(i)
		if cell := c.Vars.Get(name); cell != nil {
			node.SetValue(i, cell.Value())
		}
	}
}

// Calculate copies node's values into the solver's variables, runs the
// two-level iteration to (attempted) convergence, and copies the results
// back into node. On success it also records node as the new warm
// template (spec.md §4.4). It returns false, leaving node at its last
// iterate, on non-convergence.
func (c *Calculator) Calculate(node *Node, stop *StopFlag) bool {
	c.inputPhase(node)
	ok := c.Eqs.IterateLevelMinerals(stop)
	if !ok {
		c.outputPhase(node)
		c.recordNonconvergence(stop)
		return false
	}
	c.lastErr = nil
	c.outputPhase(node)
	c.warm = node.Clone()
	c.hasRun = true
	return true
}

// CalculateWithWarm behaves like Calculate, but seeds the solver's
// unknowns from the last successful result rather than from node's
// current values (spec.md §4.4).
func (c *Calculator) CalculateWithWarm(node *Node, stop *StopFlag) bool {
	if !c.hasRun || c.warm == nil {
		return c.Calculate(node, stop)
	}
	seed := node.Clone()
	c.CopyUnknowns(c.warm, seed)
	c.inputPhase(seed)
	ok := c.Eqs.IterateLevelMinerals(stop)
	if !ok {
		c.outputPhase(node)
		c.recordNonconvergence(stop)
		return false
	}
	c.lastErr = nil
	c.outputPhase(node)
	c.warm = node.Clone()
	return true
}

// recordNonconvergence stores the reason the last iteration failed to
// converge -- cancellation if stop was raised, otherwise an iteration-bound
// exceedance -- for later retrieval via LastError. IterateLevelMinerals has
// already logged the underlying cause (spec.md §3.1).
func (c *Calculator) recordNonconvergence(stop *StopFlag) {
	reason := "iteration bound exceeded"
	if stop != nil && stop.Cancelled() {
		reason = "cancelled"
	}
	c.lastErr = &NonconvergenceError{Reason: reason}
}

// LastError returns the reason the most recent Calculate/CalculateWithWarm
// call returned false, or nil if the last call converged or none has run
// yet (spec.md §7).
func (c *Calculator) LastError() error { return c.lastErr }

// applyWarmTemplate seeds this calculator's warm template directly from
// src, used by NodeProcessor to propagate calculator 0's first result to
// every clone before a warm-mode ProcessNodes batch (spec.md §4.5).
func (c *Calculator) applyWarmTemplate(src *Node) {
	c.warm = src.Clone()
	c.hasRun = true
}

// CopyUnknowns copies every solver-unknown slot's value from src to dst,
// leaving every other slot in dst untouched (spec.md §4.4).
func (c *Calculator) CopyUnknowns(src, dst *Node) {
	for _, u := range c.Eqs.unEqs {
		i := c.Type.Index(u.Unknown.Name)
		if i < 0 {
			continue
		}
		dst.SetValue(i, src.GetValue(i))
	}
}

// Clone deep-copies the calculator: a structurally independent variable
// group, expression graph and UnEq group suitable for concurrent use by
// another worker (spec.md §4.4, §9 "Clone semantics"). The clone starts
// with no warm template.
func (c *Calculator) Clone() *Calculator {
	nc := &Calculator{log: c.log}
	cellMap := make(map[*Cell]*Cell, len(c.Vars.order))

	nc.Vars = NewVarGroup()
	for _, old := range c.Vars.order {
		nc.Vars.byName[old.Name] = old.clone()
		nc.Vars.order = append(nc.Vars.order, nc.Vars.byName[old.Name])
		cellMap[old] = nc.Vars.byName[old.Name]
	}
	for alias, target := range c.Vars.synonyms {
		nc.Vars.synonyms[alias] = cellMap[target]
	}

	// Rebuild each cell's owned expression graph by deep-copying the
	// original graph with cell references retargeted at cellMap, then
	// re-running the optimization/dependency-wiring pass on the clone.
	for _, old := range c.Vars.order {
		if old.memo == nil {
			continue
		}
		newCell := cellMap[old]
		child := cloneExpr(old.memo.child, cellMap)
		m := NewMemo(newCell, child)
		nc.Vars.registerMemo(m)
	}
	nc.Vars.Optimize()

	nc.Eqs = NewUnEqGroup(cellMap[c.Eqs.minTol], cellMap[c.Eqs.tolerance])
	nc.Eqs.maxIter = c.Eqs.maxIter
	for _, u := range c.Eqs.unEqs {
		nu := NewUnEq(u.Name, cellMap[u.Unknown], cellMap[u.Equation], u.unDelta)
		if u.Type3() {
			nu.MakeType3(cellMap[u.SaturationIndex], u.InitiallyInactive())
		}
		nu.active = u.active
		nc.Eqs.Add(nu)
	}

	nc.Type = NewNodeType()
	nc.Type.UseGlobalVariablesFromCalculator(nc)
	nc.log.WithField("unEqs", len(nc.Eqs.unEqs)).Debug("orchestra: calculator cloned")
	return nc
}

// cloneExpr deep-copies an expression tree, retargeting every VarRef at
// its counterpart in cellMap. Nested Memos (a cell whose expression
// reads another memoized cell) are handled by VarRefExpr's retargeting
// alone -- the referenced cell's own memo is cloned independently in the
// same pass, in Clone's loop over c.Vars.order.
func cloneExpr(e Expr, cellMap map[*Cell]*Cell) Expr {
	switch n := e.(type) {
	case *ConstantExpr:
		return NewConstant(n.V)
	case *VarRefExpr:
		return NewVarRef(cellMap[n.Cell])
	case *PlusExpr:
		terms := make([]Expr, len(n.Terms))
		for i, t := range n.Terms {
			terms[i] = cloneExpr(t, cellMap)
		}
		return NewPlus(terms...)
	case *MinusExpr:
		return NewMinus(cloneExpr(n.A, cellMap), cloneExpr(n.B, cellMap))
	case *TimesExpr:
		return NewTimes(cloneExpr(n.A, cellMap), cloneExpr(n.B, cellMap))
	case *DivideExpr:
		return NewDivide(cloneExpr(n.A, cellMap), cloneExpr(n.B, cellMap))
	case *PowerExpr:
		return NewPower(cloneExpr(n.A, cellMap), cloneExpr(n.B, cellMap))
	case *NegateExpr:
		return NewNegate(cloneExpr(n.X, cellMap))
	case *FuncExpr:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = cloneExpr(a, cellMap)
		}
		return NewFunc(n.Kind, args...)
	default:
		panic("orchestra: cloneExpr: unhandled expr type")
	}
}
