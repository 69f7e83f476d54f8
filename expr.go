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
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Expr is an arithmetic/logical expression node. Implementations form a
// DAG: a Memo may have multiple parents, but every other node is owned
// by exactly one parent. Evaluate must be pure given the current cell
// values -- all state lives in Cell and Memo.
type Expr interface {
	// Evaluate computes the node's current value.
	Evaluate() float64
	// Constant reports whether the node's value can never change during
	// a calculation.
	Constant() bool
}

// ConstantExpr is a literal number.
type ConstantExpr struct{ V float64 }

// NewConstant returns a Constant expression holding v.
func NewConstant(v float64) *ConstantExpr { return &ConstantExpr{V: v} }

// Evaluate implements Expr.
func (c *ConstantExpr) Evaluate() float64 { return c.V }

// Constant implements Expr.
func (c *ConstantExpr) Constant() bool { return true }

// VarRefExpr reads the current value of a Cell.
type VarRefExpr struct{ Cell *Cell }

// NewVarRef returns a reference to cell, incrementing its reference
// count (consulted by the memo-elision optimization).
func NewVarRef(cell *Cell) *VarRefExpr {
	cell.refs++
	return &VarRefExpr{Cell: cell}
}

// Evaluate implements Expr.
func (v *VarRefExpr) Evaluate() float64 { return v.Cell.Value() }

// Constant implements Expr.
func (v *VarRefExpr) Constant() bool { return v.Cell.Constant() }

// PlusExpr is an n-ary sum, the result of fusing chains of binary Plus
// nodes during optimization (spec.md §4.1).
type PlusExpr struct{ Terms []Expr }

// NewPlus returns the sum of terms.
func NewPlus(terms ...Expr) *PlusExpr { return &PlusExpr{Terms: terms} }

// Evaluate sums terms left to right in a fixed order so that floating
// point results are reproducible across runs and across clones
// (invariant 6, spec.md §8).
func (p *PlusExpr) Evaluate() float64 {
	vals := make([]float64, len(p.Terms))
	for i, t := range p.Terms {
		vals[i] = t.Evaluate()
	}
	return floats.Sum(vals)
}

// Constant implements Expr.
func (p *PlusExpr) Constant() bool {
	for _, t := range p.Terms {
		if !t.Constant() {
			return false
		}
	}
	return true
}

// binary is the shared shape of the two-operand arithmetic nodes.
type binary struct {
	A, B Expr
}

func (b *binary) Constant() bool { return b.A.Constant() && b.B.Constant() }

// MinusExpr computes A - B.
type MinusExpr struct{ binary }

// NewMinus returns a - b.
func NewMinus(a, b Expr) *MinusExpr { return &MinusExpr{binary{a, b}} }

// Evaluate implements Expr.
func (m *MinusExpr) Evaluate() float64 { return m.A.Evaluate() - m.B.Evaluate() }

// TimesExpr computes A * B.
type TimesExpr struct{ binary }

// NewTimes returns a * b.
func NewTimes(a, b Expr) *TimesExpr { return &TimesExpr{binary{a, b}} }

// Evaluate implements Expr.
func (m *TimesExpr) Evaluate() float64 { return m.A.Evaluate() * m.B.Evaluate() }

// DivideExpr computes A / B.
type DivideExpr struct{ binary }

// NewDivide returns a / b.
func NewDivide(a, b Expr) *DivideExpr { return &DivideExpr{binary{a, b}} }

// Evaluate implements Expr. Division by zero yields +/-Inf or NaN per
// IEEE-754, which propagates and is caught as a NumericFault by the
// Newton loop (spec.md §4.1, §7).
func (m *DivideExpr) Evaluate() float64 { return m.A.Evaluate() / m.B.Evaluate() }

// PowerExpr computes A^B.
type PowerExpr struct{ binary }

// NewPower returns a ^ b.
func NewPower(a, b Expr) *PowerExpr { return &PowerExpr{binary{a, b}} }

// Evaluate implements Expr.
func (m *PowerExpr) Evaluate() float64 { return math.Pow(m.A.Evaluate(), m.B.Evaluate()) }

// NegateExpr computes -X.
type NegateExpr struct{ X Expr }

// NewNegate returns -x.
func NewNegate(x Expr) *NegateExpr { return &NegateExpr{X: x} }

// Evaluate implements Expr.
func (n *NegateExpr) Evaluate() float64 { return -n.X.Evaluate() }

// Constant implements Expr.
func (n *NegateExpr) Constant() bool { return n.X.Constant() }

// FuncKind identifies a built-in function or operator implemented by
// FuncExpr.
type FuncKind int

// Supported function/operator kinds.
const (
	FuncExp FuncKind = iota
	FuncLog
	FuncLog10
	FuncAbs
	FuncMin
	FuncMax
	FuncIfElse
	FuncLT
	FuncGT
	FuncLE
	FuncGE
	FuncEQ
	FuncNE
	FuncAnd
	FuncOr
	FuncNot
)

var funcNames = map[string]FuncKind{
	"exp":   FuncExp,
	"log":   FuncLog,
	"log10": FuncLog10,
	"abs":   FuncAbs,
	"min":   FuncMin,
	"max":   FuncMax,
	"if":    FuncIfElse,
}

// FuncExpr is a call to a built-in function, or a comparison/logical
// operator modeled as a function of its operands.
type FuncExpr struct {
	Kind FuncKind
	Args []Expr
}

// NewFunc returns a function node of the given kind over args. Neither
// NewFunc nor the parser checks the argument count; Evaluate indexes the
// arguments it needs directly, so a call with too few arguments panics
// when evaluated. min and max accept any number of arguments (at least
// one).
func NewFunc(kind FuncKind, args ...Expr) *FuncExpr { return &FuncExpr{Kind: kind, Args: args} }

// Evaluate implements Expr. As documented in spec.md §4.1, NaN/Inf
// results from the underlying math functions (e.g. log of a
// non-positive argument) are not special-cased -- they propagate.
func (f *FuncExpr) Evaluate() float64 {
	switch f.Kind {
	case FuncExp:
		return math.Exp(f.Args[0].Evaluate())
	case FuncLog:
		return math.Log(f.Args[0].Evaluate())
	case FuncLog10:
		return math.Log10(f.Args[0].Evaluate())
	case FuncAbs:
		return math.Abs(f.Args[0].Evaluate())
	case FuncMin:
		v := f.Args[0].Evaluate()
		for _, a := range f.Args[1:] {
			v = math.Min(v, a.Evaluate())
		}
		return v
	case FuncMax:
		v := f.Args[0].Evaluate()
		for _, a := range f.Args[1:] {
			v = math.Max(v, a.Evaluate())
		}
		return v
	case FuncIfElse:
		if f.Args[0].Evaluate() != 0 {
			return f.Args[1].Evaluate()
		}
		return f.Args[2].Evaluate()
	case FuncLT:
		return boolF(f.Args[0].Evaluate() < f.Args[1].Evaluate())
	case FuncGT:
		return boolF(f.Args[0].Evaluate() > f.Args[1].Evaluate())
	case FuncLE:
		return boolF(f.Args[0].Evaluate() <= f.Args[1].Evaluate())
	case FuncGE:
		return boolF(f.Args[0].Evaluate() >= f.Args[1].Evaluate())
	case FuncEQ:
		return boolF(f.Args[0].Evaluate() == f.Args[1].Evaluate())
	case FuncNE:
		return boolF(f.Args[0].Evaluate() != f.Args[1].Evaluate())
	case FuncAnd:
		return boolF(f.Args[0].Evaluate() != 0 && f.Args[1].Evaluate() != 0)
	case FuncOr:
		return boolF(f.Args[0].Evaluate() != 0 || f.Args[1].Evaluate() != 0)
	case FuncNot:
		return boolF(f.Args[0].Evaluate() == 0)
	default:
		panic(fmt.Sprintf("orchestra: unknown function kind %d", f.Kind))
	}
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Constant implements Expr.
func (f *FuncExpr) Constant() bool {
	for _, a := range f.Args {
		if !a.Constant() {
			return false
		}
	}
	return true
}

// optimize runs the single-pass post-order optimization described in
// spec.md §4.1: children are recursed into first, constant subtrees are
// folded to a single Constant, Plus chains are fused, and VarRefs whose
// target cell owns a now-foldable or singly-referenced Memo are
// replaced by that memo's child.
func optimize(e Expr) Expr {
	switch n := e.(type) {
	case *ConstantExpr:
		return n
	case *VarRefExpr:
		return optimizeVarRef(n)
	case *PlusExpr:
		terms := make([]Expr, 0, len(n.Terms))
		for _, t := range n.Terms {
			o := optimize(t)
			if p, ok := o.(*PlusExpr); ok {
				terms = append(terms, p.Terms...) // fuse nested sums
			} else {
				terms = append(terms, o)
			}
		}
		n.Terms = terms
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *MinusExpr:
		n.A, n.B = optimize(n.A), optimize(n.B)
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *TimesExpr:
		n.A, n.B = optimize(n.A), optimize(n.B)
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *DivideExpr:
		n.A, n.B = optimize(n.A), optimize(n.B)
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *PowerExpr:
		n.A, n.B = optimize(n.A), optimize(n.B)
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *NegateExpr:
		n.X = optimize(n.X)
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *FuncExpr:
		for i, a := range n.Args {
			n.Args[i] = optimize(a)
		}
		if n.Constant() {
			return NewConstant(n.Evaluate())
		}
		return n
	case *Memo:
		return n.optimize()
	default:
		panic(fmt.Sprintf("orchestra: optimize: unhandled expr type %T", e))
	}
}

// optimizeVarRef implements the Memo-elision half of spec.md §4.1: a
// VarRef to a cell whose owned Memo has become constant, or whose cell
// is referenced from only one place in the graph, is replaced by the
// memo's optimized child directly. See Memo.optimize for the rules
// governing when that substitution is safe to apply globally versus
// only for this one reference.
func optimizeVarRef(v *VarRefExpr) Expr {
	c := v.Cell
	if c.memo == nil {
		if c.constant {
			return NewConstant(c.value)
		}
		return v
	}
	replacement := c.memo.optimize()
	if replacement == c.memo {
		return v
	}
	return replacement
}
