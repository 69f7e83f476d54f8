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

func TestArithmeticEvaluate(t *testing.T) {
	cases := []struct {
		name string
		e    Expr
		want float64
	}{
		{"plus", NewPlus(NewConstant(1), NewConstant(2), NewConstant(3)), 6},
		{"minus", NewMinus(NewConstant(5), NewConstant(2)), 3},
		{"times", NewTimes(NewConstant(4), NewConstant(2.5)), 10},
		{"divide", NewDivide(NewConstant(9), NewConstant(2)), 4.5},
		{"power", NewPower(NewConstant(2), NewConstant(10)), 1024},
		{"negate", NewNegate(NewConstant(3)), -3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.e.Evaluate(); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestFuncEvaluate(t *testing.T) {
	cases := []struct {
		name string
		e    Expr
		want float64
	}{
		{"exp", NewFunc(FuncExp, NewConstant(0)), 1},
		{"log", NewFunc(FuncLog, NewConstant(1)), 0},
		{"log10", NewFunc(FuncLog10, NewConstant(100)), 2},
		{"abs", NewFunc(FuncAbs, NewConstant(-4)), 4},
		{"min", NewFunc(FuncMin, NewConstant(3), NewConstant(5)), 3},
		{"max", NewFunc(FuncMax, NewConstant(3), NewConstant(5)), 5},
		{"if-true", NewFunc(FuncIfElse, NewConstant(1), NewConstant(10), NewConstant(20)), 10},
		{"if-false", NewFunc(FuncIfElse, NewConstant(0), NewConstant(10), NewConstant(20)), 20},
		{"lt-true", NewFunc(FuncLT, NewConstant(1), NewConstant(2)), 1},
		{"lt-false", NewFunc(FuncLT, NewConstant(2), NewConstant(1)), 0},
		{"and", NewFunc(FuncAnd, NewConstant(1), NewConstant(1)), 1},
		{"or", NewFunc(FuncOr, NewConstant(0), NewConstant(1)), 1},
		{"not", NewFunc(FuncNot, NewConstant(0)), 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.e.Evaluate(); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestDivideByZeroPropagatesInf(t *testing.T) {
	v := NewDivide(NewConstant(1), NewConstant(0)).Evaluate()
	if !math.IsInf(v, 1) {
		t.Errorf("got %v, want +Inf", v)
	}
}

func TestConstantFolding(t *testing.T) {
	e := NewPlus(NewConstant(1), NewTimes(NewConstant(2), NewConstant(3)))
	folded := optimize(e)
	ce, ok := folded.(*ConstantExpr)
	if !ok {
		t.Fatalf("expected folding to a Constant, got %T", folded)
	}
	if ce.V != 7 {
		t.Errorf("got %v, want 7", ce.V)
	}
}

func TestPlusChainFusion(t *testing.T) {
	x := NewVarRef(NewCell("x", 1))
	y := NewVarRef(NewCell("y", 1))
	z := NewVarRef(NewCell("z", 1))
	e := NewPlus(NewPlus(x, y), z)
	opt := optimize(e)
	p, ok := opt.(*PlusExpr)
	if !ok {
		t.Fatalf("expected a PlusExpr, got %T", opt)
	}
	if len(p.Terms) != 3 {
		t.Errorf("expected a fused 3-term sum, got %d terms", len(p.Terms))
	}
}

func TestVarRefOfConstantCellFolds(t *testing.T) {
	c := NewCell("k", 5)
	c.SetConstant(true)
	v := NewVarRef(c)
	opt := optimize(v)
	ce, ok := opt.(*ConstantExpr)
	if !ok {
		t.Fatalf("expected folding to a Constant, got %T", opt)
	}
	if ce.V != 5 {
		t.Errorf("got %v, want 5", ce.V)
	}
}
