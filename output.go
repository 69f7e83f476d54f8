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

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// Outputter computes user-configured derived reporting quantities from a
// converged node, independently of the core solver's own expression
// graph (spec.md §1's "derived quantities" in the data-flow
// description). Each entry in variables is an arbitrary govaluate
// expression over the node's cell names plus a small set of built-in
// functions -- the same split the teacher repository draws in io.go
// between its solved-for model variables and its reporting expressions.
type Outputter struct {
	variables map[string]string
	compiled  map[string]*govaluate.EvaluableExpression
	functions map[string]govaluate.ExpressionFunction
}

// NewOutputter compiles variables (name -> expression text) against the
// default function set plus any caller-supplied extraFunctions,
// returning a ParseError if any expression is malformed.
func NewOutputter(variables map[string]string, extraFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("orchestra: exp takes 1 argument, got %d", len(args))
			}
			return math.Exp(args[0].(float64)), nil
		},
		"log": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("orchestra: log takes 1 argument, got %d", len(args))
			}
			return math.Log(args[0].(float64)), nil
		},
		"abs": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("orchestra: abs takes 1 argument, got %d", len(args))
			}
			return math.Abs(args[0].(float64)), nil
		},
		"sum": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("orchestra: sum takes 1 argument, got %d", len(args))
			}
			vals, ok := args[0].([]float64)
			if !ok {
				return nil, fmt.Errorf("orchestra: sum argument must be a []float64")
			}
			return floats.Sum(vals), nil
		},
	}
	for name, fn := range extraFunctions {
		funcs[name] = fn
	}

	o := &Outputter{
		variables: variables,
		compiled:  make(map[string]*govaluate.EvaluableExpression, len(variables)),
		functions: funcs,
	}
	for name, expr := range variables {
		ce, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, &ParseError{Msg: fmt.Sprintf("output variable %q: %v", name, err), Pos: -1}
		}
		o.compiled[name] = ce
	}
	return o, nil
}

// Evaluate computes every configured output variable against node's
// current values, addressed by name through typ.
func (o *Outputter) Evaluate(typ *NodeType, node *Node) (map[string]float64, error) {
	params := make(map[string]interface{}, typ.Len())
	for i := 0; i < typ.Len(); i++ {
		params[typ.Name(i)] = node.GetValue(i)
	}

	out := make(map[string]float64, len(o.compiled))
	for name, ce := range o.compiled {
		v, err := ce.Evaluate(params)
		if err != nil {
			return nil, &NumericFault{Msg: fmt.Sprintf("output variable %q: %v", name, err)}
		}
		f, ok := v.(float64)
		if !ok {
			return nil, &NumericFault{Msg: fmt.Sprintf("output variable %q did not evaluate to a number", name)}
		}
		out[name] = f
	}
	return out, nil
}
