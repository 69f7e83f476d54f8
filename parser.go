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
	"strconv"
	"strings"
	"text/scanner"
)

// Parse builds a Calculator from already macro-expanded program text
// (spec.md §6). The text preprocessor, file-IO facade and variable-name
// tokenizer that produce this flat representation are out of scope
// (spec.md §1); Parse consumes a line-oriented statement format:
//
//	var <name> <value>
//	syn <alias> <canonical>
//	expr <name> = <expression>
//	uneq <name> <unknownName> <equationName> [delta] [type3:<siName>] [inactive]
//
// Two cell names are reserved for the distinguished minTol/tolerance
// cells the UnEq group consults (spec.md §3): "minTol" and "tolerance".
// If the program doesn't declare them, Parse creates them with sensible
// defaults.
func Parse(text string) (*Calculator, error) {
	vars := NewVarGroup()
	eqs := []*uneqDecl{}

	lineNo := 0
	for _, raw := range strings.Split(text, "\n") {
		lineNo++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		kw := fields[0]
		switch kw {
		case "var":
			if len(fields) != 3 {
				return nil, &ParseError{Msg: fmt.Sprintf("malformed var declaration: %q", line), Pos: lineNo}
			}
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, &ParseError{Msg: fmt.Sprintf("bad number %q", fields[2]), Pos: lineNo}
			}
			vars.AddCell(fields[1], v)
		case "syn":
			if len(fields) != 3 {
				return nil, &ParseError{Msg: fmt.Sprintf("malformed syn declaration: %q", line), Pos: lineNo}
			}
			if err := vars.AddSynonym(fields[1], fields[2]); err != nil {
				return nil, err
			}
		case "expr":
			rest := strings.TrimSpace(strings.TrimPrefix(line, "expr"))
			eqIdx := strings.Index(rest, "=")
			if eqIdx < 0 {
				return nil, &ParseError{Msg: fmt.Sprintf("malformed expr declaration: %q", line), Pos: lineNo}
			}
			name := strings.TrimSpace(rest[:eqIdx])
			body := rest[eqIdx+1:]
			e, err := parseExpr(body, vars, lineNo)
			if err != nil {
				return nil, err
			}
			cell := vars.Get(name)
			if cell == nil {
				cell = vars.AddCell(name, 0)
			}
			m := NewMemo(cell, e)
			vars.registerMemo(m)
		case "uneq":
			if len(fields) < 4 {
				return nil, &ParseError{Msg: fmt.Sprintf("malformed uneq declaration: %q", line), Pos: lineNo}
			}
			d := &uneqDecl{name: fields[1], unknown: fields[2], equation: fields[3], line: lineNo}
			for _, flag := range fields[4:] {
				switch {
				case flag == "inactive":
					d.initiallyInactive = true
				case strings.HasPrefix(flag, "type3:"):
					d.type3 = true
					d.satIndex = strings.TrimPrefix(flag, "type3:")
				default:
					if v, err := strconv.ParseFloat(flag, 64); err == nil {
						d.delta = v
					} else {
						return nil, &ParseError{Msg: fmt.Sprintf("unknown uneq flag %q", flag), Pos: lineNo}
					}
				}
			}
			eqs = append(eqs, d)
		default:
			return nil, &ParseError{Msg: fmt.Sprintf("unknown declaration keyword %q", kw), Pos: lineNo}
		}
	}

	minTol := vars.Get("minTol")
	if minTol == nil {
		minTol = vars.AddCell("minTol", 0)
	}
	tolerance := vars.Get("tolerance")
	if tolerance == nil {
		tolerance = vars.AddCell("tolerance", 1e-10)
	}

	vars.Optimize()

	group := NewUnEqGroup(minTol, tolerance)
	seen := make(map[string]bool, len(eqs))
	for _, d := range eqs {
		if seen[d.name] {
			return nil, &ReadError{Msg: fmt.Sprintf("uneq %q declared more than once", d.name)}
		}
		seen[d.name] = true
		unknown := vars.Get(d.unknown)
		if unknown == nil {
			return nil, &ReadError{Msg: fmt.Sprintf("uneq %q: unknown cell %q not declared", d.name, d.unknown)}
		}
		equation := vars.Get(d.equation)
		if equation == nil {
			return nil, &ReadError{Msg: fmt.Sprintf("uneq %q: equation cell %q not declared", d.name, d.equation)}
		}
		u := NewUnEq(d.name, unknown, equation, d.delta)
		if d.type3 {
			si := vars.Get(d.satIndex)
			if si == nil {
				return nil, &ReadError{Msg: fmt.Sprintf("uneq %q: saturation index cell %q not declared", d.name, d.satIndex)}
			}
			u.MakeType3(si, d.initiallyInactive)
		}
		group.Add(u)
	}

	return NewCalculator(vars, group), nil
}

// uneqDecl is the parsed, not-yet-resolved form of an `uneq` line.
type uneqDecl struct {
	name, unknown, equation string
	delta                   float64
	type3                   bool
	satIndex                string
	initiallyInactive       bool
	line                    int
}

// exprParser is a small recursive-descent/precedence-climbing parser
// over the expression grammar of spec.md §6: number | identifier |
// `(expr)` | unary `-`/`!` | binary arithmetic/comparison/logical
// operators | function calls `name(arg, ...)`.
type exprParser struct {
	sc   scanner.Scanner
	tok  rune
	text string
	vars *VarGroup
	line int
}

func parseExpr(src string, vars *VarGroup, line int) (Expr, error) {
	p := &exprParser{vars: vars, line: line}
	p.sc.Init(strings.NewReader(src))
	p.sc.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanInts
	p.next()
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected trailing token %q", p.text), Pos: line}
	}
	return e, nil
}

func (p *exprParser) next() {
	p.tok = p.sc.Scan()
	p.text = p.sc.TokenText()
}

func (p *exprParser) errf(format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Pos: p.line}
}

// parseOr handles `||`.
func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok == '|' && p.peekIs('|') {
		p.next()
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = NewFunc(FuncOr, left, right)
	}
	return left, nil
}

// parseAnd handles `&&`.
func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.tok == '&' && p.peekIs('&') {
		p.next()
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = NewFunc(FuncAnd, left, right)
	}
	return left, nil
}

// parseComparison handles `< > <= >= == !=`.
func (p *exprParser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var kind FuncKind
		switch {
		case p.tok == '<' && p.peekIs('='):
			kind = FuncLE
			p.next()
			p.next()
		case p.tok == '>' && p.peekIs('='):
			kind = FuncGE
			p.next()
			p.next()
		case p.tok == '=' && p.peekIs('='):
			kind = FuncEQ
			p.next()
			p.next()
		case p.tok == '!' && p.peekIs('='):
			kind = FuncNE
			p.next()
			p.next()
		case p.tok == '<':
			kind = FuncLT
			p.next()
		case p.tok == '>':
			kind = FuncGT
			p.next()
		default:
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = NewFunc(kind, left, right)
	}
}

// parseAdditive handles `+ -`, fusing nothing itself -- fusion of Plus
// chains is the optimizer's job (spec.md §4.1) -- but builds a binary
// Plus/Minus per operator seen.
func (p *exprParser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok == '+' || p.tok == '-' {
		op := p.tok
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if op == '+' {
			left = NewPlus(left, right)
		} else {
			left = NewMinus(left, right)
		}
	}
	return left, nil
}

// parseMultiplicative handles `* /`.
func (p *exprParser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok == '*' || p.tok == '/' {
		op := p.tok
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == '*' {
			left = NewTimes(left, right)
		} else {
			left = NewDivide(left, right)
		}
	}
	return left, nil
}

// parseUnary handles unary `-`/`!`, then defers to parsePower.
func (p *exprParser) parseUnary() (Expr, error) {
	switch p.tok {
	case '-':
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewNegate(x), nil
	case '!':
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewFunc(FuncNot, x), nil
	default:
		return p.parsePower()
	}
}

// parsePower handles right-associative `^`.
func (p *exprParser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.tok == '^' {
		p.next()
		exp, err := p.parseUnary() // right-assoc: rebind through unary, not all the way up
		if err != nil {
			return nil, err
		}
		return NewPower(base, exp), nil
	}
	return base, nil
}

// parsePrimary handles number | identifier | `(expr)` | function calls.
func (p *exprParser) parsePrimary() (Expr, error) {
	switch p.tok {
	case scanner.Float, scanner.Int:
		v, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			return nil, p.errf("bad number %q", p.text)
		}
		p.next()
		return NewConstant(v), nil
	case '(':
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok != ')' {
			return nil, p.errf("expected ')', got %q", p.text)
		}
		p.next()
		return e, nil
	case scanner.Ident:
		name := p.text
		p.next()
		if p.tok == '(' {
			p.next()
			var args []Expr
			for p.tok != ')' {
				a, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.tok == ',' {
					p.next()
					continue
				}
				break
			}
			if p.tok != ')' {
				return nil, p.errf("expected ')' closing call to %q", name)
			}
			p.next()
			kind, ok := funcNames[name]
			if !ok {
				return nil, p.errf("unknown function %q", name)
			}
			return NewFunc(kind, args...), nil
		}
		cell := p.vars.Get(name)
		if cell == nil {
			return nil, p.errf("unknown identifier %q", name)
		}
		return NewVarRef(cell), nil
	default:
		return nil, p.errf("unexpected token %q", p.text)
	}
}

// peekIs reports whether the scanner's Peek rune equals r, without
// consuming it.
func (p *exprParser) peekIs(r rune) bool { return p.sc.Peek() == r }
