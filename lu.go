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

import "math"

// luDecomposeSolve performs an in-place Crout LU decomposition with
// partial pivoting and implicit scaling on the row-major dim*dim matrix
// jac, then solves jac*x = b in place over b using forward/backward
// substitution (spec.md §4.3). A singular diagonal pivot is nudged by
// 1e-30 rather than failing, matching the original numeric-recipes-style
// routine this is ported from (see original_source/UnEqGroup.cpp,
// ludcmp_plus_lubksb_new).
//
// gonum's mat.LU deliberately isn't used here: it doesn't expose the
// exact implicit-scaling-plus-singular-nudge behavior spec.md §4.3
// mandates, and the Jacobian array's identity (reused, grow-only,
// row-major) is itself part of the state machine spec.md §4.3
// describes -- this is core solver numerics, not an ambient concern a
// general-purpose library can stand in for.
func luDecomposeSolve(jac []float64, b []float64, dim int) error {
	if dim == 0 {
		return nil
	}
	vv := make([]float64, dim)
	indx := make([]int, dim)

	for i := 0; i < dim; i++ {
		big := 0.0
		for j := 0; j < dim; j++ {
			if t := math.Abs(jac[dim*i+j]); t > big {
				big = t
			}
		}
		if big == 0.0 {
			return &NumericFault{Msg: "Jacobian row is entirely zero"}
		}
		vv[i] = 1.0 / big
	}

	for j := 0; j < dim; j++ {
		imax := 0
		for i := 0; i < j; i++ {
			for k := 0; k < i; k++ {
				jac[dim*i+j] -= jac[dim*i+k] * jac[dim*k+j]
			}
		}

		big := 0.0
		for i := j; i < dim; i++ {
			for k := 0; k < j; k++ {
				jac[dim*i+j] -= jac[dim*i+k] * jac[dim*k+j]
			}
			if dum := vv[i] * math.Abs(jac[dim*i+j]); dum >= big {
				big = dum
				imax = i
			}
		}
		if j != imax {
			for c := 0; c < dim; c++ {
				jac[imax*dim+c], jac[j*dim+c] = jac[j*dim+c], jac[imax*dim+c]
			}
			vv[imax] = vv[j]
			b[imax], b[j] = b[j], b[imax]
		}
		indx[j] = imax

		if jac[dim*j+j] == 0.0 {
			jac[dim*j+j] = 1e-30
		}

		if j != dim-1 {
			dum := 1.0 / jac[dim*j+j]
			for i := j + 1; i < dim; i++ {
				jac[dim*i+j] *= dum
			}
		}
	}

	// Forward substitution (Ly = b).
	ii := 0
	for i := 0; i < dim; i++ {
		sum := b[i]
		if ii != 0 {
			for j := ii - 1; j < i; j++ {
				sum -= jac[dim*i+j] * b[j]
			}
		} else if sum != 0 {
			ii = i + 1
		}
		b[i] = sum
	}

	// Back substitution (Ux = y).
	for i := dim - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < dim; j++ {
			sum -= jac[dim*i+j] * b[j]
		}
		b[i] = sum / jac[dim*i+i]
	}

	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NumericFault{Msg: "non-finite value after LU solve"}
		}
	}
	return nil
}
