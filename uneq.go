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

// defaultDelta is the initial forward-difference offset applied to an
// unknown when computing a Jacobian column (spec.md §4.2).
const defaultDelta = 1e-6

// UnEq is one row of the nonlinear system: an unknown cell and the
// equation cell whose value is the residual when the unknown holds its
// current value (spec.md §3).
type UnEq struct {
	Name string

	Unknown  *Cell
	Equation *Cell

	active            bool
	type3             bool
	initiallyInactive bool

	// SaturationIndex is evaluated to decide whether an inactive type3
	// UnEq should be switched on (spec.md §4.3 outer loop, step 2).
	SaturationIndex *Cell

	stepCeiling float64

	centralResidual float64
	jResidual       float64

	factor   float64
	unDelta  float64
	savedVal float64 // unknown's value saved by OffsetUnknown, for ResetUnknown
}

// NewUnEq creates a row pairing unknown and equation. delta, if zero, is
// replaced by defaultDelta.
func NewUnEq(name string, unknown, equation *Cell, delta float64) *UnEq {
	if delta == 0 {
		delta = defaultDelta
	}
	unknown.markDirectUse()
	equation.markDirectUse()
	return &UnEq{
		Name:        name,
		Unknown:     unknown,
		Equation:    equation,
		active:      true,
		stepCeiling: 10,
		unDelta:     delta,
	}
}

// MakeType3 marks u as a mineral-phase row gated by saturationIndex, per
// spec.md §3/§4.3. If initiallyInactive is true u starts inactive
// regardless of the unknown's current value; otherwise the outer loop's
// start-of-calculation rule (unknown's initial value > 0) governs.
func (u *UnEq) MakeType3(saturationIndex *Cell, initiallyInactive bool) {
	saturationIndex.markDirectUse()
	u.type3 = true
	u.SaturationIndex = saturationIndex
	u.initiallyInactive = initiallyInactive
}

// Active reports whether u currently participates in the Newton step.
func (u *UnEq) Active() bool { return u.active }

// Activate switches u on, seeding its unknown to seed (spec.md §4.3 outer
// loop, step 2 seeds with 1e-3).
func (u *UnEq) Activate(seed float64) {
	u.active = true
	u.Unknown.SetValue(seed)
}

// Deactivate switches u off. Per spec.md §8 invariant 4 and the Open
// Questions note in spec.md §9, this is never called during the outer
// loop itself -- its only caller is UnEqGroup.IterateLevelMinerals,
// which uses it before the outer loop starts to reset a type3 row to
// its start-of-calculation state.
func (u *UnEq) Deactivate() { u.active = false }

// Type3 reports whether u is a mineral-activation row.
func (u *UnEq) Type3() bool { return u.type3 }

// InitiallyInactive reports the configured start state for a type3 row.
func (u *UnEq) InitiallyInactive() bool { return u.initiallyInactive }

// CalculateCentralResidual evaluates the equation cell at the unknown's
// current value and records the result.
func (u *UnEq) CalculateCentralResidual() float64 {
	u.centralResidual = u.Equation.Value()
	return u.centralResidual
}

// OffsetUnknown perturbs the unknown by unDelta, saving its prior value
// so ResetUnknown can restore it, and returns the prior value.
func (u *UnEq) OffsetUnknown() float64 {
	u.savedVal = u.Unknown.Value()
	u.Unknown.SetValue(u.savedVal + u.unDelta)
	return u.savedVal
}

// ResetUnknown restores the unknown to v (typically the value returned
// by OffsetUnknown).
func (u *UnEq) ResetUnknown(v float64) { u.Unknown.SetValue(v) }

// CalculateJResidual evaluates the equation cell while the unknown holds
// its offset value (i.e. after OffsetUnknown, before ResetUnknown).
func (u *UnEq) CalculateJResidual() float64 {
	u.jResidual = u.Equation.Value()
	return u.jResidual
}

// jacobianEntry returns the forward-difference derivative of u's
// equation with respect to the unknown that was just offset, per
// spec.md §4.2.
func (u *UnEq) jacobianEntry() float64 {
	return (u.jResidual - u.centralResidual) / u.unDelta
}

// CheckUnknownStep bounds the proposed Newton step delta (the linear
// solve's direction for u's row) to a multiplicative factor in (0, 1]
// keeping the unknown's absolute change within u's configured step
// ceiling and its change relative to the current value within a fixed
// ratio of 10 (spec.md §4.2). The returned factor is unclamped by any floor
// -- UnEqGroup.adaptEstimations applies the shared minStepFactor floor
// only to the aggregate commonfactor, not to this per-row value.
func (u *UnEq) CheckUnknownStep(delta float64) float64 {
	if delta == 0 {
		u.factor = 1
		return 1
	}
	factor := 1.0
	cur := u.Unknown.Value()

	if maxAbs := u.stepCeiling; maxAbs > 0 {
		if a := math.Abs(delta); a > maxAbs {
			factor = math.Min(factor, maxAbs/a)
		}
	}
	// Don't let the step flip sign across zero by more than a bounded
	// ratio of the current value -- guards against overshoot when cur is
	// small relative to delta.
	if cur != 0 {
		ratio := math.Abs(delta / cur)
		if maxRatio := 10.0; ratio > maxRatio {
			factor = math.Min(factor, maxRatio/ratio)
		}
	}
	u.factor = factor
	return factor
}

// UpdateUnknown applies factor*delta to the unknown's current value.
func (u *UnEq) UpdateUnknown(factor, delta float64) {
	u.Unknown.SetValue(u.Unknown.Value() + factor*delta)
}

// IsConvergent reports whether u's last central residual is within
// tolerance (scaled by the equation's own magnitude, to stay meaningful
// across rows of very different scale).
func (u *UnEq) IsConvergent(tolerance float64) bool {
	return u.HowConvergent(tolerance) <= 1
}

// HowConvergent returns |central_residual| scaled by tolerance and the
// equation's magnitude; values <=1 indicate u satisfies its row
// tolerance (spec.md §4.3).
func (u *UnEq) HowConvergent(tolerance float64) float64 {
	if tolerance <= 0 {
		tolerance = 1e-10
	}
	scale := 1.0 + math.Abs(u.Equation.Value())
	return math.Abs(u.centralResidual) / (tolerance * scale)
}
