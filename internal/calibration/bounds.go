package calibration

import (
	"math"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
)

// Bound is the closed interval a fitted parameter is kept within.
type Bound struct {
	Name   string
	Lo, Hi float64
}

// Bounds lists the fitted parameters in vector order. Every other parameter
// is carried over unchanged from the store.
var Bounds = [...]Bound{
	{"I0", 8, 12},
	{"A", 0.01, 0.02},
	{"Ea", 40000, 60000},
	{"alpha1", 0.01, 0.03},
	{"alpha2", 0.015, 0.035},
	{"alpha3", 0.02, 0.04},
	{"gamma", 1.0, 2.0},
}

const dim = len(Bounds)

// startMargin is the fraction of each interval kept clear of the edges when
// projecting the start point, so the logistic map is not saturated.
const startMargin = 0.01

func vector(p model.Parameters) []float64 {
	return []float64{p.I0, p.A, p.Ea, p.Alpha1, p.Alpha2, p.Alpha3, p.Gamma}
}

func apply(p model.Parameters, x []float64) model.Parameters {
	p.I0 = x[0]
	p.A = x[1]
	p.Ea = x[2]
	p.Alpha1 = x[3]
	p.Alpha2 = x[4]
	p.Alpha3 = x[5]
	p.Gamma = x[6]
	return p
}

// InBounds reports whether every fitted parameter of p lies within Bounds.
func InBounds(p model.Parameters) bool {
	for i, v := range vector(p) {
		if v < Bounds[i].Lo || v > Bounds[i].Hi || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// toLatent maps a bounded vector to the unconstrained optimiser space. Values
// on or outside an edge are first pulled inside by startMargin.
func toLatent(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		b := Bounds[i]
		u := (v - b.Lo) / (b.Hi - b.Lo)
		if math.IsNaN(u) {
			u = 0.5
		}
		u = math.Max(startMargin, math.Min(1-startMargin, u))
		z[i] = math.Log(u / (1 - u))
	}
	return z
}

// fromLatent is the inverse of toLatent: x = lo + (hi-lo)·σ(z).
func fromLatent(z []float64) []float64 {
	x := make([]float64, len(z))
	for i, v := range z {
		b := Bounds[i]
		x[i] = b.Lo + (b.Hi-b.Lo)*sigmoid(v)
	}
	return x
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
