package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitLinear fits y = slope*x + intercept by ordinary least squares with x being the
// position index 0..n-1. Labels play no part in the fit.
//
// An empty input yields a zero line. A single value, where the closed form would
// divide by zero, yields a flat line at that value.
func FitLinear(values []float64) LinearFit {
	n := len(values)
	switch n {
	case 0:
		return LinearFit{}
	case 1:
		return LinearFit{Slope: 0, Intercept: values[0]}
	}

	intercept, slope := stat.LinearRegression(indexAxis(n), values, nil, false)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return LinearFit{Slope: 0, Intercept: mean(values)}
	}
	return LinearFit{Slope: slope, Intercept: intercept}
}

// rSquared returns 1 - SSres/SStot for the fit, or 0 when the values have no spread.
func rSquared(values []float64, fit LinearFit) float64 {
	avg := mean(values)
	var ssTot float64
	for _, v := range values {
		d := v - avg
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0
	}

	r2 := stat.RSquared(indexAxis(len(values)), values, nil, fit.Intercept, fit.Slope)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return r2
}
