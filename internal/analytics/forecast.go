package analytics

import "math"

// Forecast projects the series periodsAhead steps past its last point along the
// least-squares line.
//
// The confidence margin is 1.96 * stddev(values) * sqrt(1 + 1/n), using the
// population spread of the raw values, and is the same at every step.
// Predicted and lower bounds are clamped at zero; upper bounds are not.
// Series holding NaN or infinite values are rejected with ErrNonFinite.
func Forecast(series Series, periodsAhead int) ([]ForecastPoint, error) {
	if periodsAhead < 0 {
		return nil, ErrNegativeHorizon
	}
	if !series.Finite() {
		return nil, ErrNonFinite
	}

	n := len(series)
	values := series.Values()
	fit := FitLinear(values)

	margin := 0.0
	if n > 0 {
		_, stdDev := meanStdDev(values)
		margin = confidenceZ * stdDev * math.Sqrt(1+1/float64(n))
	}

	labels := NextLabels(series, periodsAhead)
	points := make([]ForecastPoint, periodsAhead)
	for i := 0; i < periodsAhead; i++ {
		predicted := nonNegative(fit.At(float64(n + i)))
		points[i] = ForecastPoint{
			Label:           labels[i],
			Predicted:       predicted,
			ConfidenceLower: nonNegative(predicted - margin),
			ConfidenceUpper: predicted + margin,
		}
	}
	return points, nil
}

// AdjustForecast scales a base forecast by the trend strength. Step i is multiplied
// by 1 + strength*0.1*(i+1), with the lower bound narrowed by 0.9 and the upper
// widened by 1.1. Outputs are rounded to whole numbers.
func AdjustForecast(base []ForecastPoint, trend TrendResult) []ForecastPoint {
	adjusted := make([]ForecastPoint, len(base))
	for i, p := range base {
		factor := 1 + trend.Strength*0.1*float64(i+1)
		adjusted[i] = ForecastPoint{
			Label:           p.Label,
			Predicted:       math.Round(p.Predicted * factor),
			ConfidenceLower: math.Round(p.ConfidenceLower * factor * 0.9),
			ConfidenceUpper: math.Round(p.ConfidenceUpper * factor * 1.1),
		}
	}
	return adjusted
}

// ExtendedForecast runs the base forecast and the trend classifier on the same
// series and feeds the trend into AdjustForecast. The trend is returned alongside
// the points so callers do not have to recompute it.
func ExtendedForecast(series Series, periodsAhead int) ([]ForecastPoint, TrendResult, error) {
	base, err := Forecast(series, periodsAhead)
	if err != nil {
		return nil, TrendResult{}, err
	}
	trend := AnalyzeTrend(series)
	return AdjustForecast(base, trend), trend, nil
}
