package analytics

import "math"

// StableChangeRatePercent is the largest per-period change, relative to the mean,
// still classified as a stable trend.
const StableChangeRatePercent = 2.0

// AnalyzeTrend classifies the direction of a series and scores how well a straight
// line explains it.
func AnalyzeTrend(series Series) TrendResult {
	n := len(series)
	if n < 2 {
		result := TrendResult{Direction: DirectionStable}
		if last, ok := series.Last(); ok {
			result.NextPeriodForecast = last.Value
			result.Intercept = last.Value
		}
		return result
	}

	values := series.Values()
	fit := FitLinear(values)
	avg := mean(values)

	changeRate := 0.0
	if avg != 0 {
		changeRate = fit.Slope / avg * 100
	}

	direction := DirectionStable
	if math.Abs(changeRate) > StableChangeRatePercent {
		if fit.Slope > 0 {
			direction = DirectionUpward
		} else {
			direction = DirectionDownward
		}
	}

	return TrendResult{
		Direction:          direction,
		Strength:           clamp(math.Abs(rSquared(values, fit)), 0, 1),
		ChangeRatePercent:  changeRate,
		NextPeriodForecast: nonNegative(math.Round(fit.At(float64(n)))),
		Slope:              fit.Slope,
		Intercept:          fit.Intercept,
	}
}
