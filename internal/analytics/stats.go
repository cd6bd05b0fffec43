package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// z value for a two-sided 95% interval.
const confidenceZ = 1.96

// meanStdDev returns the mean and population standard deviation of values.
// An empty slice yields zeros instead of NaN.
func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean, stdDev = stat.PopMeanStdDev(values, nil)
	if math.IsNaN(stdDev) {
		stdDev = 0
	}
	return mean, stdDev
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func indexAxis(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// MAPE returns the mean absolute percentage error, skipping zero actuals.
func MAPE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 100
}

// MAE returns the mean absolute error.
func MAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// RMSE returns the root mean squared error.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// Accuracy scores a forecast against held-out observations.
type Accuracy struct {
	MAPE float64 `json:"mape" yaml:"mape"`
	MAE  float64 `json:"mae" yaml:"mae"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
}

// Backtest forecasts the last holdout points from the preceding prefix and scores
// the unadjusted predictions against what actually happened.
func Backtest(series Series, holdout int) (Accuracy, error) {
	if holdout < 1 || holdout > len(series)-2 {
		return Accuracy{}, ErrInsufficientData
	}
	if !series.Finite() {
		return Accuracy{}, ErrNonFinite
	}

	split := len(series) - holdout
	predicted, err := Forecast(series[:split], holdout)
	if err != nil {
		return Accuracy{}, err
	}

	actual := series[split:].Values()
	pred := make([]float64, len(predicted))
	for i, p := range predicted {
		pred[i] = p.Predicted
	}

	return Accuracy{
		MAPE: MAPE(actual, pred),
		MAE:  MAE(actual, pred),
		RMSE: RMSE(actual, pred),
	}, nil
}
