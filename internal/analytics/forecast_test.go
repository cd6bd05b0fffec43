package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitLinear(t *testing.T) {
	tests := []struct {
		name          string
		values        []float64
		wantSlope     float64
		wantIntercept float64
	}{
		{name: "empty", values: nil},
		{name: "single value is flat", values: []float64{42}, wantIntercept: 42},
		{name: "two points", values: []float64{60, 80}, wantSlope: 20, wantIntercept: 60},
		{name: "exact line 2i+3", values: linearSeries(20, 2, 3).Values(), wantSlope: 2, wantIntercept: 3},
		{name: "decreasing", values: []float64{10, 8, 6, 4}, wantSlope: -2, wantIntercept: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := FitLinear(tt.values)
			assert.InDelta(t, tt.wantSlope, fit.Slope, 1e-9)
			assert.InDelta(t, tt.wantIntercept, fit.Intercept, 1e-9)
		})
	}
}

func TestForecast_NegativeHorizon(t *testing.T) {
	_, err := Forecast(registrationSeries(), -1)
	assert.ErrorIs(t, err, ErrNegativeHorizon)

	_, _, err = ExtendedForecast(registrationSeries(), -3)
	assert.ErrorIs(t, err, ErrNegativeHorizon)
}

func TestForecast_ZeroHorizon(t *testing.T) {
	points, err := Forecast(registrationSeries(), 0)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestForecast_NonNegative(t *testing.T) {
	inputs := []Series{
		dailySeries(100, 80, 50, 20, 5),
		dailySeries(3, 1, 0, 0, 0, 0),
		dailySeries(10, 50, 5, 70, 2),
		dailySeries(7),
		{},
	}

	for _, series := range inputs {
		points, err := Forecast(series, 8)
		require.NoError(t, err)
		require.Len(t, points, 8)
		for i, p := range points {
			assert.GreaterOrEqual(t, p.Predicted, 0.0, "step %d predicted", i)
			assert.GreaterOrEqual(t, p.ConfidenceLower, 0.0, "step %d lower", i)
			assert.GreaterOrEqual(t, p.ConfidenceUpper, p.Predicted, "step %d upper", i)
		}
	}
}

func TestForecast_ConstantMargin(t *testing.T) {
	series := registrationSeries()
	points, err := Forecast(series, 4)
	require.NoError(t, err)

	_, stdDev := meanStdDev(series.Values())
	margin := 1.96 * stdDev * math.Sqrt(1+1.0/5)

	fit := FitLinear(series.Values())
	for i, p := range points {
		assert.InDelta(t, fit.At(float64(5+i)), p.Predicted, 1e-9)
		assert.InDelta(t, margin, p.ConfidenceUpper-p.Predicted, 1e-9)
	}
}

func TestForecast_SinglePointIsFlat(t *testing.T) {
	points, err := Forecast(dailySeries(12), 3)
	require.NoError(t, err)
	for _, p := range points {
		assert.Equal(t, 12.0, p.Predicted)
		assert.Equal(t, 12.0, p.ConfidenceLower)
		assert.Equal(t, 12.0, p.ConfidenceUpper)
	}
}

func TestForecast_Labels(t *testing.T) {
	points, err := Forecast(dailySeries(1, 2, 3), 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", points[0].Label)
	assert.Equal(t, "2025-03-05", points[1].Label)
}

func TestNextLabels(t *testing.T) {
	weekly := Series{{Label: "2025-01-01", Value: 1}, {Label: "2025-01-08", Value: 2}}
	assert.Equal(t, []string{"2025-01-15", "2025-01-22"}, NextLabels(weekly, 2))

	opaque := Series{{Label: "week 3", Value: 1}}
	assert.Equal(t, []string{"week 3+1", "week 3+2"}, NextLabels(opaque, 2))

	assert.Equal(t, []string{"t+1"}, NextLabels(Series{}, 1))
	assert.Empty(t, NextLabels(weekly, 0))
}

func TestAdjustForecast(t *testing.T) {
	base := []ForecastPoint{
		{Label: "a", Predicted: 100, ConfidenceLower: 80, ConfidenceUpper: 120},
		{Label: "b", Predicted: 110, ConfidenceLower: 90, ConfidenceUpper: 130},
	}
	trend := TrendResult{Strength: 0.5}

	adjusted := AdjustForecast(base, trend)
	require.Len(t, adjusted, 2)

	// step 0: factor 1.05, step 1: factor 1.10
	assert.Equal(t, ForecastPoint{Label: "a", Predicted: 105, ConfidenceLower: 76, ConfidenceUpper: 139}, adjusted[0])
	assert.Equal(t, ForecastPoint{Label: "b", Predicted: 121, ConfidenceLower: 89, ConfidenceUpper: 157}, adjusted[1])

	// base must be left untouched
	assert.Equal(t, 100.0, base[0].Predicted)
}

func TestAdjustForecast_ZeroStrengthOnlyRounds(t *testing.T) {
	base := []ForecastPoint{{Predicted: 10.4, ConfidenceLower: 5.6, ConfidenceUpper: 15.2}}
	adjusted := AdjustForecast(base, TrendResult{})
	assert.Equal(t, 10.0, adjusted[0].Predicted)
	assert.Equal(t, 5.0, adjusted[0].ConfidenceLower)  // 5.6 * 0.9 = 5.04
	assert.Equal(t, 17.0, adjusted[0].ConfidenceUpper) // 15.2 * 1.1 = 16.72
}

func TestExtendedForecast_RegistrationRamp(t *testing.T) {
	series := registrationSeries()

	points, trend, err := ExtendedForecast(series, 5)
	require.NoError(t, err)
	require.Len(t, points, 5)

	values := series.Values()
	fit := FitLinear(values)
	avg := (15.0 + 45 + 98 + 156 + 234) / 5

	assert.InDelta(t, 54.9, fit.Slope, 1e-9)
	assert.Equal(t, DirectionUpward, trend.Direction)
	assert.InDelta(t, fit.Slope/avg*100, trend.ChangeRatePercent, 1e-9)
	assert.Greater(t, trend.Strength, 0.9)

	base, err := Forecast(series, 5)
	require.NoError(t, err)
	for i := 1; i < len(base); i++ {
		assert.Greater(t, base[i].Predicted, base[i-1].Predicted)
		assert.Greater(t, points[i].Predicted, points[i-1].Predicted)
	}
	for i, p := range points {
		factor := 1 + trend.Strength*0.1*float64(i+1)
		assert.Equal(t, math.Round(base[i].Predicted*factor), p.Predicted)
		assert.Equal(t, p.Predicted, math.Round(p.Predicted))
	}
}

func TestForecastRejectsNonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		series := Series{{Label: "d1", Value: 10}, {Label: "d2", Value: bad}, {Label: "d3", Value: 12}}

		_, err := Forecast(series, 2)
		assert.ErrorIs(t, err, ErrNonFinite)

		_, _, err = ExtendedForecast(series, 2)
		assert.ErrorIs(t, err, ErrNonFinite)

		_, err = Summarize(series, ReportOptions{PeriodsAhead: 2})
		assert.ErrorIs(t, err, ErrNonFinite)
	}
}

func TestNonNegativeMapsNaNToZero(t *testing.T) {
	assert.Equal(t, 0.0, nonNegative(math.NaN()))
	assert.Equal(t, 0.0, nonNegative(-3))
	assert.Equal(t, 4.0, nonNegative(4))
}

func TestBacktest(t *testing.T) {
	acc, err := Backtest(linearSeries(30, 3, 10), 5)
	require.NoError(t, err)
	assert.InDelta(t, 0, acc.MAE, 1e-6)
	assert.InDelta(t, 0, acc.RMSE, 1e-6)

	_, err = Backtest(linearSeries(4, 1, 0), 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Backtest(linearSeries(10, 1, 0), 0)
	assert.ErrorIs(t, err, ErrInsufficientData)

	heldOutNaN := linearSeries(10, 1, 0)
	heldOutNaN[9].Value = math.NaN()
	_, err = Backtest(heldOutNaN, 2)
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestErrorMetrics(t *testing.T) {
	actual := []float64{100, 200, 300}
	predicted := []float64{110, 190, 310}

	assert.InDelta(t, 6.11, MAPE(actual, predicted), 0.01)
	assert.Equal(t, 10.0, MAE(actual, predicted))
	assert.Equal(t, 10.0, RMSE(actual, predicted))

	assert.Zero(t, MAPE(actual, predicted[:2]))
	assert.Zero(t, MAE(nil, nil))
	assert.Zero(t, RMSE([]float64{1}, nil))
}
