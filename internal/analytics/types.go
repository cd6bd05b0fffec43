// Package analytics implements the time-series engine behind the event dashboards:
// linear forecasting, trend classification, z-score anomaly checks, correlation,
// seasonal decomposition and funnel gap estimation.
//
// Every function is a pure computation over its arguments. Nothing here performs
// I/O or keeps state between calls, so the package is safe for concurrent use.
package analytics

import (
	"errors"
	"math"
)

var (
	// ErrNegativeHorizon is returned when a forecast is requested for a negative number of periods.
	ErrNegativeHorizon = errors.New("analytics: periods ahead cannot be negative")
	// ErrInvalidPeriod is returned when a seasonal period is smaller than one.
	ErrInvalidPeriod = errors.New("analytics: seasonal period must be at least 1")
	// ErrInsufficientData is returned when an operation needs more points than supplied.
	ErrInsufficientData = errors.New("analytics: insufficient data points")
	// ErrNonFinite is returned when a series holds NaN or infinite values.
	ErrNonFinite = errors.New("analytics: series contains non-finite values")
)

// TimeSeriesPoint is a single labeled observation. Label is an opaque display key
// (usually a date); ordering comes from the position in the Series.
type TimeSeriesPoint struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// Series is an ordered sequence of points. Slice order is temporal order.
type Series []TimeSeriesPoint

// Values extracts the numeric values in order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Labels extracts the labels in order.
func (s Series) Labels() []string {
	labels := make([]string, len(s))
	for i, p := range s {
		labels[i] = p.Label
	}
	return labels
}

// Last returns the final point and whether the series is non-empty.
func (s Series) Last() (TimeSeriesPoint, bool) {
	if len(s) == 0 {
		return TimeSeriesPoint{}, false
	}
	return s[len(s)-1], true
}

// Finite reports whether every value is a real number.
func (s Series) Finite() bool {
	for _, p := range s {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return false
		}
	}
	return true
}

// Direction classifies the slope of a series.
type Direction string

const (
	DirectionUpward   Direction = "upward"
	DirectionDownward Direction = "downward"
	DirectionStable   Direction = "stable"
)

// LinearFit holds an ordinary least-squares line over the position index.
type LinearFit struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// At evaluates the line at position x.
func (f LinearFit) At(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// ForecastPoint is one projected period with its confidence band.
type ForecastPoint struct {
	Label           string  `json:"label" yaml:"label"`
	Predicted       float64 `json:"predicted" yaml:"predicted"`
	ConfidenceLower float64 `json:"confidence_lower" yaml:"confidence_lower"`
	ConfidenceUpper float64 `json:"confidence_upper" yaml:"confidence_upper"`
}

// TrendResult describes the direction and confidence of a series trend.
type TrendResult struct {
	Direction          Direction `json:"direction" yaml:"direction"`
	Strength           float64   `json:"strength" yaml:"strength"`
	ChangeRatePercent  float64   `json:"change_rate_percent" yaml:"change_rate_percent"`
	NextPeriodForecast float64   `json:"next_period_forecast" yaml:"next_period_forecast"`
	Slope              float64   `json:"slope" yaml:"slope"`
	Intercept          float64   `json:"intercept" yaml:"intercept"`
}

// AnomalyResult is the outcome of testing one value against a baseline.
type AnomalyResult struct {
	IsAnomaly   bool    `json:"is_anomaly" yaml:"is_anomaly"`
	ZScore      float64 `json:"z_score" yaml:"z_score"`
	ExpectedMin float64 `json:"expected_min" yaml:"expected_min"`
	ExpectedMax float64 `json:"expected_max" yaml:"expected_max"`
	Mean        float64 `json:"mean" yaml:"mean"`
	StdDev      float64 `json:"std_dev" yaml:"std_dev"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
}

// Kind reports "spike" or "drop" for anomalies relative to the baseline mean, "normal" otherwise.
func (r AnomalyResult) Kind(value float64) string {
	if !r.IsAnomaly {
		return "normal"
	}
	if value >= r.Mean {
		return "spike"
	}
	return "drop"
}
