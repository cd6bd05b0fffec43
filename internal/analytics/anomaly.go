package analytics

import "math"

const (
	// DefaultAnomalyThreshold is the z-score above which a value is flagged.
	DefaultAnomalyThreshold = 2.5
	// MinBaselinePoints is the smallest baseline the detector will score against.
	MinBaselinePoints = 3
)

// DetectAnomaly tests value against a baseline of historical values using the
// default threshold. The baseline must not contain the value under test.
func DetectAnomaly(value float64, baseline []float64) AnomalyResult {
	return DetectAnomalyWithThreshold(value, baseline, DefaultAnomalyThreshold)
}

// DetectAnomalyWithThreshold is DetectAnomaly with a caller-chosen z-score threshold.
// A non-positive or NaN threshold falls back to DefaultAnomalyThreshold.
func DetectAnomalyWithThreshold(value float64, baseline []float64, threshold float64) AnomalyResult {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultAnomalyThreshold
	}

	if len(baseline) < MinBaselinePoints {
		return AnomalyResult{
			ExpectedMin: value,
			ExpectedMax: value,
			Threshold:   threshold,
		}
	}

	avg, stdDev := meanStdDev(baseline)

	zScore := 0.0
	if stdDev != 0 {
		zScore = math.Abs(value-avg) / stdDev
	}

	return AnomalyResult{
		IsAnomaly:   zScore > threshold,
		ZScore:      zScore,
		ExpectedMin: nonNegative(math.Round(avg - threshold*stdDev)),
		ExpectedMax: math.Round(avg + threshold*stdDev),
		Mean:        avg,
		StdDev:      stdDev,
		Threshold:   threshold,
	}
}

// ScoredPoint pairs a series point with its anomaly result.
type ScoredPoint struct {
	Index  int             `json:"index" yaml:"index"`
	Point  TimeSeriesPoint `json:"point" yaml:"point"`
	Result AnomalyResult   `json:"result" yaml:"result"`
}

// ScanAnomalies scores every point against all points before it. Points without
// enough history are reported as not anomalous.
func ScanAnomalies(series Series, threshold float64) []ScoredPoint {
	values := series.Values()
	scored := make([]ScoredPoint, len(series))
	for i, p := range series {
		scored[i] = ScoredPoint{
			Index:  i,
			Point:  p,
			Result: DetectAnomalyWithThreshold(p.Value, values[:i], threshold),
		}
	}
	return scored
}
