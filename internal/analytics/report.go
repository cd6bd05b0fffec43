package analytics

// ReportOptions tune Summarize.
type ReportOptions struct {
	PeriodsAhead     int
	AnomalyThreshold float64
	SeasonalPeriod   int
}

// Report bundles everything a dashboard panel shows for one series.
type Report struct {
	Points        int              `json:"points" yaml:"points"`
	Latest        *TimeSeriesPoint `json:"latest,omitempty" yaml:"latest,omitempty"`
	Trend         TrendResult      `json:"trend" yaml:"trend"`
	Forecast      []ForecastPoint  `json:"forecast" yaml:"forecast"`
	Anomaly       AnomalyResult    `json:"anomaly" yaml:"anomaly"`
	Decomposition *Decomposition   `json:"decomposition,omitempty" yaml:"decomposition,omitempty"`
}

// Summarize computes the trend, extended forecast and latest-point anomaly check
// for a series. The latest point is scored against every point before it.
// Decomposition is included only when 2 <= SeasonalPeriod <= len(series).
func Summarize(series Series, opts ReportOptions) (Report, error) {
	forecast, trend, err := ExtendedForecast(series, opts.PeriodsAhead)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Points:   len(series),
		Trend:    trend,
		Forecast: forecast,
	}

	if last, ok := series.Last(); ok {
		latest := last
		report.Latest = &latest
		baseline := series[:len(series)-1].Values()
		report.Anomaly = DetectAnomalyWithThreshold(last.Value, baseline, opts.AnomalyThreshold)
	}

	if opts.SeasonalPeriod >= 2 && opts.SeasonalPeriod <= len(series) {
		decomposition, err := Decompose(series.Values(), opts.SeasonalPeriod)
		if err != nil {
			return Report{}, err
		}
		report.Decomposition = &decomposition
	}

	return report, nil
}
