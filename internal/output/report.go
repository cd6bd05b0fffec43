package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"event-analytics/internal/analytics"
)

// SeriesReport is the serialized form of one analyzed series.
type SeriesReport struct {
	Series      string                  `json:"series" yaml:"series"`
	Report      analytics.Report        `json:"report" yaml:"report"`
	Accuracy    *analytics.Accuracy     `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Anomalies   []analytics.ScoredPoint `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
	Correlation *CorrelationSummary     `json:"correlation,omitempty" yaml:"correlation,omitempty"`
}

// CorrelationSummary pairs the analyzed series with another one.
type CorrelationSummary struct {
	With        string  `json:"with" yaml:"with"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
	Matched     int     `json:"matched" yaml:"matched"`
}

// RenderReport writes a series report in the requested format.
func RenderReport(w io.Writer, format Format, sr SeriesReport, colored bool) error {
	if format != FormatText {
		return encode(w, format, sr)
	}

	report := sr.Report
	writeTitle(w, fmt.Sprintf("Series %s (%d points)", sr.Series, report.Points), colored)
	fmt.Fprintln(w)

	trend := report.Trend
	fmt.Fprintf(w, "Trend:      %s (strength %.2f, change %.2f%% per period)\n",
		paintDirection(trend.Direction, colored), trend.Strength, trend.ChangeRatePercent)
	fmt.Fprintf(w, "Next:       %s\n", formatNumber(trend.NextPeriodForecast))

	if report.Latest != nil {
		anomaly := report.Anomaly
		status := paint("normal", colored, color.FgGreen)
		if anomaly.IsAnomaly {
			status = paint(anomaly.Kind(report.Latest.Value), colored, color.FgRed, color.Bold)
		}
		fmt.Fprintf(w, "Latest:     %s = %s [%s] z=%.2f expected %s..%s\n",
			report.Latest.Label,
			formatNumber(report.Latest.Value),
			status,
			anomaly.ZScore,
			formatNumber(anomaly.ExpectedMin),
			formatNumber(anomaly.ExpectedMax),
		)
	}
	if sr.Accuracy != nil {
		fmt.Fprintf(w, "Backtest:   MAPE %.2f%%  MAE %.2f  RMSE %.2f\n", sr.Accuracy.MAPE, sr.Accuracy.MAE, sr.Accuracy.RMSE)
	}
	if sr.Correlation != nil {
		fmt.Fprintf(w, "Correlation with %s: %.3f over %d points\n", sr.Correlation.With, sr.Correlation.Coefficient, sr.Correlation.Matched)
	}
	fmt.Fprintln(w)

	if len(report.Forecast) > 0 {
		rows := make([][]string, len(report.Forecast))
		for i, point := range report.Forecast {
			rows[i] = []string{
				point.Label,
				formatNumber(point.Predicted),
				formatNumber(point.ConfidenceLower),
				formatNumber(point.ConfidenceUpper),
			}
		}
		writeTable(w, []string{"period", "predicted", "lower", "upper"}, rows)
	}

	if len(sr.Anomalies) > 0 {
		rows := make([][]string, len(sr.Anomalies))
		for i, scored := range sr.Anomalies {
			rows[i] = []string{
				scored.Point.Label,
				formatNumber(scored.Point.Value),
				scored.Result.Kind(scored.Point.Value),
				fmt.Sprintf("%.2f", scored.Result.ZScore),
			}
		}
		writeTable(w, []string{"point", "value", "kind", "z-score"}, rows)
	}

	if d := report.Decomposition; d != nil {
		rows := make([][]string, len(d.SeasonalIndices))
		for phase, index := range d.SeasonalIndices {
			rows[phase] = []string{fmt.Sprintf("%d", phase), fmt.Sprintf("%.2f", index)}
		}
		fmt.Fprintf(w, "Seasonal indices (period %d)\n", d.Period)
		writeTable(w, []string{"phase", "index"}, rows)
	}

	return nil
}

func paintDirection(d analytics.Direction, colored bool) string {
	switch d {
	case analytics.DirectionUpward:
		return paint(string(d), colored, color.FgGreen)
	case analytics.DirectionDownward:
		return paint(string(d), colored, color.FgRed)
	default:
		return paint(string(d), colored, color.FgYellow)
	}
}
