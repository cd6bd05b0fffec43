package cli

import (
	"github.com/spf13/cobra"

	"event-analytics/internal/app"
)

var analyzeOpts app.AnalyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report trend, forecast and anomalies for one series",
	Example: `  eventpulse analyze --series registrations --periods 7
  eventpulse analyze --csv signups.csv --format json --backtest 3
  eventpulse analyze --csv registrations-log.csv --bucket 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), analyzeOpts)
	},
}

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVar(&analyzeOpts.Series, "series", "", "Series key to load from the configured source")
	flags.StringVar(&analyzeOpts.CSVPath, "csv", "", "CSV file of label,value rows")
	flags.IntVar(&analyzeOpts.Periods, "periods", 0, "Forecast horizon (defaults to config)")
	flags.Float64Var(&analyzeOpts.Threshold, "threshold", 0, "Anomaly z-score threshold (defaults to config)")
	flags.IntVar(&analyzeOpts.Period, "period", 0, "Seasonal period for decomposition (defaults to config)")
	flags.IntVar(&analyzeOpts.Backtest, "backtest", 0, "Hold out the last N points and score the forecast")
	flags.StringVar(&analyzeOpts.CompareWith, "compare", "", "Correlate against another series key")
	flags.BoolVar(&analyzeOpts.ScanAll, "scan", false, "List every anomalous point, not only the latest")
	flags.DurationVar(&analyzeOpts.Bucket, "bucket", 0, "Treat --csv as a timestamp[,weight] event log summed into buckets of this width")
	flags.StringVar(&analyzeOpts.Format, "format", "text", "Output format: text, json or yaml")
	analyzeCmd.MarkFlagsMutuallyExclusive("series", "csv")
}
