package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-analytics/internal/analytics"
	"event-analytics/internal/service"
	"event-analytics/internal/source"
)

// SimulateAlert scores a value against a hand-written baseline and, when it is
// anomalous, pushes a simulated alert through the configured channels.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	series := make(analytics.Series, 0, len(opts.Baseline)+1)
	for i, v := range opts.Baseline {
		series = append(series, analytics.TimeSeriesPoint{Label: fmt.Sprintf("baseline-%d", i+1), Value: v})
	}
	series = append(series, analytics.TimeSeriesPoint{Label: "simulated", Value: opts.Value})

	svc := service.New(a.Config, nil, &source.Static{Series: series}, nil, nil, notifier, a.Logger)
	report, err := svc.Evaluate(ctx, opts.Series, bucket)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("series", opts.Series).
		Float64("value", opts.Value).
		Float64("z_score", report.Anomaly.ZScore).
		Bool("anomaly", report.Anomaly.IsAnomaly).
		Msg("simulated anomaly check")

	if !report.Anomaly.IsAnomaly {
		fmt.Fprintf(a.Out, "value %.2f is within %.0f..%.0f (z=%.2f); no alert sent\n",
			opts.Value, report.Anomaly.ExpectedMin, report.Anomaly.ExpectedMax, report.Anomaly.ZScore)
		return nil
	}

	note := service.NewNotification(opts.Series, bucket, report, a.Config.Alerting.Channels)
	note.Simulated = true
	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("dispatch simulated alert: %w", err)
	}
	fmt.Fprintf(a.Out, "simulated %s alert sent for %s (z=%.2f)\n", note.Kind, opts.Series, report.Anomaly.ZScore)
	return nil
}
