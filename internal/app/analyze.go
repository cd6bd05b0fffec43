package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-analytics/internal/analytics"
	"event-analytics/internal/output"
	"event-analytics/internal/source"
)

// Analyze prints a one-off report for a stored series or a CSV file.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if (opts.Series == "") == (opts.CSVPath == "") {
		return errors.New("exactly one of --series or --csv must be provided")
	}
	if opts.Bucket > 0 && opts.CSVPath == "" {
		return errors.New("--bucket applies to --csv event logs only")
	}

	var src source.SeriesSource
	if opts.Series != "" || opts.CompareWith != "" {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
		if src, _, err = a.newSources(store); err != nil {
			return err
		}
	}

	name := opts.Series
	var series analytics.Series
	if opts.CSVPath != "" {
		name = opts.CSVPath
		series, err = readCSVSeries(opts.CSVPath, opts.Bucket)
		if err != nil {
			return fmt.Errorf("read %s: %w", opts.CSVPath, err)
		}
	} else {
		series, err = src.FetchSeries(ctx, opts.Series, time.Now().UTC(), a.Config.Analytics.HistoryLimit)
		if err != nil {
			return err
		}
	}

	result, err := a.buildSeriesReport(name, series, opts)
	if err != nil {
		return err
	}

	if opts.CompareWith != "" {
		other, err := src.FetchSeries(ctx, opts.CompareWith, time.Now().UTC(), a.Config.Analytics.HistoryLimit)
		if err != nil {
			return fmt.Errorf("fetch comparison series: %w", err)
		}
		r, matched := analytics.CorrelateByLabel(series, other)
		result.Correlation = &output.CorrelationSummary{With: opts.CompareWith, Coefficient: r, Matched: matched}
	}

	return output.RenderReport(a.Out, format, result, colored())
}

// readCSVSeries loads label,value rows, or aggregates a raw event log into
// buckets of the given width when bucket is positive.
func readCSVSeries(path string, bucket time.Duration) (analytics.Series, error) {
	if bucket <= 0 {
		return source.ReadCSVFile(path)
	}
	events, err := source.ReadEventsCSVFile(path)
	if err != nil {
		return nil, err
	}
	return analytics.Aggregate(events, bucket, analytics.BucketLayout(bucket)), nil
}

func (a *App) buildSeriesReport(name string, series analytics.Series, opts AnalyzeOptions) (output.SeriesReport, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = a.Config.Analytics.AnomalyThreshold
	}
	period := opts.Period
	if period <= 0 {
		period = a.Config.Analytics.SeasonalPeriod
	}

	report, err := analytics.Summarize(series, analytics.ReportOptions{
		PeriodsAhead:     a.Config.ResolvePeriods(opts.Periods),
		AnomalyThreshold: threshold,
		SeasonalPeriod:   period,
	})
	if err != nil {
		return output.SeriesReport{}, err
	}

	result := output.SeriesReport{Series: name, Report: report}

	if opts.Backtest > 0 {
		accuracy, err := analytics.Backtest(series, opts.Backtest)
		if err != nil {
			return output.SeriesReport{}, fmt.Errorf("backtest: %w", err)
		}
		result.Accuracy = &accuracy
	}

	if opts.ScanAll {
		for _, scored := range analytics.ScanAnomalies(series, threshold) {
			if scored.Result.IsAnomaly {
				result.Anomalies = append(result.Anomalies, scored)
			}
		}
	}

	return result, nil
}
