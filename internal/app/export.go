package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"event-analytics/internal/analytics"
)

// Export renders a series and its extended forecast as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Series == "" {
		return errors.New("--series is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)
	periods := a.Config.ResolvePeriods(opts.Periods)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	src, _, err := a.newSources(store)
	if err != nil {
		return err
	}

	before := time.Now().UTC()
	if opts.Before != nil {
		before = opts.Before.UTC()
	}

	series, err := src.FetchSeries(ctx, opts.Series, before, a.Config.Analytics.HistoryLimit)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		a.Logger.Info().Str("series", opts.Series).Msg("no points found for export")
		return nil
	}

	forecast, trend, err := analytics.ExtendedForecast(series, periods)
	if err != nil {
		return err
	}

	downsampled := downsamplePoints(series, opts.MaxPoints)
	a.Logger.Info().Str("series", opts.Series).
		Int("total", len(series)).
		Int("exported", len(downsampled)).
		Int("forecast", len(forecast)).
		Str("trend", string(trend.Direction)).
		Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, downsampled, forecast); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		size := chartSize{Width: a.Config.Export.ChartWidth, Height: a.Config.Export.ChartHeight}
		if err := writeSeriesPNG(opts.PNGPath, opts.Series, downsampled, forecast, size); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points analytics.Series, max int) analytics.Series {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make(analytics.Series, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeSeriesCSV(path string, points analytics.Series, forecast []analytics.ForecastPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"label", "kind", "value", "confidence_lower", "confidence_upper"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{point.Label, "actual", formatFloat(point.Value), "", ""}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	for _, point := range forecast {
		record := []string{
			point.Label,
			"forecast",
			formatFloat(point.Predicted),
			formatFloat(point.ConfidenceLower),
			formatFloat(point.ConfidenceUpper),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

type chartSize struct {
	Width  int
	Height int
}

func writeSeriesPNG(path, name string, points analytics.Series, forecast []analytics.ForecastPoint, size chartSize) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if len(points) == 0 || len(points)+len(forecast) < 2 {
		return errors.New("chart needs at least two points")
	}
	if size.Width <= 0 {
		size.Width = 1280
	}
	if size.Height <= 0 {
		size.Height = 720
	}

	labels := append(points.Labels(), forecastLabels(forecast)...)

	actualX := make([]float64, len(points))
	for i := range points {
		actualX[i] = float64(i)
	}

	// forecast lines start at the last actual point so the chart stays continuous
	last := points[len(points)-1]
	forecastX := []float64{float64(len(points) - 1)}
	predicted := []float64{last.Value}
	lower := []float64{last.Value}
	upper := []float64{last.Value}
	for i, point := range forecast {
		forecastX = append(forecastX, float64(len(points)+i))
		predicted = append(predicted, point.Predicted)
		lower = append(lower, point.ConfidenceLower)
		upper = append(upper, point.ConfidenceUpper)
	}

	labelFormatter := func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return ""
		}
		idx := int(math.Round(f))
		if idx < 0 || idx >= len(labels) || math.Abs(f-float64(idx)) > 1e-9 {
			return ""
		}
		return labels[idx]
	}

	boundStyle := chart.Style{
		StrokeColor:     drawing.ColorFromHex("9e9e9e"),
		StrokeDashArray: []float64{5, 5},
		StrokeWidth:     1,
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Actual",
			XValues: actualX,
			YValues: points.Values(),
		},
	}
	if len(forecast) > 0 {
		series = append(series,
			chart.ContinuousSeries{
				Name:    "Forecast",
				XValues: forecastX,
				YValues: predicted,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("ff9800"),
					StrokeWidth: 2,
				},
			},
			chart.ContinuousSeries{
				Name:    "Lower bound",
				XValues: forecastX,
				YValues: lower,
				Style:   boundStyle,
			},
			chart.ContinuousSeries{
				Name:    "Upper bound",
				XValues: forecastX,
				YValues: upper,
				Style:   boundStyle,
			},
		)
	}

	graph := chart.Chart{
		Title:  name,
		Width:  size.Width,
		Height: size.Height,
		XAxis: chart.XAxis{
			ValueFormatter: labelFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Count",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func forecastLabels(forecast []analytics.ForecastPoint) []string {
	labels := make([]string, len(forecast))
	for i, point := range forecast {
		labels[i] = point.Label
	}
	return labels
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// formatFloat renders v exactly as a decimal string without exponent notation.
func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
