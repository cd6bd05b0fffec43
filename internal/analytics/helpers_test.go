package analytics

import (
	"fmt"
	"time"
)

var testStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// dailySeries labels values with consecutive dates starting at testStart.
func dailySeries(values ...float64) Series {
	series := make(Series, len(values))
	for i, v := range values {
		series[i] = TimeSeriesPoint{
			Label: testStart.AddDate(0, 0, i).Format(DefaultLabelLayout),
			Value: v,
		}
	}
	return series
}

// linearSeries builds y = slope*i + intercept.
func linearSeries(n int, slope, intercept float64) Series {
	series := make(Series, n)
	for i := range series {
		series[i] = TimeSeriesPoint{
			Label: fmt.Sprintf("d%d", i+1),
			Value: slope*float64(i) + intercept,
		}
	}
	return series
}

// registrationSeries is the five-day signup ramp used across dashboard tests.
func registrationSeries() Series {
	return Series{
		{Label: "d1", Value: 15},
		{Label: "d2", Value: 45},
		{Label: "d3", Value: 98},
		{Label: "d4", Value: 156},
		{Label: "d5", Value: 234},
	}
}
