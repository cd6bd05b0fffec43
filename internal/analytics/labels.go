package analytics

import (
	"fmt"
	"time"
)

var labelLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04",
}

// NextLabels produces count labels continuing the series. Date labels advance by
// the spacing of the last two points (one day when that cannot be inferred);
// anything else becomes "<last>+i".
func NextLabels(series Series, count int) []string {
	if count <= 0 {
		return []string{}
	}

	labels := make([]string, count)
	last, ok := series.Last()
	if !ok {
		for i := range labels {
			labels[i] = fmt.Sprintf("t+%d", i+1)
		}
		return labels
	}

	at, layout, ok := parseLabel(last.Label)
	if !ok {
		for i := range labels {
			labels[i] = fmt.Sprintf("%s+%d", last.Label, i+1)
		}
		return labels
	}

	step := 24 * time.Hour
	if len(series) >= 2 {
		if prev, prevLayout, ok := parseLabel(series[len(series)-2].Label); ok && prevLayout == layout {
			if diff := at.Sub(prev); diff > 0 {
				step = diff
			}
		}
	}

	for i := range labels {
		labels[i] = at.Add(step * time.Duration(i+1)).Format(layout)
	}
	return labels
}

func parseLabel(label string) (time.Time, string, bool) {
	for _, layout := range labelLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}
