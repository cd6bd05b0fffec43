package analytics

import (
	"sort"
	"time"
)

// DefaultLabelLayout formats daily bucket labels.
const DefaultLabelLayout = "2006-01-02"

// IntradayLabelLayout formats labels of buckets shorter than a day.
const IntradayLabelLayout = "2006-01-02 15:04"

// BucketLayout picks a label layout that keeps buckets of the interval distinct.
func BucketLayout(interval time.Duration) string {
	if interval > 0 && interval%(24*time.Hour) != 0 {
		return IntradayLabelLayout
	}
	return DefaultLabelLayout
}

// Event is a timestamped occurrence, e.g. a registration, carrying a weight.
type Event struct {
	At    time.Time
	Value float64
}

// Aggregate sums events into contiguous UTC buckets of the given interval spanning
// the first to the last event. Empty buckets are emitted with value 0 so the
// resulting series has no gaps. A non-positive interval means one day.
func Aggregate(events []Event, interval time.Duration, layout string) Series {
	if len(events) == 0 {
		return Series{}
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if layout == "" {
		layout = DefaultLabelLayout
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	start := sorted[0].At.UTC().Truncate(interval)
	end := sorted[len(sorted)-1].At.UTC().Truncate(interval)
	buckets := int(end.Sub(start)/interval) + 1

	series := make(Series, buckets)
	for i := range series {
		series[i].Label = start.Add(interval * time.Duration(i)).Format(layout)
	}
	for _, e := range sorted {
		idx := int(e.At.UTC().Truncate(interval).Sub(start) / interval)
		series[idx].Value += e.Value
	}
	return series
}
