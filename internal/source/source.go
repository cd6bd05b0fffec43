package source

import (
	"context"
	"time"

	"event-analytics/internal/analytics"
)

// SeriesSource retrieves the most recent points of a metric series recorded before
// a cut-off, oldest first.
type SeriesSource interface {
	FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error)
}

// FunnelSource retrieves the stage counts of an event funnel in pipeline order.
type FunnelSource interface {
	FetchFunnel(ctx context.Context, eventID string) ([]analytics.StageCount, error)
}

// Static serves a fixed series for every key. It backs simulations and tests.
type Static struct {
	Series analytics.Series
	Stages []analytics.StageCount
}

// FetchSeries returns up to limit trailing points of the fixed series.
func (s *Static) FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error) {
	series := s.Series
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make(analytics.Series, len(series))
	copy(out, series)
	return out, nil
}

// FetchFunnel returns the fixed stage counts.
func (s *Static) FetchFunnel(ctx context.Context, eventID string) ([]analytics.StageCount, error) {
	out := make([]analytics.StageCount, len(s.Stages))
	copy(out, s.Stages)
	return out, nil
}

var _ SeriesSource = (*Static)(nil)
var _ FunnelSource = (*Static)(nil)
