package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"event-analytics/internal/analytics"
	"event-analytics/internal/output"
)

// Funnel prints the benchmark gap analysis of an event funnel.
func (a *App) Funnel(ctx context.Context, opts FunnelOptions) error {
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if (opts.Event == "") == (opts.Stages == "") {
		return errors.New("exactly one of --event or --stages must be provided")
	}

	var counts []analytics.StageCount
	if opts.Stages != "" {
		counts, err = ParseStages(opts.Stages)
		if err != nil {
			return err
		}
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
		_, funnels, err := a.newSources(store)
		if err != nil {
			return err
		}
		counts, err = funnels.FetchFunnel(ctx, opts.Event)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			return fmt.Errorf("event %s has no funnel stages", opts.Event)
		}
	}

	benchmarks := analytics.DefaultBenchmarks()
	if configured := a.Config.Benchmarks(); configured != nil {
		benchmarks = configured
	}

	results := analytics.OptimizeFunnel(analytics.BuildFunnel(counts), benchmarks)
	return output.RenderFunnel(a.Out, format, output.NewFunnelReport(opts.Event, results), colored())
}

// ParseStages reads "stage:count" pairs separated by commas, in pipeline order.
func ParseStages(raw string) ([]analytics.StageCount, error) {
	parts := strings.Split(raw, ",")
	counts := make([]analytics.StageCount, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, value, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid stage %q, expected stage:count", part)
		}
		count, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid count for stage %q", id)
		}
		counts = append(counts, analytics.StageCount{StageID: strings.ToLower(strings.TrimSpace(id)), Count: count})
	}
	if len(counts) == 0 {
		return nil, errors.New("no stages given")
	}
	return counts, nil
}
