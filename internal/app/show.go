package app

import (
	"context"
	"errors"

	"event-analytics/internal/output"
)

// Show prints recent analytics snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Series, opts.Limit)
	if err != nil {
		return err
	}
	return output.RenderSnapshots(a.Out, format, snapshots, colored())
}
