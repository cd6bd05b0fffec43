package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-analytics/internal/scheduler"
	"event-analytics/internal/service"
	"event-analytics/internal/storage"
)

// Backfill recomputes snapshots for historical buckets. Alerts are never sent.
// Buckets that already hold a snapshot for every configured series are skipped
// when SkipExisting is set.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	interval := a.Config.Scheduler.Interval
	if interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}

	buckets := scheduler.Buckets(opts.From, opts.To, interval)
	if len(buckets) == 0 {
		return errors.New("backfill range is empty; check --from/--to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var snapshots storage.SnapshotStore
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: snapshots will not be written")
	} else {
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		snapshots = store
	}

	src, _, err := a.newSources(store)
	if err != nil {
		return err
	}

	covered := map[time.Time]bool{}
	if store != nil {
		covered, err = service.CoveredBuckets(ctx, store, a.Config.Analytics.Series, buckets[0], opts.To)
		if err != nil {
			return fmt.Errorf("list existing snapshots: %w", err)
		}
		a.Logger.Info().Int("buckets", len(buckets)).Int("existing", len(covered)).Msg("backfill plan")
	}

	svc := service.New(a.Config, nil, src, snapshots, nil, nil, a.Logger)

	processed := 0
	skipped := 0
	failed := 0
	for _, bucket := range buckets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if covered[bucket.UTC()] {
			if opts.SkipExisting {
				skipped++
				continue
			}
			if opts.DryRun {
				a.Logger.Info().Time("bucket", bucket).Msg("dry-run would overwrite existing snapshots")
			}
		}

		if err := svc.ProcessBucket(ctx, bucket); err != nil {
			failed++
			a.Logger.Error().Err(err).Time("bucket", bucket).Msg("backfill bucket failed")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("skipped", skipped).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d buckets failed; see logs", failed, len(buckets))
	}
	return nil
}
