package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"event-analytics/internal/alerting"
	"event-analytics/internal/analytics"
	"event-analytics/internal/config"
	"event-analytics/internal/scheduler"
	"event-analytics/internal/source"
	"event-analytics/internal/storage"
)

// Service orchestrates fetching, analysis, persistence, and alerting for the dashboards.
type Service struct {
	scheduler  *scheduler.Scheduler
	source     source.SeriesSource
	snapshots  storage.SnapshotStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	series       []string
	report       analytics.ReportOptions
	historyLimit int
	workers      int
	channels     []string
	alertsOn     bool
	cooldown     time.Duration
	retention    time.Duration
	locker       storage.AdvisoryLocker
	lockKey      int64
	now          func() time.Time
}

// New constructs the refresh service. Nil stores or notifier disable the matching step.
func New(cfg *config.Config, sched *scheduler.Scheduler, src source.SeriesSource, snapshots storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	workers := cfg.Analytics.Workers
	if workers < 1 {
		workers = 1
	}

	return &Service{
		scheduler:  sched,
		source:     src,
		snapshots:  snapshots,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		series:     cfg.Analytics.Series,
		report: analytics.ReportOptions{
			PeriodsAhead:     cfg.Analytics.ForecastPeriods,
			AnomalyThreshold: cfg.Analytics.AnomalyThreshold,
			SeasonalPeriod:   cfg.Analytics.SeasonalPeriod,
		},
		historyLimit: cfg.Analytics.HistoryLimit,
		workers:      workers,
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		cooldown:     cfg.Alerting.Cooldown,
		retention:    cfg.Alerting.Retention,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket refreshes every configured series for one bucket.
// A failing series is logged and counted; the others still run.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	err = s.executeBucket(ctx, bucket)
	s.pruneAlerts(ctx)
	return err
}

// pruneAlerts drops alert records older than the retention window. Cooldown
// lookups only need the newest record per series.
func (s *Service) pruneAlerts(ctx context.Context) {
	if s.alertStore == nil || s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	if err := s.alertStore.DeleteAlertsBefore(ctx, cutoff); err != nil {
		s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to prune alert history")
	}
}

// CoveredBuckets reports which buckets in [from, to) already hold a snapshot for
// every one of the given series.
func CoveredBuckets(ctx context.Context, snapshots storage.SnapshotStore, series []string, from, to time.Time) (map[time.Time]bool, error) {
	existing, err := snapshots.ListSnapshotsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(series))
	for _, key := range series {
		wanted[key] = struct{}{}
	}

	seen := make(map[time.Time]map[string]struct{})
	for _, snapshot := range existing {
		if _, ok := wanted[snapshot.SeriesKey]; !ok {
			continue
		}
		bucket := snapshot.Bucket.UTC()
		if seen[bucket] == nil {
			seen[bucket] = make(map[string]struct{})
		}
		seen[bucket][snapshot.SeriesKey] = struct{}{}
	}

	covered := make(map[time.Time]bool, len(seen))
	for bucket, keys := range seen {
		if len(wanted) > 0 && len(keys) == len(wanted) {
			covered[bucket] = true
		}
	}
	return covered, nil
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	if s.source == nil {
		return fmt.Errorf("series source not configured")
	}

	var failed, anomalies atomic.Int64
	p := pool.New().WithMaxGoroutines(s.workers).WithContext(ctx)
	for _, key := range s.series {
		key := key
		p.Go(func(ctx context.Context) error {
			report, err := s.refreshSeries(ctx, key, bucket)
			if err != nil {
				failed.Add(1)
				s.logger.Error().Err(err).Str("series", key).Time("bucket", bucket).Msg("series refresh failed")
				return fmt.Errorf("%s: %w", key, err)
			}
			if report.Anomaly.IsAnomaly {
				anomalies.Add(1)
			}
			return nil
		})
	}
	err := p.Wait()

	s.logger.Info().Time("bucket", bucket).
		Int("series", len(s.series)).
		Int64("failed", failed.Load()).
		Int64("anomalies", anomalies.Load()).
		Msg("bucket refreshed")

	if err != nil {
		return fmt.Errorf("%d of %d series failed: %w", failed.Load(), len(s.series), err)
	}
	return nil
}

// Evaluate fetches the history of a series up to the bucket and summarizes it.
func (s *Service) Evaluate(ctx context.Context, key string, bucket time.Time) (analytics.Report, error) {
	series, err := s.source.FetchSeries(ctx, key, bucket, s.historyLimit)
	if err != nil {
		return analytics.Report{}, err
	}
	report, err := analytics.Summarize(series, s.report)
	if err != nil {
		return analytics.Report{}, fmt.Errorf("summarize: %w", err)
	}
	return report, nil
}

func (s *Service) refreshSeries(ctx context.Context, key string, bucket time.Time) (analytics.Report, error) {
	report, err := s.Evaluate(ctx, key, bucket)
	if err != nil {
		return analytics.Report{}, err
	}
	if report.Points == 0 {
		s.logger.Warn().Str("series", key).Time("bucket", bucket).Msg("series has no points")
		return report, nil
	}

	if s.snapshots != nil {
		snapshot, err := storage.SnapshotFromReport(key, bucket, report)
		if err != nil {
			return report, err
		}
		if err := s.snapshots.UpsertSnapshot(ctx, snapshot); err != nil {
			return report, fmt.Errorf("persist snapshot: %w", err)
		}
	}

	s.logger.Info().Str("series", key).
		Time("bucket", bucket).
		Str("direction", string(report.Trend.Direction)).
		Float64("strength", report.Trend.Strength).
		Float64("z_score", report.Anomaly.ZScore).
		Msg("series analyzed")

	if report.Anomaly.IsAnomaly {
		s.raiseAlert(ctx, key, bucket, report)
	}
	return report, nil
}

func (s *Service) raiseAlert(ctx context.Context, key string, bucket time.Time, report analytics.Report) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	if s.alertStore != nil && s.cooldown > 0 {
		last, ok, err := s.alertStore.LastAlertAt(ctx, key)
		if err != nil {
			s.logger.Error().Err(err).Str("series", key).Msg("failed to read last alert time")
		} else if ok && s.now().Sub(last) < s.cooldown {
			s.logger.Info().Str("series", key).Time("last_alert", last).Msg("alert suppressed by cooldown")
			return
		}
	}

	note := NewNotification(key, bucket, report, s.channels)

	if s.alertStore != nil {
		record := storage.AlertRecord{
			SeriesKey: key,
			Bucket:    bucket,
			Value:     note.Value,
			ZScore:    note.ZScore,
			Threshold: note.Threshold,
			Direction: note.Kind,
			Channels:  s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("series", key).Time("bucket", bucket).Msg("failed to persist alert record")
		}
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("series", key).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

// NewNotification describes the latest point of a report as an alert.
func NewNotification(key string, bucket time.Time, report analytics.Report, channels []string) alerting.Notification {
	note := alerting.Notification{
		SeriesKey:   key,
		Bucket:      bucket,
		ZScore:      decimal.NewFromFloat(report.Anomaly.ZScore).Round(2),
		Threshold:   decimal.NewFromFloat(report.Anomaly.Threshold),
		ExpectedMin: decimal.NewFromFloat(report.Anomaly.ExpectedMin),
		ExpectedMax: decimal.NewFromFloat(report.Anomaly.ExpectedMax),
		Trend:       string(report.Trend.Direction),
		Channels:    channels,
	}
	if report.Latest != nil {
		note.Label = report.Latest.Label
		note.Value = decimal.NewFromFloat(report.Latest.Value)
		note.Kind = report.Anomaly.Kind(report.Latest.Value)
	}
	return note
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
