package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-analytics/internal/alerting"
	"event-analytics/internal/analytics"
	"event-analytics/internal/config"
	"event-analytics/internal/storage"
)

var testBucket = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	series map[string]analytics.Series
	fail   map[string]error
}

func (f *fakeSource) FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error) {
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.series[key], nil
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots []storage.Snapshot
	alerts    []storage.AlertRecord
	lastAlert map[string]time.Time
	lockHeld  bool
	unlocked  bool
	prunedAt  []time.Time
	existing  []storage.Snapshot
}

func (f *fakeStore) UpsertSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeStore) ListRecentSnapshots(ctx context.Context, seriesKey string, limit int) ([]storage.Snapshot, error) {
	return nil, nil
}

func (f *fakeStore) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]storage.Snapshot, error) {
	var out []storage.Snapshot
	for _, snapshot := range f.existing {
		if !snapshot.Bucket.Before(from) && snapshot.Bucket.Before(to) {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return alert, nil
}

func (f *fakeStore) LastAlertAt(ctx context.Context, seriesKey string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, ok := f.lastAlert[seriesKey]
	return last, ok, nil
}

func (f *fakeStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunedAt = append(f.prunedAt, olderThan)
	return nil
}

func (f *fakeStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if f.lockHeld {
		return nil, false, nil
	}
	return func() { f.unlocked = true }, true, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{Interval: time.Hour, AdvisoryLockKey: 42},
		Analytics: config.AnalyticsConfig{
			Series:           []string{"registrations", "page_views"},
			ForecastPeriods:  3,
			AnomalyThreshold: 2.5,
			HistoryLimit:     90,
			Workers:          2,
		},
		Alerting: config.AlertingConfig{
			Enabled:  true,
			Cooldown: 6 * time.Hour,
			Channels: []string{"telegram"},
		},
	}
}

func spikeSeries() analytics.Series {
	return analytics.Series{
		{Label: "2025-03-04", Value: 10},
		{Label: "2025-03-05", Value: 10},
		{Label: "2025-03-06", Value: 10},
		{Label: "2025-03-07", Value: 10},
		{Label: "2025-03-08", Value: 12},
		{Label: "2025-03-09", Value: 30},
	}
}

func steadySeries() analytics.Series {
	return analytics.Series{
		{Label: "2025-03-06", Value: 100},
		{Label: "2025-03-07", Value: 102},
		{Label: "2025-03-08", Value: 98},
		{Label: "2025-03-09", Value: 101},
	}
}

func TestProcessBucketPersistsAndAlerts(t *testing.T) {
	src := &fakeSource{series: map[string]analytics.Series{
		"registrations": spikeSeries(),
		"page_views":    steadySeries(),
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, src, store, store, notifier, zerolog.Nop())
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))

	assert.Len(t, store.snapshots, 2)
	assert.True(t, store.unlocked, "advisory lock should be released")

	require.Len(t, store.alerts, 1)
	assert.Equal(t, "registrations", store.alerts[0].SeriesKey)
	assert.Equal(t, "spike", store.alerts[0].Direction)

	require.Len(t, notifier.notes, 1)
	note := notifier.notes[0]
	assert.Equal(t, "2025-03-09", note.Label)
	assert.Equal(t, "30", note.Value.String())
	assert.Equal(t, "8", note.ExpectedMin.String())
	assert.Equal(t, "12", note.ExpectedMax.String())
	assert.Equal(t, []string{"telegram"}, note.Channels)
}

func TestProcessBucketCooldownSuppressesAlert(t *testing.T) {
	src := &fakeSource{series: map[string]analytics.Series{"registrations": spikeSeries()}}
	store := &fakeStore{lastAlert: map[string]time.Time{}}
	notifier := &fakeNotifier{}

	cfg := testConfig()
	cfg.Analytics.Series = []string{"registrations"}
	svc := New(cfg, nil, src, store, store, notifier, zerolog.Nop())
	now := testBucket.Add(time.Hour)
	svc.now = func() time.Time { return now }

	store.lastAlert["registrations"] = now.Add(-time.Hour)
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	assert.Empty(t, notifier.notes)
	assert.Len(t, store.snapshots, 1)

	store.lastAlert["registrations"] = now.Add(-7 * time.Hour)
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	assert.Len(t, notifier.notes, 1)
}

func TestProcessBucketCountsFailures(t *testing.T) {
	src := &fakeSource{
		series: map[string]analytics.Series{"page_views": steadySeries()},
		fail:   map[string]error{"registrations": errors.New("connection refused")},
	}
	store := &fakeStore{}

	svc := New(testConfig(), nil, src, store, store, nil, zerolog.Nop())
	err := svc.ProcessBucket(context.Background(), testBucket)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 series failed")
	assert.Contains(t, err.Error(), "connection refused")
	require.Len(t, store.snapshots, 1)
	assert.Equal(t, "page_views", store.snapshots[0].SeriesKey)
}

func TestProcessBucketSkipsWhenLockHeld(t *testing.T) {
	src := &fakeSource{series: map[string]analytics.Series{"registrations": spikeSeries()}}
	store := &fakeStore{lockHeld: true}

	svc := New(testConfig(), nil, src, store, store, &fakeNotifier{}, zerolog.Nop())
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	assert.Empty(t, store.snapshots)
}

func TestProcessBucketSkipsEmptySeries(t *testing.T) {
	src := &fakeSource{series: map[string]analytics.Series{}}
	store := &fakeStore{}

	svc := New(testConfig(), nil, src, store, store, nil, zerolog.Nop())
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	assert.Empty(t, store.snapshots)
}

func TestProcessBucketPrunesAlertHistory(t *testing.T) {
	src := &fakeSource{series: map[string]analytics.Series{"page_views": steadySeries()}}
	store := &fakeStore{}

	cfg := testConfig()
	cfg.Analytics.Series = []string{"page_views"}
	cfg.Alerting.Retention = 48 * time.Hour
	svc := New(cfg, nil, src, store, store, nil, zerolog.Nop())
	now := testBucket.Add(time.Hour)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	require.Len(t, store.prunedAt, 1)
	assert.Equal(t, now.Add(-48*time.Hour), store.prunedAt[0])

	cfg.Alerting.Retention = 0
	svc = New(cfg, nil, src, store, store, nil, zerolog.Nop())
	require.NoError(t, svc.ProcessBucket(context.Background(), testBucket))
	assert.Len(t, store.prunedAt, 1, "zero retention keeps history")
}

func TestCoveredBuckets(t *testing.T) {
	next := testBucket.Add(time.Hour)
	store := &fakeStore{existing: []storage.Snapshot{
		{SeriesKey: "registrations", Bucket: testBucket},
		{SeriesKey: "page_views", Bucket: testBucket},
		{SeriesKey: "registrations", Bucket: next},
		{SeriesKey: "retired", Bucket: next},
		{SeriesKey: "page_views", Bucket: next.Add(time.Hour)},
	}}

	covered, err := CoveredBuckets(context.Background(), store, []string{"registrations", "page_views"}, testBucket, next.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[time.Time]bool{testBucket: true}, covered)
}

func TestRunRequiresScheduler(t *testing.T) {
	svc := New(testConfig(), nil, &fakeSource{}, nil, nil, nil, zerolog.Nop())
	assert.Error(t, svc.Run(context.Background()))
}
