package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"event-analytics/internal/analytics"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listSeriesBeforeSQL = `SELECT
        label,
        value::text,
        bucket_ts
    FROM metric_points
    WHERE series_key = $1
      AND bucket_ts < $2
    ORDER BY bucket_ts DESC
    LIMIT $3;`

	listFunnelStagesSQL = `SELECT
        stage_id,
        count
    FROM funnel_stage_counts
    WHERE event_id = $1
    ORDER BY position;`

	upsertSnapshotSQL = `INSERT INTO analytics_snapshots (
        id,
        series_key,
        bucket_ts,
        latest_value,
        direction,
        strength,
        change_rate_pct,
        next_forecast,
        z_score,
        is_anomaly,
        expected_min,
        expected_max,
        forecast
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (series_key, bucket_ts) DO UPDATE
    SET
        latest_value    = EXCLUDED.latest_value,
        direction       = EXCLUDED.direction,
        strength        = EXCLUDED.strength,
        change_rate_pct = EXCLUDED.change_rate_pct,
        next_forecast   = EXCLUDED.next_forecast,
        z_score         = EXCLUDED.z_score,
        is_anomaly      = EXCLUDED.is_anomaly,
        expected_min    = EXCLUDED.expected_min,
        expected_max    = EXCLUDED.expected_max,
        forecast        = EXCLUDED.forecast;`

	snapshotColumns = `id,
        series_key,
        bucket_ts,
        latest_value::text,
        direction,
        strength::text,
        change_rate_pct::text,
        next_forecast::text,
        z_score::text,
        is_anomaly,
        expected_min::text,
        expected_max::text,
        forecast,
        created_at`

	listRecentSnapshotsSQL = `SELECT ` + snapshotColumns + `
    FROM analytics_snapshots
    WHERE ($2 = '' OR series_key = $2)
    ORDER BY bucket_ts DESC, series_key
    LIMIT $1;`

	listSnapshotsBetweenSQL = `SELECT ` + snapshotColumns + `
    FROM analytics_snapshots
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts, series_key;`

	insertAlertSQL = `INSERT INTO anomaly_alerts (
        series_key,
        bucket_ts,
        value,
        z_score,
        threshold,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (series_key, bucket_ts) DO UPDATE
    SET value     = EXCLUDED.value,
        z_score   = EXCLUDED.z_score,
        threshold = EXCLUDED.threshold,
        direction = EXCLUDED.direction,
        channels  = EXCLUDED.channels
    RETURNING id, series_key, bucket_ts, value::text, z_score::text, threshold::text, direction, channels, created_at;`

	lastAlertAtSQL = `SELECT MAX(created_at) FROM anomaly_alerts WHERE series_key = $1;`

	deleteAlertsBeforeSQL = `DELETE FROM anomaly_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// MetricStore reads dashboard series and funnel counts.
type MetricStore interface {
	FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error)
	FetchFunnel(ctx context.Context, eventID string) ([]analytics.StageCount, error)
}

// SnapshotStore defines operations for analytics snapshot persistence.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot Snapshot) error
	ListRecentSnapshots(ctx context.Context, seriesKey string, limit int) ([]Snapshot, error)
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error)
}

// AlertStore defines operations for alert auditing and cooldowns.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LastAlertAt(ctx context.Context, seriesKey string) (time.Time, bool, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to metric points, snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the session lock also drops when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// FetchSeries returns up to limit points of a series recorded before the cut-off, oldest first.
func (s *Store) FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSeriesBeforeSQL, key, before, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list series %s: %w", key, queryErr)
	}
	defer rows.Close()

	series := make(analytics.Series, 0, limit)
	for rows.Next() {
		var (
			label    *string
			valueStr string
			bucket   time.Time
		)
		if err := rows.Scan(&label, &valueStr, &bucket); err != nil {
			return nil, err
		}
		value, convErr := decimal.NewFromString(valueStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse value of %s at %s: %w", key, bucket.Format(time.RFC3339), convErr)
		}
		point := analytics.TimeSeriesPoint{Value: value.InexactFloat64()}
		if label != nil && *label != "" {
			point.Label = *label
		} else {
			point.Label = bucket.UTC().Format(analytics.DefaultLabelLayout)
		}
		series = append(series, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series, nil
}

// FetchFunnel returns the stage counts of an event in pipeline order.
func (s *Store) FetchFunnel(ctx context.Context, eventID string) ([]analytics.StageCount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFunnelStagesSQL, eventID)
	if queryErr != nil {
		return nil, fmt.Errorf("list funnel stages: %w", queryErr)
	}
	defer rows.Close()

	stages := make([]analytics.StageCount, 0)
	for rows.Next() {
		var (
			stageID string
			count   int64
		)
		if err := rows.Scan(&stageID, &count); err != nil {
			return nil, err
		}
		stages = append(stages, analytics.StageCount{StageID: stageID, Count: float64(count)})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stages, nil
}

// UpsertSnapshot persists or updates the snapshot of a series for its bucket.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	id := snapshot.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	forecast := []byte(snapshot.Forecast)
	if len(forecast) == 0 {
		forecast = []byte("[]")
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		id,
		snapshot.SeriesKey,
		snapshot.Bucket,
		snapshot.LatestValue.String(),
		snapshot.Direction,
		snapshot.Strength.String(),
		snapshot.ChangeRatePct.String(),
		snapshot.NextForecast.String(),
		snapshot.ZScore.String(),
		snapshot.IsAnomaly,
		snapshot.ExpectedMin.String(),
		snapshot.ExpectedMax.String(),
		forecast,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// ListRecentSnapshots lists the newest snapshots, optionally restricted to one series.
func (s *Store) ListRecentSnapshots(ctx context.Context, seriesKey string, limit int) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit, seriesKey)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// ListSnapshotsBetween lists snapshots within a bucket window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SeriesKey,
		alert.Bucket,
		alert.Value.String(),
		alert.ZScore.String(),
		alert.Threshold.String(),
		alert.Direction,
		alert.Channels,
	)

	var (
		rec                          AlertRecord
		valueStr, zStr, thresholdStr string
	)
	if scanErr := row.Scan(
		&rec.ID,
		&rec.SeriesKey,
		&rec.Bucket,
		&valueStr,
		&zStr,
		&thresholdStr,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}

	decimals, err := parseDecimals(map[string]string{
		"value":     valueStr,
		"z_score":   zStr,
		"threshold": thresholdStr,
	})
	if err != nil {
		return AlertRecord{}, err
	}
	rec.Value = decimals["value"]
	rec.ZScore = decimals["z_score"]
	rec.Threshold = decimals["threshold"]

	return rec, nil
}

// LastAlertAt reports when the series last alerted. The bool is false when it never did.
func (s *Store) LastAlertAt(ctx context.Context, seriesKey string) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}

	var last *time.Time
	if scanErr := pool.QueryRow(ctx, lastAlertAtSQL, seriesKey).Scan(&last); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last alert at: %w", scanErr)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectSnapshots(rows pgx.Rows) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

func scanSnapshot(rows pgx.Rows) (Snapshot, error) {
	var (
		snapshot  Snapshot
		latest    string
		strength  string
		change    string
		next      string
		zScore    string
		expectMin string
		expectMax string
		forecast  []byte
	)

	if err := rows.Scan(
		&snapshot.ID,
		&snapshot.SeriesKey,
		&snapshot.Bucket,
		&latest,
		&snapshot.Direction,
		&strength,
		&change,
		&next,
		&zScore,
		&snapshot.IsAnomaly,
		&expectMin,
		&expectMax,
		&forecast,
		&snapshot.CreatedAt,
	); err != nil {
		return Snapshot{}, err
	}

	decimals, err := parseDecimals(map[string]string{
		"latest_value":    latest,
		"strength":        strength,
		"change_rate_pct": change,
		"next_forecast":   next,
		"z_score":         zScore,
		"expected_min":    expectMin,
		"expected_max":    expectMax,
	})
	if err != nil {
		return Snapshot{}, err
	}

	snapshot.LatestValue = decimals["latest_value"]
	snapshot.Strength = decimals["strength"]
	snapshot.ChangeRatePct = decimals["change_rate_pct"]
	snapshot.NextForecast = decimals["next_forecast"]
	snapshot.ZScore = decimals["z_score"]
	snapshot.ExpectedMin = decimals["expected_min"]
	snapshot.ExpectedMax = decimals["expected_max"]
	snapshot.Forecast = json.RawMessage(forecast)

	return snapshot, nil
}

func parseDecimals(columns map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(columns))
	for name, raw := range columns {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}

// SnapshotFromReport converts an analytics report into its persisted form.
func SnapshotFromReport(seriesKey string, bucket time.Time, report analytics.Report) (Snapshot, error) {
	forecast, err := json.Marshal(report.Forecast)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode forecast: %w", err)
	}

	snapshot := Snapshot{
		ID:            uuid.New(),
		SeriesKey:     seriesKey,
		Bucket:        bucket,
		Direction:     string(report.Trend.Direction),
		Strength:      decimal.NewFromFloat(report.Trend.Strength).Round(4),
		ChangeRatePct: decimal.NewFromFloat(report.Trend.ChangeRatePercent).Round(4),
		NextForecast:  decimal.NewFromFloat(report.Trend.NextPeriodForecast),
		ZScore:        decimal.NewFromFloat(report.Anomaly.ZScore).Round(4),
		IsAnomaly:     report.Anomaly.IsAnomaly,
		ExpectedMin:   decimal.NewFromFloat(report.Anomaly.ExpectedMin),
		ExpectedMax:   decimal.NewFromFloat(report.Anomaly.ExpectedMax),
		Forecast:      forecast,
	}
	if report.Latest != nil {
		snapshot.LatestValue = decimal.NewFromFloat(report.Latest.Value)
	}
	return snapshot, nil
}

var _ MetricStore = (*Store)(nil)
var _ SnapshotStore = (*Store)(nil)
var _ AlertStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
