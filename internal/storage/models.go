package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the persisted analytics result of one series for one refresh bucket.
type Snapshot struct {
	ID            uuid.UUID
	SeriesKey     string
	Bucket        time.Time
	LatestValue   decimal.Decimal
	Direction     string
	Strength      decimal.Decimal
	ChangeRatePct decimal.Decimal
	NextForecast  decimal.Decimal
	ZScore        decimal.Decimal
	IsAnomaly     bool
	ExpectedMin   decimal.Decimal
	ExpectedMax   decimal.Decimal
	Forecast      json.RawMessage
	CreatedAt     time.Time
}

// AlertRecord captures an emitted anomaly alert for cooldown checks and auditing.
type AlertRecord struct {
	ID        int64
	SeriesKey string
	Bucket    time.Time
	Value     decimal.Decimal
	ZScore    decimal.Decimal
	Threshold decimal.Decimal
	Direction string
	Channels  []string
	CreatedAt time.Time
}
