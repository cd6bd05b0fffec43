package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification describes an anomalous dashboard metric.
type Notification struct {
	SeriesKey   string
	Bucket      time.Time
	Label       string
	Value       decimal.Decimal
	ZScore      decimal.Decimal
	Threshold   decimal.Decimal
	ExpectedMin decimal.Decimal
	ExpectedMax decimal.Decimal
	// Kind is "spike" or "drop".
	Kind      string
	Trend     string
	Channels  []string
	Simulated bool
}

// Notifier delivers a notification to one channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Multi fans a notification out to the notifiers registered for its channels.
type Multi struct {
	notifiers map[string]Notifier
	logger    zerolog.Logger
}

// NewMulti builds an empty fan-out notifier.
func NewMulti(logger zerolog.Logger) *Multi {
	return &Multi{
		notifiers: make(map[string]Notifier),
		logger:    logger.With().Str("component", "alert_fanout").Logger(),
	}
}

// Register binds a notifier to a channel name.
func (m *Multi) Register(channel string, notifier Notifier) {
	m.notifiers[strings.ToLower(channel)] = notifier
}

// Len reports how many channels are registered.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Notify delivers to every requested channel and joins the failures.
// Channels without a registered notifier are skipped with a warning.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	delivered := 0
	for _, channel := range note.Channels {
		notifier, ok := m.notifiers[strings.ToLower(channel)]
		if !ok {
			m.logger.Warn().Str("channel", channel).Msg("no notifier configured for channel")
			continue
		}
		if err := notifier.Notify(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
			continue
		}
		delivered++
	}

	if delivered == 0 && len(errs) == 0 {
		m.logger.Warn().Str("series", note.SeriesKey).Msg("alert not delivered to any channel")
	}
	return errors.Join(errs...)
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Simulated {
		builder.WriteString("[EventPulse Alert - simulated]\n")
	} else {
		builder.WriteString("[EventPulse Alert]\n")
	}
	builder.WriteString(fmt.Sprintf("Metric: %s\n", note.SeriesKey))
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	if note.Label != "" {
		builder.WriteString(fmt.Sprintf("Point: %s\n", note.Label))
	}
	builder.WriteString(fmt.Sprintf("Value: %s (%s)\n", note.Value.String(), note.Kind))
	builder.WriteString(fmt.Sprintf("Expected: %s to %s\n", note.ExpectedMin.String(), note.ExpectedMax.String()))
	builder.WriteString(fmt.Sprintf("Z-score: %s (threshold %s)\n", note.ZScore.StringFixed(2), note.Threshold.StringFixed(2)))
	if note.Trend != "" {
		builder.WriteString(fmt.Sprintf("Trend: %s\n", note.Trend))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

var _ Notifier = (*Multi)(nil)
