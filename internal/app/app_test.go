package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-analytics/internal/alerting"
	"event-analytics/internal/analytics"
	"event-analytics/internal/config"
)

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
		Analytics: config.AnalyticsConfig{
			ForecastPeriods:  3,
			AnomalyThreshold: 2.5,
			HistoryLimit:     90,
			Workers:          1,
		},
		Export: config.ExportConfig{MaxDataPoints: 100, ChartWidth: 640, ChartHeight: 360},
	}
	var buf bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &buf
	return a, &buf
}

func TestDownsamplePoints(t *testing.T) {
	points := make(analytics.Series, 10)
	for i := range points {
		points[i] = analytics.TimeSeriesPoint{Label: string(rune('a' + i)), Value: float64(i)}
	}

	got := downsamplePoints(points, 4)
	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].Label)
	assert.Equal(t, "j", got[3].Label)

	assert.Len(t, downsamplePoints(points, 0), 10)
	assert.Equal(t, "j", downsamplePoints(points, 1)[0].Label)
}

func TestWriteSeriesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registrations.csv")
	points := analytics.Series{{Label: "2025-03-01", Value: 15}, {Label: "2025-03-02", Value: 45.5}}
	forecast := []analytics.ForecastPoint{{Label: "2025-03-03", Predicted: 80, ConfidenceLower: 40, ConfidenceUpper: 120}}

	require.NoError(t, writeSeriesCSV(path, points, forecast))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"label", "kind", "value", "confidence_lower", "confidence_upper"}, records[0])
	assert.Equal(t, []string{"2025-03-02", "actual", "45.5", "", ""}, records[2])
	assert.Equal(t, []string{"2025-03-03", "forecast", "80", "40", "120"}, records[3])
}

func TestWriteSeriesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	points := analytics.Series{
		{Label: "2025-03-01", Value: 15},
		{Label: "2025-03-02", Value: 45},
		{Label: "2025-03-03", Value: 98},
	}
	forecast, _, err := analytics.ExtendedForecast(points, 2)
	require.NoError(t, err)

	require.NoError(t, writeSeriesPNG(path, "registrations", points, forecast, chartSize{Width: 640, Height: 360}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "output should be a PNG")

	err = writeSeriesPNG(filepath.Join(t.TempDir(), "single.png"), "x", points[:1], nil, chartSize{})
	assert.Error(t, err)
}

func TestParseStages(t *testing.T) {
	counts, err := ParseStages("views:1000, Registration:120,attendance:90")
	require.NoError(t, err)
	assert.Equal(t, []analytics.StageCount{
		{StageID: "views", Count: 1000},
		{StageID: "registration", Count: 120},
		{StageID: "attendance", Count: 90},
	}, counts)

	for _, bad := range []string{"", "views", "views:-1", ":10", "views:abc"} {
		_, err := ParseStages(bad)
		assert.Error(t, err, bad)
	}
}

func TestFunnelFromStages(t *testing.T) {
	a, buf := testApp(t)
	err := a.Funnel(context.Background(), FunnelOptions{Stages: "views:1000,registration:80", Format: "json"})
	require.NoError(t, err)

	var decoded struct {
		Stages           []analytics.FunnelStageResult `json:"stages"`
		TotalRecoverable float64                       `json:"total_recoverable"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Stages, 2)
	assert.Equal(t, 12.0, decoded.Stages[1].BenchmarkRate)
	assert.Equal(t, 40.0, decoded.TotalRecoverable)
}

func TestFunnelRequiresOneInput(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Funnel(context.Background(), FunnelOptions{}))
	assert.Error(t, a.Funnel(context.Background(), FunnelOptions{Event: "e", Stages: "views:1"}))
}

func TestAnalyzeCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registrations.csv")
	content := "date,registrations\n2025-03-01,15\n2025-03-02,45\n2025-03-03,98\n2025-03-04,156\n2025-03-05,234\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	a, buf := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{CSVPath: path, Periods: 2, Format: "json", Backtest: 1})
	require.NoError(t, err)

	var decoded struct {
		Series   string              `json:"series"`
		Report   analytics.Report    `json:"report"`
		Accuracy *analytics.Accuracy `json:"accuracy"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, path, decoded.Series)
	assert.Equal(t, analytics.DirectionUpward, decoded.Report.Trend.Direction)
	assert.Len(t, decoded.Report.Forecast, 2)
	assert.Equal(t, "2025-03-06", decoded.Report.Forecast[0].Label)
	assert.NotNil(t, decoded.Accuracy)
}

func TestAnalyzeEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registrations-log.csv")
	content := "registered_at\n" +
		"2025-03-01T09:00:00Z\n" +
		"2025-03-02T10:00:00Z\n2025-03-02T11:00:00Z\n" +
		"2025-03-03T08:00:00Z\n2025-03-03T09:00:00Z\n2025-03-03T12:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	a, buf := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{CSVPath: path, Bucket: 24 * time.Hour, Periods: 1, Format: "json"})
	require.NoError(t, err)

	var decoded struct {
		Report analytics.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Report.Points)
	require.NotNil(t, decoded.Report.Latest)
	assert.Equal(t, analytics.TimeSeriesPoint{Label: "2025-03-03", Value: 3}, *decoded.Report.Latest)
	require.Len(t, decoded.Report.Forecast, 1)
	assert.Equal(t, "2025-03-04", decoded.Report.Forecast[0].Label)
}

func TestAnalyzeRejectsNonFiniteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("label,value\nd1,10\nd2,NaN\n"), 0o600))

	a, buf := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{CSVPath: path, Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Empty(t, buf.String())
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Analyze(context.Background(), AnalyzeOptions{}))
	assert.Error(t, a.Analyze(context.Background(), AnalyzeOptions{CSVPath: "x.csv", Format: "xml"}))
	assert.Error(t, a.Analyze(context.Background(), AnalyzeOptions{Series: "registrations", Bucket: time.Hour}))
}

func TestSimulateAlertDispatchesWebhook(t *testing.T) {
	var calls atomic.Int32
	var payload alerting.WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a, buf := testApp(t)
	a.Config.Alerting = config.AlertingConfig{
		Enabled:  true,
		Channels: []string{"webhook"},
		Webhook:  config.WebhookConfig{Enabled: true, URL: srv.URL, Timeout: time.Second},
	}

	opts := SimulateOptions{Series: "registrations", Value: 30, Baseline: []float64{10, 10, 10, 10, 12}}
	require.NoError(t, a.SimulateAlert(context.Background(), opts))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, payload.Simulated)
	assert.Equal(t, "spike", payload.Kind)
	assert.True(t, strings.Contains(buf.String(), "simulated spike alert sent"))

	buf.Reset()
	opts.Value = 11
	require.NoError(t, a.SimulateAlert(context.Background(), opts))
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, buf.String(), "no alert sent")
}

func TestSimulateAlertRequiresChannel(t *testing.T) {
	a, _ := testApp(t)
	a.Config.Alerting.Enabled = true
	assert.Error(t, a.SimulateAlert(context.Background(), SimulateOptions{Series: "x", Value: 1}))
}
