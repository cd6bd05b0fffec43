package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"event-analytics/internal/analytics"
)

const restPathPrefix = "/rest/v1/"

// RESTOptions parameterise the Supabase PostgREST source.
type RESTOptions struct {
	BaseURL     string
	APIKey      string
	SeriesTable string
	FunnelTable string
	Timeout     time.Duration
	UserAgent   string
}

// REST reads metric series and funnel counts through Supabase's PostgREST API.
type REST struct {
	opts    RESTOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewREST constructs a REST source.
func NewREST(opts RESTOptions, logger zerolog.Logger) *REST {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.SeriesTable == "" {
		opts.SeriesTable = "metric_points"
	}
	if opts.FunnelTable == "" {
		opts.FunnelTable = "funnel_stage_counts"
	}

	return &REST{
		opts:    opts,
		logger:  logger.With().Str("component", "rest_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type seriesRow struct {
	Label    string          `json:"label"`
	Value    decimal.Decimal `json:"value"`
	BucketTS time.Time       `json:"bucket_ts"`
}

type funnelRow struct {
	StageID  string          `json:"stage_id"`
	Count    decimal.Decimal `json:"count"`
	Position int             `json:"position"`
}

// FetchSeries queries the newest limit rows before the cut-off and returns them oldest first.
func (r *REST) FetchSeries(ctx context.Context, key string, before time.Time, limit int) (analytics.Series, error) {
	if r.baseURL == "" || r.opts.APIKey == "" {
		return nil, errors.New("supabase url and api key required")
	}
	if key == "" {
		return nil, errors.New("series key required")
	}

	query := url.Values{}
	query.Set("select", "label,value,bucket_ts")
	query.Set("series_key", "eq."+key)
	query.Set("bucket_ts", "lt."+before.UTC().Format(time.RFC3339))
	query.Set("order", "bucket_ts.desc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []seriesRow
	if err := r.get(ctx, r.opts.SeriesTable, query, &rows); err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", key, err)
	}

	series := make(analytics.Series, len(rows))
	for i, row := range rows {
		label := row.Label
		if label == "" && !row.BucketTS.IsZero() {
			label = row.BucketTS.UTC().Format(analytics.DefaultLabelLayout)
		}
		// rows arrive newest first
		series[len(rows)-1-i] = analytics.TimeSeriesPoint{
			Label: label,
			Value: row.Value.InexactFloat64(),
		}
	}

	r.logger.Debug().Str("series", key).Int("points", len(series)).Msg("series fetched")
	return series, nil
}

// FetchFunnel queries the stage counts of an event ordered by position.
func (r *REST) FetchFunnel(ctx context.Context, eventID string) ([]analytics.StageCount, error) {
	if r.baseURL == "" || r.opts.APIKey == "" {
		return nil, errors.New("supabase url and api key required")
	}

	query := url.Values{}
	query.Set("select", "stage_id,count,position")
	query.Set("event_id", "eq."+eventID)
	query.Set("order", "position.asc")

	var rows []funnelRow
	if err := r.get(ctx, r.opts.FunnelTable, query, &rows); err != nil {
		return nil, fmt.Errorf("fetch funnel %s: %w", eventID, err)
	}

	stages := make([]analytics.StageCount, len(rows))
	for i, row := range rows {
		stages[i] = analytics.StageCount{StageID: row.StageID, Count: row.Count.InexactFloat64()}
	}
	return stages, nil
}

func (r *REST) get(ctx context.Context, table string, query url.Values, out any) error {
	endpoint := r.baseURL + restPathPrefix + table + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.opts.APIKey)
	req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "eventpulse/1.0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		msg := apiErr.Message
		if apiErr.Code != "" {
			msg = apiErr.Code + ": " + msg
		}
		if apiErr.Details != "" {
			msg += " (" + apiErr.Details + ")"
		}
		return fmt.Errorf("supabase api error (%d): %s", status, msg)
	}
	if len(payload) > 0 {
		return fmt.Errorf("supabase api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("supabase api error (%d)", status)
}

var _ SeriesSource = (*REST)(nil)
var _ FunnelSource = (*REST)(nil)
