package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"event-analytics/internal/analytics"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestRESTFetchMissingConfig(t *testing.T) {
	r := NewREST(RESTOptions{}, noopLogger())
	if _, err := r.FetchSeries(context.Background(), "registrations", time.Now(), 10); err == nil {
		t.Fatal("expected error without url and api key")
	}

	r = NewREST(RESTOptions{BaseURL: "http://localhost", APIKey: "k"}, noopLogger())
	if _, err := r.FetchSeries(context.Background(), "", time.Now(), 10); err == nil {
		t.Fatal("expected error without series key")
	}
}

func TestRESTFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "42P01",
			"message": `relation "public.metric_points" does not exist`,
		})
	}))
	defer srv.Close()

	r := NewREST(RESTOptions{BaseURL: srv.URL, APIKey: "anon", Timeout: time.Second}, noopLogger())

	_, err := r.FetchSeries(context.Background(), "registrations", time.Now(), 10)
	if err == nil {
		t.Fatal("expected error for HTTP 400")
	}
	if !strings.Contains(err.Error(), "42P01") {
		t.Fatalf("error should carry the PostgREST code: %v", err)
	}
}

func TestRESTFetchSeriesSuccess(t *testing.T) {
	before := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/metric_points" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer anon" {
			t.Fatalf("missing auth headers: %v", r.Header)
		}
		q := r.URL.Query()
		if q.Get("series_key") != "eq.registrations" {
			t.Fatalf("unexpected series filter %q", q.Get("series_key"))
		}
		if q.Get("bucket_ts") != "lt.2025-03-10T00:00:00Z" {
			t.Fatalf("unexpected cut-off %q", q.Get("bucket_ts"))
		}
		if q.Get("order") != "bucket_ts.desc" || q.Get("limit") != "3" {
			t.Fatalf("unexpected order/limit %v", q)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"label":"2025-03-09","value":34,"bucket_ts":"2025-03-09T00:00:00Z"},
			{"label":"2025-03-08","value":"21.5","bucket_ts":"2025-03-08T00:00:00Z"},
			{"label":"","value":12,"bucket_ts":"2025-03-07T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	r := NewREST(RESTOptions{BaseURL: srv.URL + "/", APIKey: "anon", Timeout: time.Second}, noopLogger())

	series, err := r.FetchSeries(context.Background(), "registrations", before, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := analytics.Series{
		{Label: "2025-03-07", Value: 12},
		{Label: "2025-03-08", Value: 21.5},
		{Label: "2025-03-09", Value: 34},
	}
	if len(series) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(series))
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("point %d: expected %+v, got %+v", i, want[i], series[i])
		}
	}
}

func TestRESTFetchFunnel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/funnel_stage_counts" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("event_id") != "eq.hackathon-2025" {
			t.Fatalf("unexpected event filter %q", r.URL.Query().Get("event_id"))
		}
		_, _ = w.Write([]byte(`[
			{"stage_id":"views","count":1000,"position":0},
			{"stage_id":"registration","count":120,"position":1}
		]`))
	}))
	defer srv.Close()

	r := NewREST(RESTOptions{BaseURL: srv.URL, APIKey: "anon"}, noopLogger())
	stages, err := r.FetchFunnel(context.Background(), "hackathon-2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 || stages[1].StageID != "registration" || stages[1].Count != 120 {
		t.Fatalf("unexpected stages: %+v", stages)
	}
}
