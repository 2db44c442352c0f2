package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finscope/histcache/internal/series"
)

var testKey = series.Key{Symbol: "sh600519", Dataset: "daily"}

func dates(t *testing.T) (series.Date, series.Date) {
	t.Helper()
	start, err := series.ParseDate("2024-02-01")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	end, err := series.ParseDate("2024-02-05")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	return start, end
}

func TestFetch_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "sh600519" || q.Get("dataset") != "daily" {
			t.Errorf("key params = %v", q)
		}
		if q.Get("start") != "2024-02-01" || q.Get("end") != "2024-02-05" {
			t.Errorf("range params = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date":"2024-02-01","fields":{"close":1688.000001,"pe":32.7}},
			{"date":"2024-02-02","fields":{"close":1690.5,"pe":32.8}}
		]`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start, end := dates(t)
	rows, err := c.Fetch(context.Background(), testKey, start, end)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Date.String() != "2024-02-01" {
		t.Fatalf("row 0 date = %s", rows[0].Date)
	}
	if string(rows[0].Fields) != `{"close":1688.000001,"pe":32.7}` {
		t.Fatalf("fields not raw: %s", rows[0].Fields)
	}
}

func TestFetch_UpstreamStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start, end := dates(t)
	if _, err := c.Fetch(context.Background(), testKey, start, end); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestFetch_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start, end := dates(t)
	if _, err := c.Fetch(context.Background(), testKey, start, end); err == nil {
		t.Fatalf("expected error on malformed body")
	}
}

func TestFetch_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start, end := dates(t)
	if _, err := c.Fetch(ctx, testKey, start, end); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", time.Second); err == nil {
		t.Fatalf("empty base url accepted")
	}
	if _, err := New("://bad", time.Second); err == nil {
		t.Fatalf("unparseable url accepted")
	}
}
