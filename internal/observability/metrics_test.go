package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetrics_Registered(t *testing.T) {
	IncRangeOutcome("full_hit", "indicators")
	IncRangeOutcome("left_gap", "indicators")
	ObserveFetch(nil, 0.05)
	ObserveFetch(errors.New("boom"), 0.05)
	ObserveStoreOp("upsert", nil, 0.001)
	AddDroppedRows(2)
	ObserveHTTP(http.MethodGet, "/v1/history", http.StatusOK, 0.01)
	ExposeBuildInfo("test")

	body := scrape(t)
	for _, want := range []string{
		`histcache_range_requests_total{dataset="indicators",outcome="full_hit"}`,
		`histcache_upstream_fetch_seconds_count{status="error"}`,
		`histcache_store_op_seconds_count{op="upsert",status="ok"}`,
		"histcache_dropped_rows_total",
		`histcache_http_requests_total{method="GET",route="/v1/history",status="200"}`,
		`histcache_build_info{version="test"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}
