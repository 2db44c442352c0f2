package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/finscope/histcache/internal/cache"
	mylog "github.com/finscope/histcache/internal/logger"
	"github.com/finscope/histcache/internal/observability"
	"github.com/finscope/histcache/internal/series"
)

// RangeQuerier is the cache facade surface the HTTP layer needs.
type RangeQuerier interface {
	QueryRangeOpts(ctx context.Context, key series.Key, start, end series.Date, opts cache.Options) ([]series.Record, error)
}

// handleHistory validates GET /v1/history parameters and serves the
// range from the cache. Status mapping: bad parameters 400, upstream
// failure 502, storage failure 500. A valid range with no trading data
// is 200 with an empty array, never an error.
func handleHistory(logger *slog.Logger, svc RangeQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/v1/history", sw.code, time.Since(t0).Seconds())
		}()

		key, start, end, opts, err := parseHistoryRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := mylog.WithCacheKey(r.Context(), key.String())
		recs, err := svc.QueryRangeOpts(ctx, key, start, end, opts)
		if err != nil {
			code := statusFor(err)
			logger.ErrorContext(ctx, "range query failed",
				"symbol", key.Symbol,
				"dataset", key.Dataset,
				"start", start.String(),
				"end", end.String(),
				"status", code,
				"err", err)
			http.Error(sw, err.Error(), code)
			return
		}
		if recs == nil {
			recs = []series.Record{}
		}

		sw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(sw).Encode(recs); err != nil {
			logger.ErrorContext(ctx, "encode response", "err", err)
		}
	}
}

func statusFor(err error) int {
	var fe *series.FetchError
	switch {
	case errors.Is(err, series.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseHistoryRequest(r *http.Request) (series.Key, series.Date, series.Date, cache.Options, error) {
	q := r.URL.Query()
	key := series.Key{
		Symbol:  strings.TrimSpace(q.Get("symbol")),
		Dataset: strings.TrimSpace(q.Get("dataset")),
	}
	if key.Symbol == "" {
		return series.Key{}, series.Date{}, series.Date{}, cache.Options{}, errors.New("missing required parameter: symbol")
	}
	if key.Dataset == "" {
		return series.Key{}, series.Date{}, series.Date{}, cache.Options{}, errors.New("missing required parameter: dataset")
	}

	start, err := series.ParseDate(q.Get("start"))
	if err != nil {
		return series.Key{}, series.Date{}, series.Date{}, cache.Options{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := series.ParseDate(q.Get("end"))
	if err != nil {
		return series.Key{}, series.Date{}, series.Date{}, cache.Options{}, fmt.Errorf("invalid end: %w", err)
	}

	opts := cache.Options{}
	switch strings.ToLower(strings.TrimSpace(q.Get("refresh"))) {
	case "", "0", "false":
	case "1", "true":
		opts.ForceRefresh = true
	default:
		return series.Key{}, series.Date{}, series.Date{}, cache.Options{}, errors.New("invalid refresh: want true or false")
	}

	return key, start, end, opts, nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
