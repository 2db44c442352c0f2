// Package fill is the fetch orchestrator: it executes a gap plan against
// the upstream provider, normalizes what comes back and hands the result
// to the record store in one atomic upsert.
package fill

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/finscope/histcache/internal/gap"
	"github.com/finscope/histcache/internal/observability"
	"github.com/finscope/histcache/internal/series"
	"github.com/finscope/histcache/internal/upstream"
)

// Store is the slice of the record store the filler needs.
type Store interface {
	Upsert(ctx context.Context, key series.Key, recs []series.Record) (int, error)
}

type Filler struct {
	fetcher upstream.Fetcher
	store   Store
	log     *slog.Logger
	timeout time.Duration
}

// New wires a filler. timeout bounds each upstream call; <= 0 disables
// the extra deadline (the caller's ctx still applies).
func New(fetcher upstream.Fetcher, store Store, log *slog.Logger, timeout time.Duration) *Filler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Filler{fetcher: fetcher, store: store, log: log, timeout: timeout}
}

// Fill fetches the plan's span and stores the normalized rows. It
// returns the records written. A FullHit plan, or an upstream response
// with no usable rows (non-trading window), writes nothing and is not an
// error. Any upstream failure — including timeout — returns a FetchError
// with the store untouched.
func (f *Filler) Fill(ctx context.Context, key series.Key, plan gap.Plan) ([]series.Record, error) {
	if plan.Kind == gap.FullHit {
		return nil, nil
	}

	fctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	t0 := time.Now()
	rows, err := f.fetcher.Fetch(fctx, key, plan.FetchStart, plan.FetchEnd)
	observability.ObserveFetch(err, time.Since(t0).Seconds())
	if err != nil {
		return nil, &series.FetchError{Err: err}
	}

	recs := f.normalize(ctx, key, plan, rows)
	if len(recs) == 0 {
		f.log.DebugContext(ctx, "fill fetched empty window",
			"key", key.String(),
			"fetch_start", plan.FetchStart.String(),
			"fetch_end", plan.FetchEnd.String())
		return nil, nil
	}

	if _, err := f.store.Upsert(ctx, key, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// normalize dedupes by date (last occurrence wins), drops rows outside
// the fetched bounds with a warning, and sorts ascending. Upstream
// off-by-one quirks degrade to warnings, never failures.
func (f *Filler) normalize(ctx context.Context, key series.Key, plan gap.Plan, rows []upstream.Row) []series.Record {
	byDate := make(map[int64]series.Record, len(rows))
	dropped := 0
	for _, r := range rows {
		if len(r.Fields) == 0 {
			dropped++
			continue
		}
		if r.Date.Before(plan.FetchStart) || r.Date.After(plan.FetchEnd) {
			dropped++
			f.log.WarnContext(ctx, "upstream row outside fetched bounds, dropped",
				"key", key.String(),
				"date", r.Date.String(),
				"fetch_start", plan.FetchStart.String(),
				"fetch_end", plan.FetchEnd.String())
			continue
		}
		byDate[r.Date.Epoch()] = series.Record{Date: r.Date, Fields: r.Fields}
	}
	observability.AddDroppedRows(dropped)

	recs := make([]series.Record, 0, len(byDate))
	for _, rec := range byDate {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs
}
