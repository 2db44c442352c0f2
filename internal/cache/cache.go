// Package cache is the public entry point of the history cache. It
// composes the coverage analyzer, the fetch orchestrator and the record
// store into one QueryRange operation that is single-flight per key.
package cache

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/finscope/histcache/internal/fill"
	"github.com/finscope/histcache/internal/fillevents"
	"github.com/finscope/histcache/internal/gap"
	"github.com/finscope/histcache/internal/observability"
	"github.com/finscope/histcache/internal/series"
)

// Store is the full record-store contract the facade depends on.
type Store interface {
	fill.Store
	Query(ctx context.Context, key series.Key, start, end series.Date) ([]series.Record, error)
	Coverage(ctx context.Context, key series.Key) (*series.Coverage, error)
}

// Filler executes a gap plan; see the fill package.
type Filler interface {
	Fill(ctx context.Context, key series.Key, plan gap.Plan) ([]series.Record, error)
}

type Options struct {
	// ForceRefresh bypasses coverage classification and refetches the
	// whole requested range.
	ForceRefresh bool
}

type Service struct {
	store  Store
	filler Filler
	log    *slog.Logger
	locks  *keyLocks
}

func New(store Store, filler Filler, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:  store,
		filler: filler,
		log:    log,
		locks:  newKeyLocks(),
	}
}

// QueryRange returns the cached records covering [start, end] inclusive,
// fetching whatever part of the range is missing first.
func (s *Service) QueryRange(ctx context.Context, key series.Key, start, end series.Date) ([]series.Record, error) {
	return s.QueryRangeOpts(ctx, key, start, end, Options{})
}

// QueryRangeOpts is QueryRange with options.
//
// For one key the whole read-classify-fetch-store-reread sequence runs
// under that key's lock, so concurrent callers with overlapping ranges
// either wait for the in-flight fill or observe its result; a gap is
// never fetched twice. After any error the stored state is unchanged and
// retrying the identical call is safe.
func (s *Service) QueryRangeOpts(ctx context.Context, key series.Key, start, end series.Date, opts Options) ([]series.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, &rangeError{start: start, end: end}
	}

	mu := s.locks.get(key)
	mu.Lock()
	defer mu.Unlock()

	var (
		plan gap.Plan
		err  error
	)
	if opts.ForceRefresh {
		plan, err = gap.Refresh(start, end)
		if err == nil {
			observability.IncRangeOutcome("forced", key.Dataset)
		}
	} else {
		var cov *series.Coverage
		cov, err = s.store.Coverage(ctx, key)
		if err != nil {
			return nil, err
		}
		plan, err = gap.Classify(cov, start, end)
		if err == nil {
			observability.IncRangeOutcome(plan.Kind.String(), key.Dataset)
		}
	}
	if err != nil {
		return nil, err
	}

	if plan.Kind != gap.FullHit {
		t0 := time.Now()
		written, ferr := s.filler.Fill(ctx, key, plan)
		if ferr != nil {
			return nil, ferr
		}
		s.log.InfoContext(ctx, "range filled",
			"key", key.String(),
			"plan", plan.Kind.String(),
			"fetch_start", plan.FetchStart.String(),
			"fetch_end", plan.FetchEnd.String(),
			"rows", len(written),
			"took", time.Since(t0))
		fillevents.Publish(fillevents.Event{
			Symbol:  key.Symbol,
			Dataset: key.Dataset,
			Start:   plan.FetchStart.String(),
			End:     plan.FetchEnd.String(),
			Plan:    plan.Kind.String(),
			Rows:    len(written),
			TS:      time.Now().UTC(),
		})
	}

	return s.store.Query(ctx, key, start, end)
}

// rangeError keeps the offending bounds while matching
// series.ErrInvalidRange under errors.Is.
type rangeError struct {
	start, end series.Date
}

func (e *rangeError) Error() string {
	return series.ErrInvalidRange.Error() + ": start " + e.start.String() + " after end " + e.end.String()
}

func (e *rangeError) Unwrap() error { return series.ErrInvalidRange }
