// Package redisstore is the durable record store of the history cache:
// upsert, range query and coverage over (key, date) -> payload rows,
// backed by Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/finscope/histcache/internal/observability"
	"github.com/finscope/histcache/internal/series"
)

const defaultCoverageCacheSize = 1024

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithMinIdleConns(n int) Option {
	return func(o *redis.Options) { o.MinIdleConns = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Store struct {
	rdb *redis.Client

	// cov memoizes coverage windows so FullHit paths skip Redis
	// entirely. Invalidated on upsert; callers serialize per key (the
	// facade holds a per-key lock around read-classify-fill), so the
	// memo can never run ahead of the index for a key being written.
	cov *lru.Cache[series.Key, series.Coverage]
}

// New connects and pings Redis. covCacheSize bounds the in-process
// coverage memo; <= 0 uses the default.
func New(ctx context.Context, addr string, covCacheSize int, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	if covCacheSize <= 0 {
		covCacheSize = defaultCoverageCacheSize
	}
	cov, err := lru.New[series.Key, series.Coverage](covCacheSize)
	if err != nil {
		return nil, fmt.Errorf("coverage cache: %w", err)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err = rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, cov: cov}, nil
}

// Upsert writes all records in one MULTI/EXEC transaction: either every
// date becomes queryable or none does. Records must share key and carry
// no duplicate dates within the call; re-upserting a date from an
// earlier call overwrites its payload.
func (s *Store) Upsert(ctx context.Context, key series.Key, recs []series.Record) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	zs := make([]redis.Z, 0, len(recs))
	rows := make(map[string]any, len(recs))
	seen := make(map[int64]struct{}, len(recs))
	for _, r := range recs {
		if len(r.Fields) == 0 {
			return 0, fmt.Errorf("upsert %s: empty payload for %s", key, r.Date)
		}
		ep := r.Date.Epoch()
		if _, dup := seen[ep]; dup {
			return 0, fmt.Errorf("upsert %s: duplicate date %s in one call", key, r.Date)
		}
		seen[ep] = struct{}{}
		d := r.Date.String()
		zs = append(zs, redis.Z{Score: float64(ep), Member: d})
		rows[d] = string(r.Fields)
	}

	start := time.Now()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, indexKey(key), zs...)
		p.HSet(ctx, rowsKey(key), rows)
		return nil
	})
	observability.ObserveStoreOp("upsert", err, time.Since(start).Seconds())
	if err != nil {
		return 0, &series.StorageError{Op: "upsert", Err: err}
	}

	// The write may have widened the span or changed the row count, so
	// the memo is stale either way; next Coverage re-reads Redis truth.
	s.cov.Remove(key)
	return len(recs), nil
}

// Query returns records with date in [start, end] inclusive, ascending.
// An empty result for a valid range is nil, not an error.
func (s *Store) Query(ctx context.Context, key series.Key, start, end series.Date) ([]series.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s after end %s", series.ErrInvalidRange, start, end)
	}

	t0 := time.Now()
	dates, err := s.rdb.ZRangeByScore(ctx, indexKey(key), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.Epoch(), 10),
		Max: strconv.FormatInt(end.Epoch(), 10),
	}).Result()
	if err != nil {
		observability.ObserveStoreOp("query", err, time.Since(t0).Seconds())
		return nil, &series.StorageError{Op: "query", Err: err}
	}
	if len(dates) == 0 {
		observability.ObserveStoreOp("query", nil, time.Since(t0).Seconds())
		return nil, nil
	}

	vals, err := s.rdb.HMGet(ctx, rowsKey(key), dates...).Result()
	observability.ObserveStoreOp("query", err, time.Since(t0).Seconds())
	if err != nil {
		return nil, &series.StorageError{Op: "query", Err: err}
	}

	out := make([]series.Record, 0, len(dates))
	for i, ds := range dates {
		d, perr := series.ParseDate(ds)
		if perr != nil {
			return nil, &series.StorageError{Op: "query", Err: fmt.Errorf("corrupt index member %q: %w", ds, perr)}
		}
		raw, ok := vals[i].(string)
		if !ok || raw == "" {
			// Index and payload are written in one transaction, so a
			// missing row means the store is corrupt, not empty.
			return nil, &series.StorageError{Op: "query", Err: fmt.Errorf("index date %s has no payload", ds)}
		}
		out = append(out, series.Record{Date: d, Fields: json.RawMessage(raw)})
	}
	return out, nil
}

// Coverage returns the [min, max] span and row count stored for key, or
// nil when the key has never been written.
func (s *Store) Coverage(ctx context.Context, key series.Key) (*series.Coverage, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if c, ok := s.cov.Get(key); ok {
		cc := c
		return &cc, nil
	}

	var (
		firstCmd *redis.StringSliceCmd
		lastCmd  *redis.StringSliceCmd
		cardCmd  *redis.IntCmd
	)
	t0 := time.Now()
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ik := indexKey(key)
		firstCmd = p.ZRange(ctx, ik, 0, 0)
		lastCmd = p.ZRange(ctx, ik, -1, -1)
		cardCmd = p.ZCard(ctx, ik)
		return nil
	})
	observability.ObserveStoreOp("coverage", err, time.Since(t0).Seconds())
	if err != nil {
		return nil, &series.StorageError{Op: "coverage", Err: err}
	}
	if cardCmd.Val() == 0 {
		return nil, nil
	}

	first, last := firstCmd.Val(), lastCmd.Val()
	if len(first) != 1 || len(last) != 1 {
		return nil, &series.StorageError{Op: "coverage", Err: fmt.Errorf("index for %s lost its bounds", key)}
	}
	minD, err := series.ParseDate(first[0])
	if err != nil {
		return nil, &series.StorageError{Op: "coverage", Err: err}
	}
	maxD, err := series.ParseDate(last[0])
	if err != nil {
		return nil, &series.StorageError{Op: "coverage", Err: err}
	}

	c := series.Coverage{Min: minD, Max: maxD, Rows: cardCmd.Val()}
	s.cov.Add(key, c)
	cc := c
	return &cc, nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
