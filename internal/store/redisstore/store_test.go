package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/finscope/histcache/internal/series"
)

// creates a store connected to miniredis for testing
func newMini(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	s, err := New(ctx, mr.Addr(), 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(d int) series.Date { return series.NewDate(2024, time.June, d) }

func rec(d int, px float64) series.Record {
	return series.Record{
		Date:   day(d),
		Fields: json.RawMessage(fmt.Sprintf(`{"close":%v,"volume":1200}`, px)),
	}
}

var testKey = series.Key{Symbol: "AAPL", Dataset: "indicators"}

func TestUpsertQuery_RoundTrip(t *testing.T) {
	s := newMini(t)
	ctx := context.Background()

	in := []series.Record{rec(3, 10.5), rec(4, 11.25), rec(5, 9.875)}
	n, err := s.Upsert(ctx, testKey, in)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 3 {
		t.Fatalf("Upsert count = %d, want 3", n)
	}

	out, err := s.Query(ctx, testKey, day(1), day(10))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Query size = %d, want 3", len(out))
	}
	for i, r := range out {
		if !r.Date.Equal(in[i].Date) {
			t.Fatalf("row %d date = %s, want %s", i, r.Date, in[i].Date)
		}
		if string(r.Fields) != string(in[i].Fields) {
			t.Fatalf("row %d payload = %s, want %s", i, r.Fields, in[i].Fields)
		}
	}
}

func TestQuery_InclusiveBoundsAndOrder(t *testing.T) {
	s := newMini(t)
	ctx := context.Background()

	// insert out of order across two calls
	if _, err := s.Upsert(ctx, testKey, []series.Record{rec(7, 2), rec(5, 1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, testKey, []series.Record{rec(6, 3)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	out, err := s.Query(ctx, testKey, day(5), day(6))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 2 || !out[0].Date.Equal(day(5)) || !out[1].Date.Equal(day(6)) {
		t.Fatalf("unexpected rows: %+v", out)
	}
}

func TestQuery_EmptyIsNotAnError(t *testing.T) {
	s := newMini(t)
	out, err := s.Query(context.Background(), testKey, day(1), day(2))
	if err != nil {
		t.Fatalf("Query on empty key: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(out))
	}
}

func TestUpsert_OverwriteAcrossCalls(t *testing.T) {
	s := newMini(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, testKey, []series.Record{rec(5, 1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	revised := series.Record{Date: day(5), Fields: json.RawMessage(`{"close":99.999000001}`)}
	if _, err := s.Upsert(ctx, testKey, []series.Record{revised}); err != nil {
		t.Fatalf("Upsert revision: %v", err)
	}

	out, err := s.Query(ctx, testKey, day(5), day(5))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 1 || string(out[0].Fields) != string(revised.Fields) {
		t.Fatalf("revision not applied: %+v", out)
	}

	cov, err := s.Coverage(ctx, testKey)
	if err != nil {
		t.Fatalf("Coverage: %v", err)
	}
	if cov.Rows != 1 {
		t.Fatalf("overwrite duplicated the row: rows = %d", cov.Rows)
	}
}

func TestUpsert_RejectsDuplicateDatesInOneCall(t *testing.T) {
	s := newMini(t)
	if _, err := s.Upsert(context.Background(), testKey, []series.Record{rec(5, 1), rec(5, 2)}); err == nil {
		t.Fatalf("expected error for duplicate date within one call")
	}
}

func TestUpsert_RejectsEmptyPayload(t *testing.T) {
	s := newMini(t)
	bad := series.Record{Date: day(5)}
	if _, err := s.Upsert(context.Background(), testKey, []series.Record{bad}); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestCoverage(t *testing.T) {
	s := newMini(t)
	ctx := context.Background()

	cov, err := s.Coverage(ctx, testKey)
	if err != nil {
		t.Fatalf("Coverage: %v", err)
	}
	if cov != nil {
		t.Fatalf("expected nil coverage for unseen key, got %s", cov)
	}

	if _, err := s.Upsert(ctx, testKey, []series.Record{rec(5, 1), rec(6, 2), rec(7, 3)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	cov, err = s.Coverage(ctx, testKey)
	if err != nil {
		t.Fatalf("Coverage: %v", err)
	}
	if cov == nil {
		t.Fatalf("coverage nil after write")
	}
	if !cov.Min.Equal(day(5)) || !cov.Max.Equal(day(7)) || cov.Rows != 3 {
		t.Fatalf("coverage = %s, want [%s..%s] rows=3", cov, day(5), day(7))
	}

	// extend left and re-read; the memo must not serve the old window
	if _, err := s.Upsert(ctx, testKey, []series.Record{rec(3, 0), rec(4, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cov, err = s.Coverage(ctx, testKey)
	if err != nil {
		t.Fatalf("Coverage: %v", err)
	}
	if !cov.Min.Equal(day(3)) || !cov.Max.Equal(day(7)) || cov.Rows != 5 {
		t.Fatalf("coverage after extend = %s", cov)
	}
}

func TestKeysIsolateDatasets(t *testing.T) {
	s := newMini(t)
	ctx := context.Background()

	k1 := series.Key{Symbol: "AAPL", Dataset: "indicators"}
	k2 := series.Key{Symbol: "AAPL", Dataset: "balance_sheet"}
	if _, err := s.Upsert(ctx, k1, []series.Record{rec(5, 1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	out, err := s.Query(ctx, k2, day(1), day(10))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("dataset leak: %+v", out)
	}
}

func TestKeyBase_SanitizationCannotCollide(t *testing.T) {
	a := keyBase(series.Key{Symbol: "BRK.B", Dataset: "indicators"})
	b := keyBase(series.Key{Symbol: "BRK_B", Dataset: "indicators"})
	if a == b {
		t.Fatalf("distinct symbols share storage key %q", a)
	}
	c := keyBase(series.Key{Symbol: "sh 600519", Dataset: "daily"})
	d := keyBase(series.Key{Symbol: "sh\t600519", Dataset: "daily"})
	if c == d {
		t.Fatalf("whitespace variants share storage key %q", c)
	}
}

func TestUpsert_RejectsInvalidKey(t *testing.T) {
	s := newMini(t)
	if _, err := s.Upsert(context.Background(), series.Key{}, []series.Record{rec(5, 1)}); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}
