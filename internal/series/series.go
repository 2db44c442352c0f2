// Package series defines the domain model of the history cache: cache
// keys, dated records and coverage windows, plus the error taxonomy the
// cache surfaces to callers.
package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Key scopes cached records: one upstream entity (ticker, index, fund)
// paired with the dataset it was queried from ("indicators",
// "balance_sheet", ...). Immutable and comparable, so it can index lock
// tables and memo caches directly.
type Key struct {
	Symbol  string
	Dataset string
}

func (k Key) String() string { return k.Dataset + "/" + k.Symbol }

// Validate rejects keys that cannot address storage.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Symbol) == "" {
		return errors.New("cache key: empty symbol")
	}
	if strings.TrimSpace(k.Dataset) == "" {
		return errors.New("cache key: empty dataset")
	}
	return nil
}

// Record is one cached unit: a date and the opaque field map fetched for
// it. Fields stays a raw JSON blob end to end so numeric precision and
// unknown fields survive the round trip untouched.
type Record struct {
	Date   Date            `json:"date"`
	Fields json.RawMessage `json:"fields"`
}

// Coverage is the derived [Min, Max] span currently stored for a key,
// with the row count over that span. It is computed from the store's date
// index, never persisted on its own.
type Coverage struct {
	Min  Date
	Max  Date
	Rows int64
}

func (c Coverage) String() string {
	return fmt.Sprintf("[%s..%s] rows=%d", c.Min, c.Max, c.Rows)
}
