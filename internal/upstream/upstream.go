// Package upstream defines the narrow contract the cache holds against
// the external history provider. The core never learns anything about
// the provider beyond this interface.
package upstream

import (
	"context"
	"encoding/json"

	"github.com/finscope/histcache/internal/series"
)

// Row is one raw upstream entry: a date and its field map, kept as raw
// JSON so nothing is lost before normalization stores it.
type Row struct {
	Date   series.Date     `json:"date"`
	Fields json.RawMessage `json:"fields"`
}

// Fetcher retrieves history rows for one key over an inclusive date
// range. Fewer rows than days is expected (non-trading days); errors
// mean the call produced nothing usable. Implementations must honor ctx
// cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, key series.Key, start, end series.Date) ([]Row, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, key series.Key, start, end series.Date) ([]Row, error)

func (f Func) Fetch(ctx context.Context, key series.Key, start, end series.Date) ([]Row, error) {
	return f(ctx, key, start, end)
}
