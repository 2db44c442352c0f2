// Package gap classifies a requested date range against existing
// coverage and computes the minimal span to fetch. Pure functions, no
// I/O.
package gap

import (
	"fmt"

	"github.com/finscope/histcache/internal/series"
)

type Kind int

const (
	// FullHit means the requested range is already covered; nothing to
	// fetch.
	FullHit Kind = iota
	// LeftGap means only days before the cached minimum are missing.
	LeftGap
	// RightGap means only days after the cached maximum are missing.
	RightGap
	// FullMiss covers everything else: no coverage at all, a disjoint
	// request, or a request straddling both sides. Policy is to refetch
	// the whole requested range rather than merge slivers.
	FullMiss
)

func (k Kind) String() string {
	switch k {
	case FullHit:
		return "full_hit"
	case LeftGap:
		return "left_gap"
	case RightGap:
		return "right_gap"
	case FullMiss:
		return "full_miss"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Plan is the result of classification. FetchStart/FetchEnd are only
// meaningful when Kind != FullHit.
type Plan struct {
	Kind       Kind
	FetchStart series.Date
	FetchEnd   series.Date
}

// Classify maps existing coverage and a requested inclusive range to a
// fetch plan. cov == nil means the key has never been written.
//
// A request fully inside coverage is always a FullHit: the classifier
// trusts that [Min, Max] is contiguous, because every write it plans
// overlaps or abuts existing coverage. For strictly disjoint requests
// the fetch bounds widen to touch coverage (still a superset of the
// request), which is what keeps that invariant true.
func Classify(cov *series.Coverage, start, end series.Date) (Plan, error) {
	if start.After(end) {
		return Plan{}, fmt.Errorf("%w: start %s after end %s", series.ErrInvalidRange, start, end)
	}
	if cov == nil {
		return Plan{Kind: FullMiss, FetchStart: start, FetchEnd: end}, nil
	}

	minD, maxD := cov.Min, cov.Max
	switch {
	case !start.Before(minD) && !end.After(maxD):
		return Plan{Kind: FullHit}, nil

	case start.Before(minD) && !end.Before(minD) && !end.After(maxD):
		return Plan{Kind: LeftGap, FetchStart: start, FetchEnd: minD.AddDays(-1)}, nil

	case !start.Before(minD) && !start.After(maxD) && end.After(maxD):
		return Plan{Kind: RightGap, FetchStart: maxD.AddDays(1), FetchEnd: end}, nil

	default:
		fs, fe := start, end
		if end.Before(minD) {
			// Disjoint left of coverage: extend the fetch up to the
			// cached minimum so the new span abuts the old one.
			fe = minD.AddDays(-1)
		}
		if start.After(maxD) {
			// Disjoint right: symmetric.
			fs = maxD.AddDays(1)
		}
		return Plan{Kind: FullMiss, FetchStart: fs, FetchEnd: fe}, nil
	}
}

// Refresh is the plan a forced refresh issues: a FullMiss over exactly
// the requested range, bypassing classification.
func Refresh(start, end series.Date) (Plan, error) {
	if start.After(end) {
		return Plan{}, fmt.Errorf("%w: start %s after end %s", series.ErrInvalidRange, start, end)
	}
	return Plan{Kind: FullMiss, FetchStart: start, FetchEnd: end}, nil
}
