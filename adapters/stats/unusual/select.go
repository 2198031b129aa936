package unusual

import (
	"math"
	"sort"

	"peerscan/domain/anomaly"
)

// SelectCases ranks records by anomaly index and keeps the unusual ones.
//
// The count comes from the percentage or fixed-number criterion; the optional
// cutoff is applied afterwards and can only shrink the selection. Each case
// keeps at most the configured number of reasons.
func SelectCases(records []anomaly.AnomalyRecord, opts anomaly.Options) []anomaly.UnusualCase {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].Index > records[order[b]].Index
	})

	limit := SelectionLimit(len(records), opts)
	maxReasons := opts.ReasonLimit()

	cases := make([]anomaly.UnusualCase, 0, limit)
	for _, idx := range order[:limit] {
		rec := records[idx]
		if opts.UseMinimumValue && rec.Index < opts.CutoffValue {
			continue
		}
		n := len(rec.Reasons)
		if n > maxReasons {
			n = maxReasons
		}
		reasons := make([]anomaly.ReasonEntry, n)
		copy(reasons, rec.Reasons[:n])
		cases = append(cases, anomaly.UnusualCase{
			RowIndex:     idx,
			AnomalyIndex: rec.Index,
			Reasons:      reasons,
		})
	}
	return cases
}

// SelectionLimit is the number of top-ranked cases considered before the cutoff.
func SelectionLimit(total int, opts anomaly.Options) int {
	var limit int
	if opts.IdentificationCriteria == anomaly.ByPercentage {
		pct := opts.PercentageValue
		switch {
		case math.IsNaN(pct) || pct < 0:
			pct = 0
		case pct > 100:
			pct = 100
		}
		limit = int(math.Ceil(pct / 100 * float64(total)))
	} else {
		limit = opts.FixedCount()
	}
	if limit < 0 {
		limit = 0
	}
	if limit > total {
		limit = total
	}
	return limit
}
