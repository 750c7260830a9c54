package fit

import (
	"cmp"
	"slices"
)

// Compare orders results best first: by fit level, then run mode
// preference, then lower utilization.
func Compare(a, b Result) int {
	return cmp.Or(
		cmp.Compare(a.FitLevel, b.FitLevel),
		cmp.Compare(a.RunMode, b.RunMode),
		cmp.Compare(a.UtilizationPct, b.UtilizationPct),
	)
}

// Rank returns a sorted copy of results. Results tied on every key keep
// their input order.
func Rank(results []Result) []Result {
	ranked := slices.Clone(results)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}
