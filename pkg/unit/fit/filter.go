package fit

import "slices"

// Filter narrows a set of results. The zero value keeps everything.
type Filter struct {
	// PerfectOnly keeps only Perfect results and overrides MinLevel.
	PerfectOnly bool
	// MinLevel is the worst grade kept; nil keeps every grade.
	MinLevel *FitLevel
	// Modes keeps only the listed run modes when non-empty.
	Modes []RunMode
	// Limit truncates the output; zero or less means no limit.
	Limit int
}

// Keep reports whether r passes the level and mode criteria.
func (f Filter) Keep(r Result) bool {
	if f.PerfectOnly && r.FitLevel != Perfect {
		return false
	}
	if f.MinLevel != nil && r.FitLevel > *f.MinLevel {
		return false
	}
	if len(f.Modes) > 0 && !slices.Contains(f.Modes, r.RunMode) {
		return false
	}
	return true
}

// Apply filters results, ranks the survivors and truncates to Limit.
func (f Filter) Apply(results []Result) []Result {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if f.Keep(r) {
			kept = append(kept, r)
		}
	}

	ranked := Rank(kept)
	if f.Limit > 0 && len(ranked) > f.Limit {
		ranked = ranked[:f.Limit]
	}
	return ranked
}
