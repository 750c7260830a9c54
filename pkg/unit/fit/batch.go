package fit

import (
	"github.com/sourcegraph/conc/iter"

	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/model"
)

// AnalyzeAll analyzes every profile against specs. Output order matches
// input order whether or not the work is spread across goroutines.
func AnalyzeAll(models []model.Profile, specs device.SystemSpecs, parallel bool) []Result {
	if !parallel {
		out := make([]Result, len(models))
		for i, m := range models {
			out[i] = Analyze(m, specs)
		}
		return out
	}

	return iter.Map(models, func(m *model.Profile) Result {
		// Each goroutine gets its own specs copy; Analyze never writes it.
		return Analyze(*m, specs.Clone())
	})
}

// Summary counts results per grade and per run mode. Runnable counts the
// results that are not TooTight.
type Summary struct {
	Total    int              `json:"total" yaml:"total"`
	Runnable int              `json:"runnable" yaml:"runnable"`
	ByLevel  map[FitLevel]int `json:"by_level" yaml:"by_level"`
	ByMode   map[RunMode]int  `json:"by_mode" yaml:"by_mode"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:   len(results),
		ByLevel: make(map[FitLevel]int, 4),
		ByMode:  make(map[RunMode]int, 4),
	}
	for _, r := range results {
		s.ByLevel[r.FitLevel]++
		s.ByMode[r.RunMode]++
		if r.FitLevel != TooTight {
			s.Runnable++
		}
	}
	return s
}
