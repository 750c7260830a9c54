package fit

import "math"

// headroomFactor is the margin over the requirement that earns Good.
const headroomFactor = 1.2

// scoreFit grades a placement on memory headroom alone. Only GPU placements
// can reach Perfect and CPU-only inference never rises above Marginal.
func scoreFit(required, available, recommended float64, mode RunMode) FitLevel {
	if required > available {
		return TooTight
	}

	switch mode {
	case GPU:
		switch {
		case recommended <= available:
			return Perfect
		case available >= required*headroomFactor:
			return Good
		default:
			return Marginal
		}
	case MoEOffload, CPUOffload:
		if available >= required*headroomFactor {
			return Good
		}
		return Marginal
	case CPUOnly:
		return Marginal
	default:
		panic("fit: unhandled run mode " + mode.String())
	}
}

// utilization returns required as a percentage of available, or +Inf for
// an empty pool.
func utilization(required, available float64) float64 {
	if available > 0 {
		return required / available * 100
	}
	return math.Inf(1)
}
