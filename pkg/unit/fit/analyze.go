package fit

import (
	"fmt"

	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/model"
	"github.com/jguan/llmfit/pkg/unit/ptrs"
)

// lowCoreCount is the core count below which CPU-bound paths get a warning.
const lowCoreCount = 4

// placement is the memory pool a run mode is graded against.
type placement struct {
	mode      RunMode
	required  float64
	available float64
}

// analysis carries one Analyze call. notes only ever grows.
type analysis struct {
	model *model.Profile
	specs *device.SystemSpecs
	notes []string
}

func (a *analysis) note(format string, args ...any) {
	if len(args) == 0 {
		a.notes = append(a.notes, format)
		return
	}
	a.notes = append(a.notes, fmt.Sprintf(format, args...))
}

// Analyze picks a run mode for m on specs, grades the fit and explains the
// choice in notes. It never fails: unknown VRAM and incomplete MoE data are
// planned through fallback paths.
func Analyze(m model.Profile, specs device.SystemSpecs) Result {
	a := &analysis{model: &m, specs: &specs}

	// A model without a stated VRAM need is assumed to cost the same in
	// either pool.
	minVRAM := ptrs.Float64Or(m.MinVRAMGB, m.MinRAMGB)

	pl := a.place(minVRAM)
	level := scoreFit(pl.required, pl.available, m.RecommendedRAMGB, pl.mode)

	if pl.mode == CPUOnly {
		a.note("No GPU -- inference will be slow")
	}
	if (pl.mode == CPUOffload || pl.mode == CPUOnly) && specs.TotalCPUCores < lowCoreCount {
		a.note("Low CPU core count may bottleneck inference")
	}

	var offloaded *float64
	if pl.mode == MoEOffload {
		if gb, ok := m.OffloadedExpertRAMGB(); ok {
			offloaded = &gb
		}
	}

	return Result{
		Model:             m.Clone(),
		FitLevel:          level,
		RunMode:           pl.mode,
		MemoryRequiredGB:  pl.required,
		MemoryAvailableGB: pl.available,
		UtilizationPct:    utilization(pl.required, pl.available),
		Notes:             a.notes,
		MoEOffloadedGB:    offloaded,
	}
}

func (a *analysis) place(minVRAM float64) placement {
	if !a.specs.HasGPU {
		return a.cpuOnly()
	}

	if a.specs.UnifiedMemory {
		pool, ok := a.specs.VRAM()
		if !ok {
			return a.cpuOnly()
		}
		a.note("Unified memory: GPU and CPU share the same pool")
		if a.model.IsMoE {
			a.note("MoE: %d/%d experts active (all share unified memory pool)",
				ptrs.Uint32Or(a.model.ActiveExperts, 0), ptrs.Uint32Or(a.model.NumExperts, 0))
		}
		return placement{mode: GPU, required: minVRAM, available: pool}
	}

	vram, ok := a.specs.VRAM()
	if !ok {
		a.note("GPU detected but VRAM unknown")
		return a.cpuOnly()
	}

	switch {
	case minVRAM <= vram:
		a.note("GPU: model loaded into VRAM")
		if a.model.IsMoE {
			a.note("MoE: all %d experts loaded in VRAM (optimal)", ptrs.Uint32Or(a.model.NumExperts, 0))
		}
		return placement{mode: GPU, required: minVRAM, available: vram}
	case a.model.HasMoEParams():
		return a.moeOffload(vram, minVRAM)
	default:
		if a.model.IsMoE {
			a.note("MoE: expert parameters incomplete, planning as a dense model")
		}
		return a.spill(vram, minVRAM)
	}
}

func (a *analysis) cpuOnly() placement {
	a.note("CPU-only: model loaded into system RAM")
	if a.model.IsMoE {
		a.note("MoE architecture, but expert offloading requires a GPU")
	}
	return placement{mode: CPUOnly, required: a.model.MinRAMGB, available: a.specs.AvailableRAMGB}
}

// spill handles a dense model that does not fit in VRAM.
func (a *analysis) spill(vram, minVRAM float64) placement {
	if a.model.MinRAMGB <= a.specs.AvailableRAMGB {
		a.note("GPU: insufficient VRAM, spilling to system RAM")
		a.note("Performance will be significantly reduced")
		return placement{mode: CPUOffload, required: a.model.MinRAMGB, available: a.specs.AvailableRAMGB}
	}

	// Nothing fits: grade against VRAM so the shortfall shows on the
	// preferred pool.
	a.note("Insufficient VRAM and system RAM")
	a.note("Need %.1f GB VRAM or %.1f GB system RAM", minVRAM, a.model.MinRAMGB)
	return placement{mode: GPU, required: minVRAM, available: vram}
}

// moeOffload keeps the active experts in VRAM and moves the rest to system
// RAM. When that is not viable it falls back like a dense model, still
// graded against the full model size.
func (a *analysis) moeOffload(vram, minVRAM float64) placement {
	active, activeOK := a.model.ActiveExpertVRAMGB()
	offloaded, offloadedOK := a.model.OffloadedExpertRAMGB()

	if activeOK && offloadedOK && active <= vram && offloaded <= a.specs.AvailableRAMGB {
		a.note("MoE: %d/%d experts active in VRAM (%.1f GB)",
			ptrs.Uint32Or(a.model.ActiveExperts, 0), ptrs.Uint32Or(a.model.NumExperts, 0), active)
		a.note("Inactive experts offloaded to system RAM (%.1f GB)", offloaded)
		return placement{mode: MoEOffload, required: active, available: vram}
	}

	if a.model.MinRAMGB <= a.specs.AvailableRAMGB {
		a.note("MoE: insufficient VRAM for expert offloading")
		a.note("Spilling entire model to system RAM")
		a.note("Performance will be significantly reduced")
		return placement{mode: CPUOffload, required: a.model.MinRAMGB, available: a.specs.AvailableRAMGB}
	}

	if !activeOK {
		active = minVRAM
	}
	a.note("Insufficient VRAM and system RAM")
	a.note("Need %.1f GB VRAM (full) or %.1f GB (MoE offload) + RAM", minVRAM, active)
	return placement{mode: GPU, required: minVRAM, available: vram}
}
