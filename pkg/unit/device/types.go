package device

import (
	"context"
	"fmt"
	"math"
)

// Backend names the compute API a detected GPU is driven through.
type Backend string

const (
	BackendCUDA  Backend = "cuda"
	BackendROCm  Backend = "rocm"
	BackendMetal Backend = "metal"
	BackendNone  Backend = "none"
)

// SystemSpecs is a point-in-time snapshot of the machine a model would run
// on. GPUVRAMGB is nil when a GPU was found but could not be sized. With
// UnifiedMemory set, GPUVRAMGB is the shared pool, not a separate one.
type SystemSpecs struct {
	TotalRAMGB     float64  `json:"total_ram_gb" yaml:"total_ram_gb"`
	AvailableRAMGB float64  `json:"available_ram_gb" yaml:"available_ram_gb"`
	TotalCPUCores  int      `json:"total_cpu_cores" yaml:"total_cpu_cores"`
	CPUName        string   `json:"cpu_name,omitempty" yaml:"cpu_name,omitempty"`
	HasGPU         bool     `json:"has_gpu" yaml:"has_gpu"`
	GPUVRAMGB      *float64 `json:"gpu_vram_gb,omitempty" yaml:"gpu_vram_gb,omitempty"`
	GPUName        string   `json:"gpu_name,omitempty" yaml:"gpu_name,omitempty"`
	GPUCount       int      `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	UnifiedMemory  bool     `json:"unified_memory" yaml:"unified_memory"`
	Backend        Backend  `json:"backend" yaml:"backend"`
}

// GPUInfo is what a single GPU provider reports. VRAMGB is nil when the
// provider saw a device but could not read its memory size.
type GPUInfo struct {
	Name          string
	Count         int
	VRAMGB        *float64
	UnifiedMemory bool
	Backend       Backend
}

// Prober produces SystemSpecs for the current machine.
type Prober interface {
	Detect(ctx context.Context) (*SystemSpecs, error)
}

// VRAM returns the GPU memory pool and whether it is known.
func (s *SystemSpecs) VRAM() (float64, bool) {
	if !s.HasGPU || s.GPUVRAMGB == nil {
		return 0, false
	}
	return *s.GPUVRAMGB, true
}

// Validate reports probe output that breaks the snapshot invariants.
func (s *SystemSpecs) Validate() error {
	switch {
	case isBad(s.TotalRAMGB) || s.TotalRAMGB < 0:
		return ErrInvalidHardwareProfile.WithDetails("total_ram_gb", s.TotalRAMGB).
			WithCause(fmt.Errorf("total RAM must be a non-negative number"))
	case isBad(s.AvailableRAMGB) || s.AvailableRAMGB < 0 || s.AvailableRAMGB > s.TotalRAMGB:
		return ErrInvalidHardwareProfile.WithDetails("available_ram_gb", s.AvailableRAMGB).
			WithCause(fmt.Errorf("available RAM must lie within [0, %.2f]", s.TotalRAMGB))
	case s.TotalCPUCores < 1:
		return ErrInvalidHardwareProfile.WithDetails("total_cpu_cores", s.TotalCPUCores).
			WithCause(fmt.Errorf("at least one CPU core is required"))
	case s.UnifiedMemory && !s.HasGPU:
		return ErrInvalidHardwareProfile.WithCause(fmt.Errorf("unified memory requires a GPU"))
	case !s.HasGPU && s.GPUVRAMGB != nil:
		return ErrInvalidHardwareProfile.WithCause(fmt.Errorf("VRAM reported without a GPU"))
	case s.GPUVRAMGB != nil && (isBad(*s.GPUVRAMGB) || *s.GPUVRAMGB < 0):
		return ErrInvalidHardwareProfile.WithDetails("gpu_vram_gb", *s.GPUVRAMGB).
			WithCause(fmt.Errorf("VRAM must be a non-negative number"))
	}
	return nil
}

// Normalize clamps raw probe readings into a snapshot that satisfies
// Validate. Probes occasionally report available memory slightly above
// total, or zero cores inside restricted containers.
func (s *SystemSpecs) Normalize() {
	if isBad(s.TotalRAMGB) || s.TotalRAMGB < 0 {
		s.TotalRAMGB = 0
	}
	if isBad(s.AvailableRAMGB) || s.AvailableRAMGB < 0 {
		s.AvailableRAMGB = 0
	}
	if s.AvailableRAMGB > s.TotalRAMGB {
		s.AvailableRAMGB = s.TotalRAMGB
	}
	if s.TotalCPUCores < 1 {
		s.TotalCPUCores = 1
	}
	if !s.HasGPU {
		s.GPUVRAMGB = nil
		s.GPUName = ""
		s.GPUCount = 0
		s.UnifiedMemory = false
		s.Backend = BackendNone
	}
	if s.GPUVRAMGB != nil && (isBad(*s.GPUVRAMGB) || *s.GPUVRAMGB < 0) {
		s.GPUVRAMGB = nil
	}
	if s.Backend == "" {
		s.Backend = BackendNone
	}
}

// Clone returns a copy that shares no pointers with s.
func (s SystemSpecs) Clone() SystemSpecs {
	c := s
	if s.GPUVRAMGB != nil {
		v := *s.GPUVRAMGB
		c.GPUVRAMGB = &v
	}
	return c
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
