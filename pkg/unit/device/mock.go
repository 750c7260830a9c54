package device

import "context"

// StaticProber implements Prober with a fixed snapshot for tests and for
// fully overridden hardware.
type StaticProber struct {
	Specs SystemSpecs
	Err   error
	Calls int
}

// NewStaticProber returns a prober describing a modest desktop with one
// 24 GB discrete GPU.
func NewStaticProber() *StaticProber {
	vram := 24.0
	return &StaticProber{
		Specs: SystemSpecs{
			TotalRAMGB:     64,
			AvailableRAMGB: 48,
			TotalCPUCores:  16,
			CPUName:        "Mock CPU",
			HasGPU:         true,
			GPUVRAMGB:      &vram,
			GPUName:        "Mock GPU",
			GPUCount:       1,
			Backend:        BackendCUDA,
		},
	}
}

func (m *StaticProber) Detect(ctx context.Context) (*SystemSpecs, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	specs := m.Specs.Clone()
	return &specs, nil
}
