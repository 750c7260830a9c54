package model

import "math"

const (
	bytesPerGiB = 1024 * 1024 * 1024

	// defaultBytesPerParameter costs unrecognized labels as 4-bit weights.
	defaultBytesPerParameter = 0.5

	// activeExpertOverhead covers activations and KV buffers for the
	// experts that stay resident on the GPU.
	activeExpertOverhead = 1.1

	// minActiveExpertVRAMGB keeps tiny expert sets from costing nothing.
	minActiveExpertVRAMGB = 0.5
)

var bytesPerParameter = map[Quantization]float64{
	QuantF32:  4.0,
	QuantF16:  2.0,
	QuantBF16: 2.0,
	QuantQ8_0: 1.0,
	QuantQ6K:  0.75,
	QuantQ5KM: 0.625,
	QuantQ4KM: 0.5,
	QuantQ4_0: 0.5,
	QuantQ3KM: 0.4375,
	QuantQ2K:  0.3125,
}

// BytesPerParameter returns the storage cost of one weight for the label.
func BytesPerParameter(q Quantization) float64 {
	if bpp, ok := bytesPerParameter[q]; ok {
		return bpp
	}
	return defaultBytesPerParameter
}

// KnownQuantization reports whether q has its own entry in the cost table.
func KnownQuantization(q Quantization) bool {
	_, ok := bytesPerParameter[q]
	return ok
}

// ActiveExpertVRAMGB estimates the VRAM held by the active experts of an
// MoE model. ok is false for dense models or when the active parameter
// count is unknown.
func (p *Profile) ActiveExpertVRAMGB() (gb float64, ok bool) {
	if !p.IsMoE || p.ActiveParameters == nil {
		return 0, false
	}
	size := float64(*p.ActiveParameters) * BytesPerParameter(p.Quantization) / bytesPerGiB
	return math.Max(minActiveExpertVRAMGB, size*activeExpertOverhead), true
}

// OffloadedExpertRAMGB estimates the system RAM taken by the inactive
// experts once they are moved off the GPU. A negative inactive count is a
// catalog error and is clamped to zero.
func (p *Profile) OffloadedExpertRAMGB() (gb float64, ok bool) {
	if !p.IsMoE || p.ActiveParameters == nil || p.TotalParametersRaw == nil {
		return 0, false
	}
	inactive := float64(*p.TotalParametersRaw) - float64(*p.ActiveParameters)
	if inactive <= 0 {
		return 0, true
	}
	return inactive * BytesPerParameter(p.Quantization) / bytesPerGiB, true
}
