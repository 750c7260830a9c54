package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jguan/llmfit/pkg/unit/ptrs"
)

func TestBytesPerParameter(t *testing.T) {
	tests := []struct {
		quant Quantization
		want  float64
	}{
		{QuantF32, 4.0},
		{QuantF16, 2.0},
		{QuantBF16, 2.0},
		{QuantQ8_0, 1.0},
		{QuantQ6K, 0.75},
		{QuantQ5KM, 0.625},
		{QuantQ4KM, 0.5},
		{QuantQ4_0, 0.5},
		{QuantQ3KM, 0.4375},
		{QuantQ2K, 0.3125},
		{"IQ1_S", 0.5},
		{"", 0.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.quant), func(t *testing.T) {
			assert.Equal(t, tt.want, BytesPerParameter(tt.quant))
		})
	}

	assert.True(t, KnownQuantization(QuantQ4KM))
	assert.False(t, KnownQuantization("IQ1_S"))
}

func TestActiveExpertVRAMGB(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    float64
		wantOK  bool
	}{
		{
			name:    "dense model",
			profile: Profile{Quantization: QuantQ8_0, ActiveParameters: ptrs.Uint64(1 << 31)},
		},
		{
			name:    "moe without active parameters",
			profile: Profile{IsMoE: true, Quantization: QuantQ8_0},
		},
		{
			name:    "two billion 8-bit weights",
			profile: Profile{IsMoE: true, Quantization: QuantQ8_0, ActiveParameters: ptrs.Uint64(1 << 31)},
			want:    2.2,
			wantOK:  true,
		},
		{
			name:    "floor for tiny expert sets",
			profile: Profile{IsMoE: true, Quantization: QuantQ4KM, ActiveParameters: ptrs.Uint64(1000)},
			want:    0.5,
			wantOK:  true,
		},
		{
			name:    "unknown quantization costs four bits",
			profile: Profile{IsMoE: true, Quantization: "mystery", ActiveParameters: ptrs.Uint64(1 << 32)},
			want:    2.2,
			wantOK:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.profile.ActiveExpertVRAMGB()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestOffloadedExpertRAMGB(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    float64
		wantOK  bool
	}{
		{
			name:    "dense model",
			profile: Profile{ActiveParameters: ptrs.Uint64(1), TotalParametersRaw: ptrs.Uint64(2)},
		},
		{
			name:    "missing total",
			profile: Profile{IsMoE: true, ActiveParameters: ptrs.Uint64(1)},
		},
		{
			name: "four billion inactive 4-bit weights",
			profile: Profile{
				IsMoE:              true,
				Quantization:       QuantQ4KM,
				ActiveParameters:   ptrs.Uint64(1 << 31),
				TotalParametersRaw: ptrs.Uint64(1<<32 + 1<<31),
			},
			want:   2.0,
			wantOK: true,
		},
		{
			name: "negative inactive count clamps to zero",
			profile: Profile{
				IsMoE:              true,
				Quantization:       QuantQ4KM,
				ActiveParameters:   ptrs.Uint64(10_000),
				TotalParametersRaw: ptrs.Uint64(5_000),
			},
			want:   0,
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.profile.OffloadedExpertRAMGB()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestHasMoEParams(t *testing.T) {
	full := Profile{
		IsMoE:              true,
		NumExperts:         ptrs.Uint32(8),
		ActiveExperts:      ptrs.Uint32(2),
		ActiveParameters:   ptrs.Uint64(12_879_925_248),
		TotalParametersRaw: ptrs.Uint64(46_702_792_704),
	}
	assert.True(t, full.HasMoEParams())

	partial := full.Clone()
	partial.NumExperts = nil
	assert.False(t, partial.HasMoEParams())

	dense := full.Clone()
	dense.IsMoE = false
	assert.False(t, dense.HasMoEParams())
}

func TestProfileCloneDoesNotAlias(t *testing.T) {
	p := Profile{Name: "a", MinVRAMGB: ptrs.Float64(8), ActiveParameters: ptrs.Uint64(5)}
	c := p.Clone()
	*c.MinVRAMGB = 1
	*c.ActiveParameters = 1
	assert.Equal(t, 8.0, *p.MinVRAMGB)
	assert.Equal(t, uint64(5), *p.ActiveParameters)
}
