package metrics

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/fit"
	"github.com/jguan/llmfit/pkg/unit/model"
	"github.com/jguan/llmfit/pkg/unit/ptrs"
)

func exporterFixture() (device.SystemSpecs, []fit.Result) {
	specs := device.SystemSpecs{
		TotalRAMGB:     64,
		AvailableRAMGB: 48,
		TotalCPUCores:  16,
		HasGPU:         true,
		GPUVRAMGB:      ptrs.Float64(24),
		GPUName:        "NVIDIA GeForce RTX 4090",
		GPUCount:       1,
		Backend:        device.BackendCUDA,
	}
	results := []fit.Result{
		{
			Model:             model.Profile{Name: "Llama-3.1-8B-Instruct", Provider: "Meta"},
			FitLevel:          fit.Perfect,
			RunMode:           fit.GPU,
			MemoryRequiredGB:  6,
			MemoryAvailableGB: 24,
			UtilizationPct:    25,
		},
		{
			Model:             model.Profile{Name: "Giant-405B", Provider: ""},
			FitLevel:          fit.TooTight,
			RunMode:           fit.CPUOnly,
			MemoryRequiredGB:  230,
			MemoryAvailableGB: 0,
			UtilizationPct:    math.Inf(1),
		},
	}
	return specs, results
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Meta", "Meta"},
		{"trimmed", "  Qwen ", "Qwen"},
		{"empty", "", unknownLabel},
		{"blank", "   ", unknownLabel},
		{"long", strings.Repeat("x", 200), strings.Repeat("x", maxLabelLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeLabel(tt.input))
		})
	}
}

func TestFitExporter_Observe(t *testing.T) {
	e, err := NewFitExporter()
	require.NoError(t, err)

	specs, results := exporterFixture()
	e.Observe(specs, results)

	assert.Equal(t, 2, testutil.CollectAndCount(e.fitLevel))
	assert.Equal(t, 0.0, testutil.ToFloat64(
		e.fitLevel.WithLabelValues("Llama-3.1-8B-Instruct", "Meta", "gpu", "perfect")))
	assert.Equal(t, 3.0, testutil.ToFloat64(
		e.fitLevel.WithLabelValues("Giant-405B", unknownLabel, "cpu_only", "too_tight")))

	assert.InDelta(t, 0.25, testutil.ToFloat64(e.utilization.WithLabelValues("Llama-3.1-8B-Instruct")), 1e-9)
	assert.True(t, math.IsInf(testutil.ToFloat64(e.utilization.WithLabelValues("Giant-405B")), 1))
	assert.Equal(t, 6.0*bytesPerGiB, testutil.ToFloat64(e.required.WithLabelValues("Llama-3.1-8B-Instruct")))

	assert.Equal(t, 64.0*bytesPerGiB, testutil.ToFloat64(e.systemMemory.WithLabelValues("total")))
	assert.Equal(t, 48.0*bytesPerGiB, testutil.ToFloat64(e.systemMemory.WithLabelValues("available")))
	assert.Equal(t, 24.0*bytesPerGiB, testutil.ToFloat64(e.gpuVRAM))
}

func TestFitExporter_ObserveReplacesPreviousReport(t *testing.T) {
	e, err := NewFitExporter()
	require.NoError(t, err)

	specs, results := exporterFixture()
	e.Observe(specs, results)

	cpuOnly := device.SystemSpecs{TotalRAMGB: 16, AvailableRAMGB: 8, TotalCPUCores: 8}
	e.Observe(cpuOnly, results[:1])

	assert.Equal(t, 1, testutil.CollectAndCount(e.fitLevel))
	assert.Equal(t, 1, testutil.CollectAndCount(e.required))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.gpuVRAM))
}

func TestFitExporter_WriteTextfile(t *testing.T) {
	e, err := NewFitExporter()
	require.NoError(t, err)

	specs, results := exporterFixture()
	e.Observe(specs, results)

	path := filepath.Join(t.TempDir(), "textfile", "llmfit.prom")
	require.NoError(t, e.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, MetricModelFitLevel)
	assert.Contains(t, text, `model="Llama-3.1-8B-Instruct"`)
	assert.Contains(t, text, `run_mode="cpu_only"`)
	assert.Contains(t, text, "+Inf")
	assert.Contains(t, text, `kind="available"`)
}
