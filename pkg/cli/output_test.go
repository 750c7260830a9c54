package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/llmfit/pkg/unit"
	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/fit"
	"github.com/jguan/llmfit/pkg/unit/model"
	"github.com/jguan/llmfit/pkg/unit/ptrs"
)

func llamaResult() fit.Result {
	return fit.Result{
		Model: model.Profile{
			Name:             "meta-llama/Llama-3.1-8B-Instruct",
			Provider:         "Meta",
			ParameterCount:   "8B",
			MinRAMGB:         4.5,
			RecommendedRAMGB: 8,
			MinVRAMGB:        ptrs.Float64(4.5),
			Quantization:     model.QuantQ4KM,
		},
		FitLevel:          fit.Perfect,
		RunMode:           fit.GPU,
		MemoryRequiredGB:  4.5,
		MemoryAvailableGB: 24,
		UtilizationPct:    18.75,
		Notes:             []string{"GPU: model loaded into VRAM"},
	}
}

// emptyPoolResult is what Analyze returns for a machine reporting no
// available memory.
func emptyPoolResult() fit.Result {
	return fit.Result{
		Model:          model.Profile{Name: "test/empty-pool", MinRAMGB: 2, RecommendedRAMGB: 4},
		FitLevel:       fit.TooTight,
		RunMode:        fit.CPUOnly,
		UtilizationPct: math.Inf(1),
		Notes:          []string{"No GPU -- inference will be slow"},
	}
}

func tableLines(t *testing.T, out string) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputTable, false},
		{"table", OutputTable, false},
		{" JSON ", OutputJSON, false},
		{"yaml", OutputYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatOutput_FitRows(t *testing.T) {
	results := []fit.Result{llamaResult(), emptyPoolResult()}
	rows := make([]fitRow, len(results))
	for i := range results {
		rows[i] = newFitRow(&results[i])
	}

	out, err := FormatOutput(rows, OutputTable)
	require.NoError(t, err)

	lines := tableLines(t, out)
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"FIT", "MODEL", "PROVIDER", "PARAMS", "MODE", "MEMORY", "UTIL", "QUANT"},
		strings.Fields(lines[0]))
	assert.Equal(t, "---", strings.Fields(lines[1])[0])

	assert.Contains(t, lines[2], "Perfect")
	assert.Contains(t, lines[2], "4.5 / 24.0 GB")
	assert.Contains(t, lines[2], "19%")

	// An empty pool has no meaningful percentage.
	assert.Contains(t, lines[3], "Too Tight")
	assert.Equal(t, "-", strings.Fields(lines[3])[len(strings.Fields(lines[3]))-2])
}

func TestFormatOutput_ResultTable(t *testing.T) {
	out, err := FormatOutput([]fit.Result{emptyPoolResult(), llamaResult()}, OutputTable)
	require.NoError(t, err)

	lines := tableLines(t, out)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "fit_level")
	assert.Contains(t, lines[0], "utilization_pct")

	// Enums print by name and infinite utilization as "inf".
	assert.Contains(t, lines[2], "too_tight")
	assert.Contains(t, lines[2], "cpu_only")
	assert.Contains(t, lines[2], "inf")
	assert.Contains(t, lines[3], "18.75")
	// A nil MoE figure prints as a dash, not as "null".
	assert.NotContains(t, out, "null")
}

func TestCell(t *testing.T) {
	var unsized *float64
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"infinite utilization", math.Inf(1), "inf"},
		{"utilization", 87.5, "87.50"},
		{"unsized vram", unsized, "-"},
		{"vram", ptrs.Float64(24), "24.00"},
		{"fit level", fit.Good, "good"},
		{"run mode", fit.MoEOffload, "moe_offload"},
		{"quantization", model.QuantQ8_0, "Q8_0"},
		{"context length", uint32(131072), "131072"},
		{"notes", []string{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cell(reflect.ValueOf(tt.in)))
		})
	}
}

func TestFormatOutput_ResultJSON(t *testing.T) {
	out, err := FormatOutput(emptyPoolResult(), OutputJSON)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Nil(t, got["utilization_pct"])
	assert.Equal(t, "too_tight", got["fit_level"])
}

func TestFormatOutput_ResultYAML(t *testing.T) {
	out, err := FormatOutput(emptyPoolResult(), OutputYAML)
	require.NoError(t, err)
	assert.Contains(t, out, "fit_level: too_tight")
	assert.Contains(t, out, "utilization_pct: .inf")
}

func TestFormatOutput_EmptyRows(t *testing.T) {
	out, err := FormatOutput([]profileRow{}, OutputTable)
	require.NoError(t, err)
	assert.Equal(t, "No results", out)

	out, err = FormatOutput(nil, OutputTable)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFormatOutput_SummaryMap(t *testing.T) {
	summary := fit.Summarize([]fit.Result{llamaResult(), emptyPoolResult(), llamaResult()})

	out, err := FormatOutput(summary.ByLevel, OutputTable)
	require.NoError(t, err)

	lines := tableLines(t, out)
	require.Len(t, lines, 2)
	// Keys are sorted by name.
	assert.Equal(t, []string{"perfect", "2"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"too_tight", "1"}, strings.Fields(lines[1]))
}

func TestPrintRows_SystemView(t *testing.T) {
	specs := device.SystemSpecs{
		TotalRAMGB:     64,
		AvailableRAMGB: 48,
		TotalCPUCores:  16,
		CPUName:        "Ryzen 9 7950X",
		HasGPU:         true,
		GPUVRAMGB:      ptrs.Float64(24),
		GPUName:        "RTX 4090",
		GPUCount:       1,
		Backend:        device.BackendCUDA,
	}

	buf := &bytes.Buffer{}
	opts := &OutputOptions{Format: OutputTable, Writer: buf}
	require.NoError(t, PrintRows(newSystemView(&specs), &specs, opts))

	out := buf.String()
	assert.Contains(t, out, "Ryzen 9 7950X")
	assert.Contains(t, out, "RTX 4090")
	assert.Contains(t, out, "24GiB")
	assert.NotContains(t, out, "gpu_vram_gb")

	buf.Reset()
	opts.Format = OutputJSON
	require.NoError(t, PrintRows(newSystemView(&specs), &specs, opts))

	var got device.SystemSpecs
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, specs, got)
}

func TestPrintRows_Profiles(t *testing.T) {
	profiles := []model.Profile{llamaResult().Model}

	buf := &bytes.Buffer{}
	require.NoError(t, printProfiles(profiles, &OutputOptions{Format: OutputTable, Writer: buf}))
	assert.Contains(t, buf.String(), "MIN VRAM")
	assert.Contains(t, buf.String(), "4.5 GB")

	buf.Reset()
	require.NoError(t, printProfiles(nil, &OutputOptions{Format: OutputJSON, Writer: buf}))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrintOutput_Quiet(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &OutputOptions{Format: OutputJSON, Quiet: true, Writer: buf}

	require.NoError(t, PrintOutput(llamaResult(), opts))
	assert.Empty(t, buf.String())
}

func TestPrintError(t *testing.T) {
	ambiguous := model.ErrModelAmbiguous.
		WithDetails("query", "llama").
		WithDetails("candidates", []string{
			"meta-llama/Llama-3.1-8B-Instruct",
			"meta-llama/Llama-3.3-70B-Instruct",
		})

	t.Run("table lists candidates", func(t *testing.T) {
		buf := &bytes.Buffer{}
		PrintError(ambiguous, &OutputOptions{Format: OutputTable, ErrWriter: buf})

		lines := tableLines(t, buf.String())
		require.Len(t, lines, 2)
		assert.Equal(t, "Error: [00106] multiple models match", lines[0])
		assert.Equal(t,
			"Did you mean one of: meta-llama/Llama-3.1-8B-Instruct, meta-llama/Llama-3.3-70B-Instruct",
			lines[1])
	})

	t.Run("json carries code and details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		PrintError(ambiguous, &OutputOptions{Format: OutputJSON, ErrWriter: buf})

		var got struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string         `json:"code"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.False(t, got.Success)
		assert.Equal(t, string(unit.ErrCodeModelAmbiguous), got.Error.Code)
		assert.Equal(t, "llama", got.Error.Details["query"])
	})

	t.Run("yaml", func(t *testing.T) {
		buf := &bytes.Buffer{}
		PrintError(device.ErrInvalidHardwareProfile, &OutputOptions{Format: OutputYAML, ErrWriter: buf})
		assert.Contains(t, buf.String(), "success: false")
		assert.Contains(t, buf.String(), "00504")
	})

	t.Run("plain error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		PrintError(errors.New("open ~/.llmfit/llmfit.db: permission denied"), &OutputOptions{Format: OutputTable, ErrWriter: buf})
		assert.Equal(t, "Error: open ~/.llmfit/llmfit.db: permission denied\n", buf.String())
	})
}

func TestPrintSuccess(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputTable, "Removed custom-1a2b3c4d\n"},
		{OutputJSON, `"message": "Removed custom-1a2b3c4d"`},
		{OutputYAML, "message: Removed custom-1a2b3c4d"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			buf := &bytes.Buffer{}
			PrintSuccess("Removed custom-1a2b3c4d", &OutputOptions{Format: tt.format, Writer: buf})
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	buf := &bytes.Buffer{}
	PrintSuccess("Removed custom-1a2b3c4d", &OutputOptions{Format: OutputTable, Quiet: true, Writer: buf})
	assert.Empty(t, buf.String())
}
