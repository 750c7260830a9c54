package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/llmfit/pkg/infra/metrics"
	"github.com/jguan/llmfit/pkg/unit"
	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/model"
)

type testCLI struct {
	t      *testing.T
	prober *device.StaticProber
	store  *model.MemoryStore
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &testCLI{
		t:      t,
		prober: device.NewStaticProber(),
		store:  model.NewMemoryStore(),
	}
}

// run executes one command line on a fresh root, the way the binary would.
func (c *testCLI) run(args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCommand(WithProber(c.prober), WithProfileStore(c.store))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOutputWriter(out)
	root.OutputOptions().ErrWriter = errOut

	cmd := root.Command()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *testCLI) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "llmfit %s", strings.Join(args, " "))
	return out
}

type fitJSON struct {
	System  device.SystemSpecs `json:"system"`
	Summary struct {
		Total    int            `json:"total"`
		Runnable int            `json:"runnable"`
		ByLevel  map[string]int `json:"by_level"`
	} `json:"summary"`
	Models []struct {
		Model    model.Profile `json:"model"`
		FitLevel string        `json:"fit_level"`
		RunMode  string        `json:"run_mode"`
	} `json:"models"`
}

func decodeFit(t *testing.T, out string) fitJSON {
	t.Helper()
	var report fitJSON
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	return report
}

func catalogSize(t *testing.T) int {
	t.Helper()
	db, err := model.EmbeddedDatabase()
	require.NoError(t, err)
	return db.Len()
}

func writeProfileFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const widgetProfile = `
name: acme/Widget-13B
provider: Acme
parameter_count: 13B
min_ram_gb: 8
recommended_ram_gb: 12
min_vram_gb: 8
quantization: Q4_K_M
`

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.NotNil(t, root)
	assert.NotNil(t, root.Command())
	assert.NotNil(t, root.OutputOptions())
}

func TestRootCommand_Commands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Command().Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "system", "list", "search", "fit", "info", "catalog"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_SetOutputWriter(t *testing.T) {
	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOutputWriter(buf)

	assert.Equal(t, buf, root.OutputOptions().Writer)
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
	assert.NotEmpty(t, GetBuildDate())
	assert.NotEmpty(t, GetGitCommit())
}

func TestRootCommand_DefaultsToFit(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun()
	assert.Contains(t, out, "System:")
	assert.Contains(t, out, "Mock GPU")
	assert.Contains(t, out, "meta-llama/Llama-3.1-8B-Instruct")
	assert.Equal(t, 1, c.prober.Calls)
}

func TestRootCommand_InvalidOutputFormat(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.run("list", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, 2, unit.ExitCode(err))
}

func TestRootCommand_OutputFromEnv(t *testing.T) {
	c := newTestCLI(t)
	t.Setenv("LLMFIT_OUTPUT", "json")

	report := decodeFit(t, c.mustRun("fit"))
	assert.Equal(t, catalogSize(t), report.Summary.Total)
}

func TestRootCommand_BadConfigFile(t *testing.T) {
	c := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644))

	_, err := c.run("--config", path, "list")
	require.Error(t, err)
	assert.Equal(t, 2, unit.ExitCode(err))
}

func TestFitCommand_Table(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("fit")
	assert.Contains(t, out, "FIT")
	assert.Contains(t, out, "MODE")
	assert.Contains(t, out, "Showing")
	assert.Contains(t, out, "can run on this machine")
}

func TestFitCommand_JSON(t *testing.T) {
	c := newTestCLI(t)

	report := decodeFit(t, c.mustRun("fit", "-o", "json"))

	assert.Equal(t, catalogSize(t), report.Summary.Total)
	assert.Len(t, report.Models, report.Summary.Total)
	assert.Equal(t, "Mock GPU", report.System.GPUName)
	require.NotEmpty(t, report.Models)
	assert.NotEqual(t, "too_tight", report.Models[0].FitLevel)
}

func TestFitCommand_Filters(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, r fitJSON)
	}{
		{
			name: "limit",
			args: []string{"-n", "3"},
			check: func(t *testing.T, r fitJSON) {
				assert.Len(t, r.Models, 3)
				assert.Greater(t, r.Summary.Total, 3)
			},
		},
		{
			name: "perfect only",
			args: []string{"--perfect"},
			check: func(t *testing.T, r fitJSON) {
				for _, m := range r.Models {
					assert.Equal(t, "perfect", m.FitLevel, m.Model.Name)
				}
			},
		},
		{
			name: "min fit",
			args: []string{"--min-fit", "good"},
			check: func(t *testing.T, r fitJSON) {
				for _, m := range r.Models {
					assert.Contains(t, []string{"perfect", "good"}, m.FitLevel, m.Model.Name)
				}
			},
		},
		{
			name: "mode",
			args: []string{"--mode", "gpu"},
			check: func(t *testing.T, r fitJSON) {
				require.NotEmpty(t, r.Models)
				for _, m := range r.Models {
					assert.Equal(t, "gpu", m.RunMode, m.Model.Name)
				}
			},
		},
		{
			name: "no gpu",
			args: []string{"--no-gpu"},
			check: func(t *testing.T, r fitJSON) {
				assert.False(t, r.System.HasGPU)
				for _, m := range r.Models {
					assert.Equal(t, "cpu_only", m.RunMode, m.Model.Name)
				}
			},
		},
		{
			name: "ram override",
			args: []string{"--ram", "8GB"},
			check: func(t *testing.T, r fitJSON) {
				assert.InDelta(t, 8.0, r.System.TotalRAMGB, 0.001)
				assert.InDelta(t, 8.0, r.System.AvailableRAMGB, 0.001)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			args := append([]string{"fit", "-o", "json"}, tt.args...)
			tt.check(t, decodeFit(t, c.mustRun(args...)))
		})
	}
}

func TestFitCommand_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad min fit", []string{"--min-fit", "great"}},
		{"bad mode", []string{"--mode", "tpu"}},
		{"negative limit", []string{"-n", "-1"}},
		{"bad vram", []string{"--vram", "lots"}},
		{"non-numeric limit", []string{"-n", "ten"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			_, err := c.run(append([]string{"fit"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, 2, unit.ExitCode(err))
		})
	}
}

func TestFitCommand_ProbeFailure(t *testing.T) {
	c := newTestCLI(t)
	c.prober.Err = device.ErrProbeFailed.WithCause(errors.New("no meminfo"))

	_, err := c.run("fit")
	require.Error(t, err)
	assert.Equal(t, 4, unit.ExitCode(err))
}

func TestFitCommand_Textfile(t *testing.T) {
	c := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "collector", "llmfit.prom")

	c.mustRun("fit", "--perfect", "--textfile", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), metrics.MetricModelFitLevel)
	assert.Contains(t, string(raw), metrics.MetricSystemGPUVRAMBytes)
	// Every model is exported, not only the ones shown.
	assert.Contains(t, string(raw), "meta-llama/Llama-3.3-70B-Instruct")
}

func TestFitCommand_Quiet(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("fit", "-q")
	assert.Empty(t, out)
}

func TestInfoCommand(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("info", "Llama-3.1-8B", "-o", "json")

	var result struct {
		Model    model.Profile `json:"model"`
		FitLevel string        `json:"fit_level"`
		RunMode  string        `json:"run_mode"`
		Notes    []string      `json:"notes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", result.Model.Name)
	assert.Equal(t, "gpu", result.RunMode)
	assert.NotNil(t, result.Notes)
}

func TestInfoCommand_Table(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("info", "mixtral")
	assert.Contains(t, out, "mistralai/Mixtral-8x7B-Instruct-v0.1")
	assert.Contains(t, out, "Mixture of Experts:")
	assert.Contains(t, out, "2 active of 8")
	assert.Contains(t, out, "Run mode:")
}

func TestInfoCommand_Lookup(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.run("info", "llama")
	require.Error(t, err)
	assert.Equal(t, 3, unit.ExitCode(err))
	assert.True(t, errors.Is(err, model.ErrModelAmbiguous))

	_, err = c.run("info", "no-such-model")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrModelNotFound))

	_, err = c.run("info")
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	c := newTestCLI(t)

	var profiles []model.Profile
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("list", "-o", "json")), &profiles))
	assert.Len(t, profiles, catalogSize(t))

	out := c.mustRun("list")
	assert.Contains(t, out, "MIN VRAM")
	assert.Contains(t, out, "2/8")
}

func TestSearchCommand(t *testing.T) {
	c := newTestCLI(t)

	var profiles []model.Profile
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("search", "qwen", "-o", "json")), &profiles))
	require.NotEmpty(t, profiles)
	for _, p := range profiles {
		assert.Contains(t, strings.ToLower(p.Name), "qwen")
	}

	out := c.mustRun("search", "zzz-nothing")
	assert.Contains(t, out, `No models match "zzz-nothing"`)

	require.NoError(t, json.Unmarshal([]byte(c.mustRun("search", "zzz-nothing", "-o", "json")), &profiles))
	assert.Empty(t, profiles)
}

func TestSystemCommand(t *testing.T) {
	c := newTestCLI(t)

	var specs device.SystemSpecs
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("system", "-o", "json", "--vram", "12")), &specs))
	require.NotNil(t, specs.GPUVRAMGB)
	assert.InDelta(t, 12.0, *specs.GPUVRAMGB, 0.001)
	assert.Equal(t, "Mock CPU", specs.CPUName)

	out := c.mustRun("system")
	assert.Contains(t, out, "Mock GPU")
	assert.Contains(t, out, "cuda")
}

func TestCatalogCommand_Lifecycle(t *testing.T) {
	c := newTestCLI(t)
	path := writeProfileFile(t, widgetProfile)

	out := c.mustRun("catalog", "add", "-f", path)
	assert.Contains(t, out, "Added acme/Widget-13B")

	var stored []model.Profile
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("catalog", "list", "-o", "json")), &stored))
	require.Len(t, stored, 1)
	id := stored[0].ID
	assert.True(t, strings.HasPrefix(id, customIDPrefix), id)

	// Custom profiles take part in analysis like built-in ones.
	report := decodeFit(t, c.mustRun("fit", "-o", "json"))
	assert.Equal(t, catalogSize(t)+1, report.Summary.Total)
	c.mustRun("info", "widget")

	_, err := c.run("catalog", "add", "-f", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrModelAlreadyExists))

	c.mustRun("catalog", "remove", id)
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("catalog", "list", "-o", "json")), &stored))
	assert.Empty(t, stored)

	_, err = c.run("catalog", "rm", id)
	require.Error(t, err)
	assert.Equal(t, 3, unit.ExitCode(err))
}

func TestCatalogCommand_AddInvalid(t *testing.T) {
	c := newTestCLI(t)
	path := writeProfileFile(t, `
- name: acme/Good-1B
  min_ram_gb: 1
  recommended_ram_gb: 2
- name: acme/Bad-1B
  min_ram_gb: 10
  recommended_ram_gb: 4
`)

	_, err := c.run("catalog", "add", "-f", path)
	require.Error(t, err)
	assert.Equal(t, 2, unit.ExitCode(err))

	_, total, err := c.store.List(context.Background(), model.ProfileFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "nothing is stored when any profile is invalid")

	out := c.mustRun("catalog", "validate", "-f", writeProfileFile(t, widgetProfile))
	assert.Contains(t, out, "1 valid profile(s)")
}

func TestCatalogCommand_MissingFile(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.run("catalog", "add", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, 2, unit.ExitCode(err))
}
