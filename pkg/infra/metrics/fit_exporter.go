package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/fit"
)

const (
	MetricModelFitLevel         = "llmfit_model_fit_level"
	MetricModelUtilizationRatio = "llmfit_model_memory_utilization_ratio"
	MetricModelRequiredBytes    = "llmfit_model_memory_required_bytes"
	MetricSystemMemoryBytes     = "llmfit_system_memory_bytes"
	MetricSystemGPUVRAMBytes    = "llmfit_system_gpu_vram_bytes"
	LabelModel                  = "model"
	LabelProvider               = "provider"
	LabelRunMode                = "run_mode"
	LabelFit                    = "fit"
	LabelKind                   = "kind"
)

const (
	// maxLabelLength is the maximum length for Prometheus label values.
	maxLabelLength = 128
	// unknownLabel is used as a fallback for empty label values.
	unknownLabel = "unknown"
)

// sanitizeLabel trims value, replaces an empty value with "unknown" and
// truncates long values.
func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return unknownLabel
	}
	if len(value) > maxLabelLength {
		return value[:maxLabelLength]
	}
	return value
}

// FitExporter turns a fit report into Prometheus gauges on a private
// registry, for node_exporter's textfile collector.
type FitExporter struct {
	registry     *prometheus.Registry
	fitLevel     *prometheus.GaugeVec
	utilization  *prometheus.GaugeVec
	required     *prometheus.GaugeVec
	systemMemory *prometheus.GaugeVec
	gpuVRAM      prometheus.Gauge
}

func NewFitExporter() (*FitExporter, error) {
	e := &FitExporter{
		registry: prometheus.NewRegistry(),
		fitLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricModelFitLevel,
				Help: "Fit grade per model: 0=perfect, 1=good, 2=marginal, 3=too_tight",
			},
			[]string{LabelModel, LabelProvider, LabelRunMode, LabelFit},
		),
		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricModelUtilizationRatio,
				Help: "Required memory divided by the memory pool the model was graded against",
			},
			[]string{LabelModel},
		),
		required: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricModelRequiredBytes,
				Help: "Memory the model needs in its chosen run mode",
			},
			[]string{LabelModel},
		),
		systemMemory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricSystemMemoryBytes,
				Help: "System memory seen by the last analysis",
			},
			[]string{LabelKind},
		),
		gpuVRAM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSystemGPUVRAMBytes,
			Help: "GPU memory pool seen by the last analysis; 0 when absent or unknown",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		MetricModelFitLevel:         e.fitLevel,
		MetricModelUtilizationRatio: e.utilization,
		MetricModelRequiredBytes:    e.required,
		MetricSystemMemoryBytes:     e.systemMemory,
		MetricSystemGPUVRAMBytes:    e.gpuVRAM,
	} {
		if err := e.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register %s metric: %w", name, err)
		}
	}
	return e, nil
}

// Registry exposes the private registry, e.g. for an HTTP handler.
func (e *FitExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe replaces the exported values with specs and results.
func (e *FitExporter) Observe(specs device.SystemSpecs, results []fit.Result) {
	e.fitLevel.Reset()
	e.utilization.Reset()
	e.required.Reset()

	e.systemMemory.WithLabelValues("total").Set(Bytes(specs.TotalRAMGB))
	e.systemMemory.WithLabelValues("available").Set(Bytes(specs.AvailableRAMGB))
	if v, ok := specs.VRAM(); ok {
		e.gpuVRAM.Set(Bytes(v))
	} else {
		e.gpuVRAM.Set(0)
	}

	for _, r := range results {
		name := sanitizeLabel(r.Model.Name)
		e.fitLevel.WithLabelValues(
			name,
			sanitizeLabel(r.Model.Provider),
			r.RunMode.String(),
			r.FitLevel.String(),
		).Set(float64(r.FitLevel))
		// +Inf passes through; the text format has a spelling for it.
		e.utilization.WithLabelValues(name).Set(r.UtilizationPct / 100)
		e.required.WithLabelValues(name).Set(Bytes(r.MemoryRequiredGB))
	}
}

// WriteTextfile writes the registry atomically to path, creating the
// parent directory.
func (e *FitExporter) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write textfile: %w", err)
	}
	return nil
}
