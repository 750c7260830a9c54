package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/jguan/llmfit/pkg/config"
	"github.com/jguan/llmfit/pkg/infra/logger"
	"github.com/jguan/llmfit/pkg/infra/metrics"
	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/fit"
)

type fitOptions struct {
	perfect  bool
	limit    int
	minFit   string
	modes    []string
	textfile string
	hw       hardwareFlags
}

func NewFitCommand(root *RootCommand) *cobra.Command {
	var opts fitOptions

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Rank catalog models by how well they fit this machine",
		Long: `Analyze every catalog model against the detected hardware and print
them best first: by fit grade, then run mode (GPU before MoE offload before
CPU+GPU before CPU), then memory utilization.`,
		Example: `  # Everything that runs well on this machine
  llmfit fit --min-fit good

  # Top 5 GPU-only picks, as JSON
  llmfit fit --mode gpu -n 5 -o json

  # Plan for a 24GB card that is not installed yet
  llmfit fit --vram 24GB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.perfect, "perfect", false, "Only show models with a perfect fit")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Show at most N models (0 = all)")
	cmd.Flags().StringVar(&opts.minFit, "min-fit", "", "Worst fit grade to show (perfect, good, marginal, too_tight)")
	cmd.Flags().StringSliceVar(&opts.modes, "mode", nil, "Only show these run modes (gpu, moe_offload, cpu_offload, cpu_only)")
	cmd.Flags().StringVar(&opts.textfile, "textfile", "", "Also write Prometheus metrics for every model to this file")
	addHardwareFlags(cmd, &opts.hw)

	return cmd
}

// fitReport is the JSON/YAML form of a fit run.
type fitReport struct {
	System  *device.SystemSpecs `json:"system" yaml:"system"`
	Summary fit.Summary         `json:"summary" yaml:"summary"`
	Models  []fit.Result        `json:"models" yaml:"models"`
}

func runFit(ctx context.Context, root *RootCommand, opts fitOptions) error {
	cfg := root.Config()

	filter, err := opts.filter(cfg.Fit)
	if err != nil {
		return err
	}

	specs, err := root.Detect(ctx, opts.hw)
	if err != nil {
		return err
	}

	db, err := root.Database(ctx)
	if err != nil {
		return err
	}

	results := fit.AnalyzeAll(db.All(), *specs, cfg.Fit.Parallel)
	logger.WithContext(ctx).Debug("analyzed catalog", "models", len(results), "parallel", cfg.Fit.Parallel)

	textfile := opts.textfile
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}
	if textfile != "" {
		if err := exportTextfile(textfile, specs, results); err != nil {
			return err
		}
	}

	ranked := filter.Apply(results)
	out := root.OutputOptions()

	if out.Format != OutputTable {
		return PrintOutput(fitReport{
			System:  specs,
			Summary: fit.Summarize(results),
			Models:  ranked,
		}, out)
	}

	if out.Quiet {
		return nil
	}
	fmt.Fprintf(out.Writer, "System: %s\n\n", systemSummary(specs))
	if len(ranked) == 0 {
		fmt.Fprintln(out.Writer, "No models match the filters.")
		return nil
	}

	rows := make([]fitRow, len(ranked))
	for i := range ranked {
		rows[i] = newFitRow(&ranked[i])
	}
	if err := PrintOutput(rows, out); err != nil {
		return err
	}

	summary := fit.Summarize(results)
	fmt.Fprintf(out.Writer, "\nShowing %d of %d models; %d can run on this machine.\n",
		len(ranked), summary.Total, summary.Runnable)
	return nil
}

// filter turns flags and the [fit] config section into a fit.Filter.
// Flags win over config.
func (o fitOptions) filter(cfg config.FitConfig) (fit.Filter, error) {
	f := fit.Filter{
		PerfectOnly: o.perfect || cfg.PerfectOnly,
		Limit:       cfg.Limit,
	}
	if o.limit < 0 {
		return f, invalidInput("--limit cannot be negative, got %d", o.limit)
	}
	if o.limit > 0 {
		f.Limit = o.limit
	}

	if o.minFit != "" {
		level, err := fit.ParseFitLevel(o.minFit)
		if err != nil {
			return f, invalidInput("%v", err)
		}
		f.MinLevel = &level
	}

	for _, m := range o.modes {
		mode, err := fit.ParseRunMode(m)
		if err != nil {
			return f, invalidInput("%v", err)
		}
		f.Modes = append(f.Modes, mode)
	}
	return f, nil
}

func exportTextfile(path string, specs *device.SystemSpecs, results []fit.Result) error {
	exporter, err := metrics.NewFitExporter()
	if err != nil {
		return err
	}
	exporter.Observe(*specs, fit.Rank(results))
	return exporter.WriteTextfile(path)
}

type fitRow struct {
	Status   string `json:"FIT"`
	Name     string `json:"MODEL"`
	Provider string `json:"PROVIDER"`
	Params   string `json:"PARAMS"`
	Mode     string `json:"MODE"`
	Memory   string `json:"MEMORY"`
	Util     string `json:"UTIL"`
	Quant    string `json:"QUANT"`
}

func newFitRow(r *fit.Result) fitRow {
	return fitRow{
		Status:   r.FitLevel.Label(),
		Name:     r.Model.Name,
		Provider: r.Model.Provider,
		Params:   orDash(r.Model.ParameterCount),
		Mode:     r.RunMode.Label(),
		Memory:   fmt.Sprintf("%.1f / %.1f GB", r.MemoryRequiredGB, r.MemoryAvailableGB),
		Util:     utilLabel(r.UtilizationPct),
		Quant:    orDash(string(r.Model.Quantization)),
	}
}

func utilLabel(pct float64) string {
	if math.IsInf(pct, 1) || math.IsNaN(pct) {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", pct)
}
