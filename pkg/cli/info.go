package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jguan/llmfit/pkg/infra/logger"
	"github.com/jguan/llmfit/pkg/unit/fit"
	"github.com/jguan/llmfit/pkg/unit/model"
)

func NewInfoCommand(root *RootCommand) *cobra.Command {
	var hw hardwareFlags

	cmd := &cobra.Command{
		Use:   "info MODEL",
		Short: "Show one model and how it would run here",
		Long: `Show the catalog entry for MODEL and the full fit analysis for this
machine. MODEL may be the exact name or any unambiguous part of it.`,
		Example: `  llmfit info mixtral
  llmfit info "Llama-3.1-8B-Instruct" --no-gpu`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), root, args[0], hw)
		},
	}

	addHardwareFlags(cmd, &hw)

	return cmd
}

func runInfo(ctx context.Context, root *RootCommand, query string, hw hardwareFlags) error {
	db, err := root.Database(ctx)
	if err != nil {
		return err
	}

	profile, err := db.Lookup(query)
	if err != nil {
		return err
	}
	ctx = logger.WithModel(ctx, profile.Name)

	specs, err := root.Detect(ctx, hw)
	if err != nil {
		return err
	}

	result := fit.Analyze(*profile, *specs)
	logger.WithContext(ctx).Debug("analyzed model",
		"fit", result.FitLevel.String(), "mode", result.RunMode.String())

	out := root.OutputOptions()
	if out.Format != OutputTable {
		return PrintOutput(result, out)
	}
	if out.Quiet {
		return nil
	}
	printInfo(out.Writer, &result)
	return nil
}

func printInfo(w io.Writer, r *fit.Result) {
	p := &r.Model

	fmt.Fprintf(w, "%s\n%s\n", p.Name, strings.Repeat("=", len(p.Name)))
	fmt.Fprintf(w, "Provider:      %s\n", orDash(p.Provider))
	fmt.Fprintf(w, "Parameters:    %s\n", orDash(p.ParameterCount))
	fmt.Fprintf(w, "Quantization:  %s\n", orDash(string(p.Quantization)))
	if p.ContextLength > 0 {
		fmt.Fprintf(w, "Context:       %d tokens\n", p.ContextLength)
	}
	if p.UseCase != "" {
		fmt.Fprintf(w, "Use case:      %s\n", p.UseCase)
	}
	fmt.Fprintf(w, "Min RAM:       %.1f GB\n", p.MinRAMGB)
	fmt.Fprintf(w, "Rec RAM:       %.1f GB\n", p.RecommendedRAMGB)
	if p.MinVRAMGB != nil {
		fmt.Fprintf(w, "Min VRAM:      %.1f GB\n", *p.MinVRAMGB)
	}

	if p.IsMoE {
		printMoE(w, p)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Fit:           %s\n", r.FitLevel.Label())
	fmt.Fprintf(w, "Run mode:      %s\n", r.RunMode.Label())
	fmt.Fprintf(w, "Memory:        %.1f GB required / %.1f GB available\n", r.MemoryRequiredGB, r.MemoryAvailableGB)
	fmt.Fprintf(w, "Utilization:   %s\n", utilLabel(r.UtilizationPct))
	if r.MoEOffloadedGB != nil {
		fmt.Fprintf(w, "Offloaded:     %.1f GB of inactive experts in RAM\n", *r.MoEOffloadedGB)
	}

	if len(r.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range r.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
}

func printMoE(w io.Writer, p *model.Profile) {
	fmt.Fprintln(w, "\nMixture of Experts:")
	if p.NumExperts != nil && p.ActiveExperts != nil {
		fmt.Fprintf(w, "  Experts:     %d active of %d\n", *p.ActiveExperts, *p.NumExperts)
	}
	if p.ActiveParameters != nil {
		fmt.Fprintf(w, "  Active:      %.1fB parameters\n", float64(*p.ActiveParameters)/1e9)
	}
	if p.TotalParametersRaw != nil {
		fmt.Fprintf(w, "  Total:       %.1fB parameters\n", float64(*p.TotalParametersRaw)/1e9)
	}
	if gb, ok := p.ActiveExpertVRAMGB(); ok {
		fmt.Fprintf(w, "  Active VRAM: %.1f GB\n", gb)
	}
	if !p.HasMoEParams() {
		fmt.Fprintln(w, "  Expert parameters incomplete; planned as a dense model.")
	}
}
