package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jguan/llmfit/pkg/unit/model"
)

func NewListCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every model in the catalog",
		Long:    `List the built-in catalog together with any custom profiles.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.Database(cmd.Context())
			if err != nil {
				return err
			}
			return printProfiles(db.All(), root.OutputOptions())
		},
	}

	return cmd
}

func NewSearchCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the catalog by name, provider or size",
		Example: `  llmfit search llama
  llmfit search 7b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), root, args[0])
		},
	}

	return cmd
}

func runSearch(ctx context.Context, root *RootCommand, query string) error {
	db, err := root.Database(ctx)
	if err != nil {
		return err
	}

	matches := db.Find(query)
	if len(matches) == 0 && root.OutputOptions().Format == OutputTable {
		PrintSuccess(fmt.Sprintf("No models match %q", query), root.OutputOptions())
		return nil
	}
	return printProfiles(matches, root.OutputOptions())
}

type profileRow struct {
	Name     string `json:"NAME"`
	Provider string `json:"PROVIDER"`
	Params   string `json:"PARAMS"`
	Quant    string `json:"QUANT"`
	MinRAM   string `json:"MIN RAM"`
	RecRAM   string `json:"REC RAM"`
	MinVRAM  string `json:"MIN VRAM"`
	Context  string `json:"CONTEXT"`
	MoE      string `json:"MOE"`
}

func newProfileRow(p *model.Profile) profileRow {
	row := profileRow{
		Name:     p.Name,
		Provider: p.Provider,
		Params:   orDash(p.ParameterCount),
		Quant:    orDash(string(p.Quantization)),
		MinRAM:   fmt.Sprintf("%.1f GB", p.MinRAMGB),
		RecRAM:   fmt.Sprintf("%.1f GB", p.RecommendedRAMGB),
		MinVRAM:  "-",
		Context:  "-",
		MoE:      "-",
	}
	if p.MinVRAMGB != nil {
		row.MinVRAM = fmt.Sprintf("%.1f GB", *p.MinVRAMGB)
	}
	if p.ContextLength > 0 {
		row.Context = fmt.Sprintf("%dk", p.ContextLength/1024)
	}
	if p.IsMoE {
		row.MoE = "yes"
		if p.NumExperts != nil && p.ActiveExperts != nil {
			row.MoE = fmt.Sprintf("%d/%d", *p.ActiveExperts, *p.NumExperts)
		}
	}
	return row
}

func printProfiles(profiles []model.Profile, opts *OutputOptions) error {
	rows := make([]profileRow, len(profiles))
	for i := range profiles {
		rows[i] = newProfileRow(&profiles[i])
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	return PrintRows(rows, profiles, opts)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
