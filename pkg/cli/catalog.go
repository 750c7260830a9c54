package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jguan/llmfit/pkg/infra/logger"
	"github.com/jguan/llmfit/pkg/unit/model"
)

const customIDPrefix = "custom-"

func NewCatalogCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Custom model profile management commands",
		Long: `Manage the custom model profiles kept alongside the built-in catalog.

Custom profiles are stored in the configured profile store and take part in
list, search, fit and info like any built-in entry. A custom profile with
the same name as a built-in one replaces it.`,
	}

	cmd.AddCommand(NewCatalogAddCommand(root))
	cmd.AddCommand(NewCatalogListCommand(root))
	cmd.AddCommand(NewCatalogRemoveCommand(root))
	cmd.AddCommand(NewCatalogValidateCommand(root))

	return cmd
}

func NewCatalogAddCommand(root *RootCommand) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add custom profiles from a YAML file",
		Long: `Add every profile in a YAML file to the custom profile store. The file
holds either one profile mapping or a list of them. Nothing is stored
unless every profile is valid.`,
		Example: `  # Add a fine-tune that is not in the built-in catalog
  llmfit catalog add -f my-model.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogAdd(cmd.Context(), root, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Profile file path (YAML)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runCatalogAdd(ctx context.Context, root *RootCommand, path string) error {
	profiles, err := readProfiles(path)
	if err != nil {
		return err
	}

	s := root.ProfileStore()
	added := make([]model.Profile, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		p.ID = customIDPrefix + uuid.NewString()[:8]
		if err := s.Create(ctx, &p); err != nil {
			return fmt.Errorf("add %s: %w", p.Name, err)
		}
		logger.WithContext(logger.WithModel(ctx, p.Name)).Info("added custom profile", "id", p.ID)
		added = append(added, p)
	}

	opts := root.OutputOptions()
	if opts.Format != OutputTable {
		return PrintOutput(added, opts)
	}
	for _, p := range added {
		PrintSuccess(fmt.Sprintf("Added %s (%s)", p.Name, p.ID), opts)
	}
	return nil
}

// readProfiles parses and validates every profile in a YAML file.
func readProfiles(path string) ([]model.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidInput("read %s: %v", path, err)
	}

	profiles, err := model.ParseProfiles(raw)
	if err != nil {
		return nil, model.ErrInvalidProfile.WithDetails("file", path).WithCause(err)
	}
	if len(profiles) == 0 {
		return nil, invalidInput("%s holds no profiles", path)
	}

	for i := range profiles {
		if err := model.Validate(&profiles[i]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func NewCatalogListCommand(root *RootCommand) *cobra.Command {
	var (
		provider string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List custom profiles",
		Example: `  # List every custom profile
  llmfit catalog list

  # Only profiles from one provider
  llmfit catalog list --provider Meta`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd.Context(), root, model.ProfileFilter{
				Provider: provider,
				Limit:    limit,
				Offset:   offset,
			})
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many results")

	return cmd
}

func runCatalogList(ctx context.Context, root *RootCommand, filter model.ProfileFilter) error {
	if filter.Limit < 0 || filter.Offset < 0 {
		return invalidInput("--limit and --offset cannot be negative")
	}

	profiles, total, err := root.ProfileStore().List(ctx, filter)
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Debug("listed custom profiles", "shown", len(profiles), "total", total)

	opts := root.OutputOptions()
	if len(profiles) == 0 && opts.Format == OutputTable {
		PrintSuccess("No custom profiles. Add one with: llmfit catalog add -f FILE", opts)
		return nil
	}

	rows := make([]customRow, len(profiles))
	for i := range profiles {
		base := newProfileRow(&profiles[i])
		rows[i] = customRow{
			ID:       profiles[i].ID,
			Name:     base.Name,
			Provider: base.Provider,
			Params:   base.Params,
			Quant:    base.Quant,
			MinRAM:   base.MinRAM,
			MinVRAM:  base.MinVRAM,
		}
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	return PrintRows(rows, profiles, opts)
}

type customRow struct {
	ID       string `json:"ID"`
	Name     string `json:"NAME"`
	Provider string `json:"PROVIDER"`
	Params   string `json:"PARAMS"`
	Quant    string `json:"QUANT"`
	MinRAM   string `json:"MIN RAM"`
	MinVRAM  string `json:"MIN VRAM"`
}

func NewCatalogRemoveCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Remove a custom profile",
		Example: `  llmfit catalog remove custom-1a2b3c4d`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := root.ProfileStore().Delete(ctx, args[0]); err != nil {
				return err
			}
			logger.WithContext(ctx).Info("removed custom profile", "id", args[0])
			PrintSuccess(fmt.Sprintf("Removed %s", args[0]), root.OutputOptions())
			return nil
		},
	}

	return cmd
}

func NewCatalogValidateCommand(root *RootCommand) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate a profile file without storing it",
		Example: `  llmfit catalog validate --file my-model.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := readProfiles(file)
			if err != nil {
				return err
			}
			PrintSuccess(fmt.Sprintf("%s: %d valid profile(s)", file, len(profiles)), root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Profile file path (YAML)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
