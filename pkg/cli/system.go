package cli

import (
	"context"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jguan/llmfit/pkg/unit/device"
)

const bytesPerGiB = 1 << 30

func NewSystemCommand(root *RootCommand) *cobra.Command {
	var hw hardwareFlags

	cmd := &cobra.Command{
		Use:     "system",
		Aliases: []string{"sys"},
		Short:   "Show the detected hardware",
		Long:    `Show the memory, CPU and GPU llmfit plans against, after any overrides.`,
		Example: `  llmfit system
  llmfit system --vram 24GB -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystem(cmd.Context(), root, hw)
		},
	}

	addHardwareFlags(cmd, &hw)

	return cmd
}

// systemView is the table form of device.SystemSpecs.
type systemView struct {
	CPU          string `json:"cpu"`
	Cores        int    `json:"cores"`
	TotalRAM     string `json:"total_ram"`
	AvailableRAM string `json:"available_ram"`
	GPU          string `json:"gpu"`
	VRAM         string `json:"vram"`
	Backend      string `json:"backend"`
}

func runSystem(ctx context.Context, root *RootCommand, hw hardwareFlags) error {
	specs, err := root.Detect(ctx, hw)
	if err != nil {
		return err
	}
	return PrintRows(newSystemView(specs), specs, root.OutputOptions())
}

func newSystemView(s *device.SystemSpecs) systemView {
	cpu := s.CPUName
	if cpu == "" {
		cpu = "Unknown CPU"
	}
	return systemView{
		CPU:          cpu,
		Cores:        s.TotalCPUCores,
		TotalRAM:     humanGB(s.TotalRAMGB),
		AvailableRAM: humanGB(s.AvailableRAMGB),
		GPU:          gpuLabel(s),
		VRAM:         vramLabel(s),
		Backend:      string(s.Backend),
	}
}

// humanGB renders binary gigabytes the way docker does, e.g. "23.99GiB".
func humanGB(gb float64) string {
	return units.BytesSize(gb * bytesPerGiB)
}

func gpuLabel(s *device.SystemSpecs) string {
	if !s.HasGPU {
		return "none"
	}
	name := s.GPUName
	if name == "" {
		name = "GPU"
	}
	if s.GPUCount > 1 {
		name = fmt.Sprintf("%dx %s", s.GPUCount, name)
	}
	return name
}

func vramLabel(s *device.SystemSpecs) string {
	vram, ok := s.VRAM()
	switch {
	case !s.HasGPU:
		return "-"
	case !ok:
		return "unknown"
	case s.UnifiedMemory:
		return humanGB(vram) + " (shared)"
	default:
		return humanGB(vram)
	}
}

// systemSummary is the one-line header printed above fit tables.
func systemSummary(s *device.SystemSpecs) string {
	line := fmt.Sprintf("%s RAM (%s available), %d cores", humanGB(s.TotalRAMGB), humanGB(s.AvailableRAMGB), s.TotalCPUCores)
	if s.HasGPU {
		line += fmt.Sprintf(", %s: %s", gpuLabel(s), vramLabel(s))
	} else {
		line += ", no GPU"
	}
	return line
}
