package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jguan/llmfit/pkg/config"
	"github.com/jguan/llmfit/pkg/infra/hal"
	"github.com/jguan/llmfit/pkg/unit"
)

const envPrefix = "LLMFIT"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindCommandToViper binds every flag the running command sees, so an
// LLMFIT_<FLAG> variable fills any flag not given on the command line.
func bindCommandToViper(v *viper.Viper, cmd *cobra.Command) {
	bindFlagsToViper(v, cmd.PersistentFlags())
	bindFlagsToViper(v, cmd.Flags())
}

func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(flag *pflag.Flag) {
		_ = v.BindPFlag(flag.Name, flag)
		if strings.HasSuffix(flag.Value.Type(), "Slice") {
			return
		}
		_ = v.BindEnv(flag.Name)

		if !flag.Changed && v.IsSet(flag.Name) {
			_ = fs.Set(flag.Name, fmt.Sprintf("%v", v.Get(flag.Name)))
		}
	})
}

// hardwareFlags are the per-command overrides shared by fit and info.
type hardwareFlags struct {
	vram  string
	ram   string
	noGPU bool
}

func addHardwareFlags(cmd *cobra.Command, hw *hardwareFlags) {
	cmd.Flags().StringVar(&hw.vram, "vram", "", "Assume this much GPU memory (e.g. 24GB)")
	cmd.Flags().StringVar(&hw.ram, "ram", "", "Assume this much system memory (e.g. 64GB)")
	cmd.Flags().BoolVar(&hw.noGPU, "no-gpu", false, "Plan as if no GPU were present")
}

// overrides layers the command flags over the configured hardware
// overrides.
func (hw hardwareFlags) overrides(cfg config.HardwareConfig) (hal.Overrides, error) {
	o := hal.Overrides{
		DisableGPU: cfg.DisableGPU || hw.noGPU,
		VRAMGB:     cfg.VRAMOverrideGB,
		RAMGB:      cfg.RAMOverrideGB,
		CPUCores:   cfg.CPUCoresOverride,
	}

	if hw.vram != "" {
		gb, err := config.ParseSizeGB(hw.vram)
		if err != nil {
			return o, invalidInput("invalid --vram %q: %v", hw.vram, err)
		}
		o.VRAMGB = gb
	}
	if hw.ram != "" {
		gb, err := config.ParseSizeGB(hw.ram)
		if err != nil {
			return o, invalidInput("invalid --ram %q: %v", hw.ram, err)
		}
		o.RAMGB = gb
	}
	return o, nil
}

func invalidInput(format string, args ...any) *unit.UnitError {
	return unit.NewError(unit.ErrCodeInvalidInput, fmt.Sprintf(format, args...))
}
