package model

import (
	"fmt"
	"strings"
)

// Validate checks the invariants a catalog entry must hold before it is
// offered to the analyzer. It is a boundary check for loaders and for
// user-added profiles; analysis itself never rejects a profile.
func Validate(p *Profile) error {
	var problems []string

	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.MinRAMGB < 0 {
		problems = append(problems, fmt.Sprintf("min_ram_gb must not be negative, got %.2f", p.MinRAMGB))
	}
	if p.RecommendedRAMGB < p.MinRAMGB {
		problems = append(problems, fmt.Sprintf("recommended_ram_gb (%.2f) is below min_ram_gb (%.2f)",
			p.RecommendedRAMGB, p.MinRAMGB))
	}
	if p.MinVRAMGB != nil && *p.MinVRAMGB < 0 {
		problems = append(problems, fmt.Sprintf("min_vram_gb must not be negative, got %.2f", *p.MinVRAMGB))
	}
	if p.NumExperts != nil && p.ActiveExperts != nil && *p.ActiveExperts > *p.NumExperts {
		problems = append(problems, fmt.Sprintf("active_experts (%d) exceeds num_experts (%d)",
			*p.ActiveExperts, *p.NumExperts))
	}
	if p.ActiveParameters != nil && p.TotalParametersRaw != nil && *p.ActiveParameters > *p.TotalParametersRaw {
		problems = append(problems, fmt.Sprintf("active_parameters (%d) exceeds parameters_raw (%d)",
			*p.ActiveParameters, *p.TotalParametersRaw))
	}

	if len(problems) == 0 {
		return nil
	}
	return ErrInvalidProfile.
		WithDetails("name", p.Name).
		WithDetails("problems", problems).
		WithCause(fmt.Errorf("%s", strings.Join(problems, "; ")))
}
