package model

// Quantization is the weight format label of a catalog entry, e.g. "Q4_K_M".
// Labels outside the known set are accepted and costed at the 4-bit rate.
type Quantization string

const (
	QuantF32  Quantization = "F32"
	QuantF16  Quantization = "F16"
	QuantBF16 Quantization = "BF16"
	QuantQ8_0 Quantization = "Q8_0"
	QuantQ6K  Quantization = "Q6_K"
	QuantQ5KM Quantization = "Q5_K_M"
	QuantQ4KM Quantization = "Q4_K_M"
	QuantQ4_0 Quantization = "Q4_0"
	QuantQ3KM Quantization = "Q3_K_M"
	QuantQ2K  Quantization = "Q2_K"
)

// Profile is the declared resource cost of one catalog model. Pointer fields
// are optional; nil means the catalog does not state the value.
type Profile struct {
	// ID is only set for user-added profiles held in a ProfileStore.
	ID               string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name             string       `json:"name" yaml:"name"`
	Provider         string       `json:"provider" yaml:"provider"`
	ParameterCount   string       `json:"parameter_count,omitempty" yaml:"parameter_count,omitempty"`
	MinRAMGB         float64      `json:"min_ram_gb" yaml:"min_ram_gb"`
	RecommendedRAMGB float64      `json:"recommended_ram_gb" yaml:"recommended_ram_gb"`
	MinVRAMGB        *float64     `json:"min_vram_gb,omitempty" yaml:"min_vram_gb,omitempty"`
	Quantization     Quantization `json:"quantization" yaml:"quantization"`
	ContextLength    uint32       `json:"context_length,omitempty" yaml:"context_length,omitempty"`
	UseCase          string       `json:"use_case,omitempty" yaml:"use_case,omitempty"`

	IsMoE              bool    `json:"is_moe,omitempty" yaml:"is_moe,omitempty"`
	NumExperts         *uint32 `json:"num_experts,omitempty" yaml:"num_experts,omitempty"`
	ActiveExperts      *uint32 `json:"active_experts,omitempty" yaml:"active_experts,omitempty"`
	ActiveParameters   *uint64 `json:"active_parameters,omitempty" yaml:"active_parameters,omitempty"`
	TotalParametersRaw *uint64 `json:"parameters_raw,omitempty" yaml:"parameters_raw,omitempty"`
}

// HasMoEParams reports whether the profile carries every field expert
// offload analysis needs. An MoE profile missing any of them is planned
// like a dense model.
func (p *Profile) HasMoEParams() bool {
	return p.IsMoE &&
		p.NumExperts != nil &&
		p.ActiveExperts != nil &&
		p.ActiveParameters != nil &&
		p.TotalParametersRaw != nil
}

// Clone returns a deep copy so results never alias catalog entries.
func (p Profile) Clone() Profile {
	c := p
	if p.MinVRAMGB != nil {
		v := *p.MinVRAMGB
		c.MinVRAMGB = &v
	}
	if p.NumExperts != nil {
		v := *p.NumExperts
		c.NumExperts = &v
	}
	if p.ActiveExperts != nil {
		v := *p.ActiveExperts
		c.ActiveExperts = &v
	}
	if p.ActiveParameters != nil {
		v := *p.ActiveParameters
		c.ActiveParameters = &v
	}
	if p.TotalParametersRaw != nil {
		v := *p.TotalParametersRaw
		c.TotalParametersRaw = &v
	}
	return c
}

// ProfileFilter holds filtering parameters for listing stored profiles.
type ProfileFilter struct {
	Provider string
	Limit    int
	Offset   int
}
