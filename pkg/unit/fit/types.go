// Package fit decides how a model would run on a machine and how well it
// fits, then orders many such decisions best first.
package fit

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/jguan/llmfit/pkg/unit/model"
)

// FitLevel grades how comfortably a model's memory needs are met. The zero
// value is the best grade and larger values sort later.
type FitLevel int

const (
	Perfect FitLevel = iota
	Good
	Marginal
	TooTight
)

var fitLevelNames = [...]string{"perfect", "good", "marginal", "too_tight"}
var fitLevelLabels = [...]string{"Perfect", "Good", "Marginal", "Too Tight"}

func (l FitLevel) valid() bool { return l >= Perfect && l <= TooTight }

func (l FitLevel) String() string {
	if !l.valid() {
		return fmt.Sprintf("FitLevel(%d)", int(l))
	}
	return fitLevelNames[l]
}

// Label is the display form, e.g. "Too Tight".
func (l FitLevel) Label() string {
	if !l.valid() {
		return l.String()
	}
	return fitLevelLabels[l]
}

func (l FitLevel) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("invalid fit level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *FitLevel) UnmarshalText(text []byte) error {
	v, err := ParseFitLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseFitLevel accepts the wire name or the display label, ignoring case.
func ParseFitLevel(s string) (FitLevel, error) {
	key := normalizeName(s)
	for i, name := range fitLevelNames {
		if key == name {
			return FitLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fit level %q (want perfect, good, marginal or too_tight)", s)
}

// RunMode is the execution path chosen for a model. Lower values are
// preferred when fit levels tie.
type RunMode int

const (
	GPU RunMode = iota
	MoEOffload
	CPUOffload
	CPUOnly
)

var runModeNames = [...]string{"gpu", "moe_offload", "cpu_offload", "cpu_only"}
var runModeLabels = [...]string{"GPU", "MoE", "CPU+GPU", "CPU"}

func (m RunMode) valid() bool { return m >= GPU && m <= CPUOnly }

func (m RunMode) String() string {
	if !m.valid() {
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
	return runModeNames[m]
}

// Label is the short display form used in tables.
func (m RunMode) Label() string {
	if !m.valid() {
		return m.String()
	}
	return runModeLabels[m]
}

func (m RunMode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("invalid run mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *RunMode) UnmarshalText(text []byte) error {
	v, err := ParseRunMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseRunMode accepts the wire name or the display label, ignoring case.
func ParseRunMode(s string) (RunMode, error) {
	key := normalizeName(s)
	for i, name := range runModeNames {
		if key == name || key == normalizeName(runModeLabels[i]) {
			return RunMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown run mode %q (want gpu, moe_offload, cpu_offload or cpu_only)", s)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Result is the outcome of analyzing one model against one machine. It owns
// a copy of the profile and is never updated after Analyze returns.
// UtilizationPct is +Inf when the chosen pool is empty.
type Result struct {
	Model             model.Profile `json:"model" yaml:"model"`
	FitLevel          FitLevel      `json:"fit_level" yaml:"fit_level"`
	RunMode           RunMode       `json:"run_mode" yaml:"run_mode"`
	MemoryRequiredGB  float64       `json:"memory_required_gb" yaml:"memory_required_gb"`
	MemoryAvailableGB float64       `json:"memory_available_gb" yaml:"memory_available_gb"`
	UtilizationPct    float64       `json:"utilization_pct" yaml:"utilization_pct"`
	Notes             []string      `json:"notes" yaml:"notes"`
	MoEOffloadedGB    *float64      `json:"moe_offloaded_gb,omitempty" yaml:"moe_offloaded_gb,omitempty"`
}

type resultJSON struct {
	Model             model.Profile `json:"model"`
	FitLevel          FitLevel      `json:"fit_level"`
	RunMode           RunMode       `json:"run_mode"`
	MemoryRequiredGB  float64       `json:"memory_required_gb"`
	MemoryAvailableGB float64       `json:"memory_available_gb"`
	UtilizationPct    *float64      `json:"utilization_pct"`
	Notes             []string      `json:"notes"`
	MoEOffloadedGB    *float64      `json:"moe_offloaded_gb,omitempty"`
}

// MarshalJSON writes an infinite utilization as null, since JSON has no
// representation for it.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Model:             r.Model,
		FitLevel:          r.FitLevel,
		RunMode:           r.RunMode,
		MemoryRequiredGB:  r.MemoryRequiredGB,
		MemoryAvailableGB: r.MemoryAvailableGB,
		Notes:             r.Notes,
		MoEOffloadedGB:    r.MoEOffloadedGB,
	}
	if out.Notes == nil {
		out.Notes = []string{}
	}
	if !math.IsInf(r.UtilizationPct, 0) && !math.IsNaN(r.UtilizationPct) {
		u := r.UtilizationPct
		out.UtilizationPct = &u
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null utilization back as +Inf.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Model:             in.Model,
		FitLevel:          in.FitLevel,
		RunMode:           in.RunMode,
		MemoryRequiredGB:  in.MemoryRequiredGB,
		MemoryAvailableGB: in.MemoryAvailableGB,
		UtilizationPct:    math.Inf(1),
		Notes:             in.Notes,
		MoEOffloadedGB:    in.MoEOffloadedGB,
	}
	if in.UtilizationPct != nil {
		r.UtilizationPct = *in.UtilizationPct
	}
	return nil
}
