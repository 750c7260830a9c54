// Package nvidia detects NVIDIA GPUs through nvidia-smi.
package nvidia

import (
	"context"
	"strings"

	"github.com/jguan/llmfit/pkg/infra/hal"
	"github.com/jguan/llmfit/pkg/unit/device"
)

const mibPerGiB = 1024

type smiInterface interface {
	Available(ctx context.Context) bool
	Query(ctx context.Context) (*smiOutput, error)
}

type Provider struct {
	path string
	run  hal.CommandRunner
	smi  smiInterface
}

type Option func(*Provider)

func WithSMIPath(path string) Option {
	return func(p *Provider) {
		p.path = path
	}
}

// WithRunner replaces the command runner, mostly for tests.
func WithRunner(run hal.CommandRunner) Option {
	return func(p *Provider) {
		p.run = run
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.smi = NewSMI(p.path, p.run)
	return p
}

func (p *Provider) Name() string {
	return "nvidia"
}

func (p *Provider) Vendor() string {
	return hal.VendorNVIDIA
}

func (p *Provider) Available(ctx context.Context) bool {
	return p.smi.Available(ctx)
}

// Detect reports every board nvidia-smi lists as one pool: VRAM is the sum
// across boards and the name is the first board's. VRAM stays nil when any
// board reports an unreadable total.
func (p *Provider) Detect(ctx context.Context) (*device.GPUInfo, error) {
	output, err := p.smi.Query(ctx)
	if err != nil {
		return nil, err
	}
	if len(output.GPUs) == 0 {
		return nil, hal.ErrDeviceNotFound
	}

	info := &device.GPUInfo{
		Name:    strings.TrimSpace(output.GPUs[0].ProductName),
		Count:   len(output.GPUs),
		Backend: device.BackendCUDA,
	}

	var totalMiB float64
	known := true
	for _, gpu := range output.GPUs {
		mib, ok := parseMemoryMiB(gpu.FBMemoryUsage.Total)
		if !ok {
			known = false
			break
		}
		totalMiB += mib
	}
	if known {
		gb := totalMiB / mibPerGiB
		info.VRAMGB = &gb
	}
	return info, nil
}
