// Package apple detects Apple Silicon GPUs through system_profiler.
package apple

import (
	"bufio"
	"bytes"
	"context"
	"runtime"
	"strings"

	"github.com/jguan/llmfit/pkg/infra/hal"
	"github.com/jguan/llmfit/pkg/unit/device"
)

const (
	defaultProfilerPath = "system_profiler"
	displaysDataType    = "SPDisplaysDataType"
	defaultName         = "Apple GPU"
)

type Provider struct {
	path string
	goos string
	run  hal.CommandRunner
}

type Option func(*Provider)

func WithRunner(run hal.CommandRunner) Option {
	return func(p *Provider) {
		p.run = run
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		path: defaultProfilerPath,
		goos: runtime.GOOS,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.run == nil {
		p.run = hal.ExecRunner(hal.DefaultProbeTimeout)
	}
	return p
}

func (p *Provider) Name() string {
	return "apple"
}

func (p *Provider) Vendor() string {
	return hal.VendorApple
}

func (p *Provider) Available(_ context.Context) bool {
	return p.goos == "darwin"
}

// Detect reports an Apple Silicon GPU. Its memory is the system's, so VRAM
// is left nil for the detector to fill from available RAM. Intel Macs with
// discrete AMD or Intel graphics return ErrDeviceNotFound.
func (p *Provider) Detect(ctx context.Context) (*device.GPUInfo, error) {
	if !p.Available(ctx) {
		return nil, hal.ErrNotSupported
	}
	output, err := p.run(ctx, p.path, displaysDataType)
	if err != nil {
		return nil, err
	}

	name, ok := findAppleGPU(output)
	if !ok {
		return nil, hal.ErrDeviceNotFound
	}
	return &device.GPUInfo{
		Name:          name,
		Count:         1,
		UnifiedMemory: true,
		Backend:       device.BackendMetal,
	}, nil
}

func findAppleGPU(output []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "apple m") && !strings.Contains(lower, "apple gpu") {
			continue
		}
		// "Apple M2 Pro:" heads a section; "Chipset Model: Apple M2 Pro" is a field.
		if _, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		if name := strings.TrimSuffix(line, ":"); name != "" {
			return name, true
		}
		return defaultName, true
	}
	return "", false
}
