// Package generic reports the host CPU from portable sources.
package generic

import (
	"bufio"
	"context"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jguan/llmfit/pkg/infra/hal"
)

const defaultCPUInfoPath = "/proc/cpuinfo"

// Provider is a hal.CPUProvider. Cores is always runtime.NumCPU; the name
// comes from /proc/cpuinfo, then the platform, then GOARCH.
type Provider struct {
	cpuinfoPath string
	numCPU      func() int
}

type Option func(*Provider)

func WithCPUInfoPath(path string) Option {
	return func(p *Provider) {
		p.cpuinfoPath = path
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		cpuinfoPath: defaultCPUInfoPath,
		numCPU:      runtime.NumCPU,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "generic"
}

func (p *Provider) CPU(ctx context.Context) (*hal.CPUInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := &hal.CPUInfo{
		Cores:  p.numCPU(),
		Vendor: hal.VendorUnknown,
	}

	if file, err := os.Open(p.cpuinfoPath); err == nil {
		name, vendor := parseCPUInfo(file)
		file.Close()
		info.Name = name
		if vendor != "" {
			info.Vendor = vendor
		}
	}
	if info.Name == "" {
		info.Name = platformCPUName()
	}
	if info.Name == "" {
		info.Name = runtime.GOARCH
	}
	return info, nil
}

// parseCPUInfo returns the first "model name" and the vendor of the first
// processor block. ARM kernels often omit "model name".
func parseCPUInfo(r io.Reader) (name, vendor string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "model name", "Model":
			if name == "" {
				name = value
			}
		case "vendor_id":
			if vendor == "" {
				vendor = normalizeVendor(value)
			}
		}
	}
	return name, vendor
}

func normalizeVendor(id string) string {
	switch id {
	case "GenuineIntel":
		return hal.VendorIntel
	case "AuthenticAMD":
		return hal.VendorAMD
	default:
		return id
	}
}
