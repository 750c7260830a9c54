// Package rocm detects AMD GPUs through rocm-smi.
package rocm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jguan/llmfit/pkg/infra/hal"
	"github.com/jguan/llmfit/pkg/unit/device"
)

const (
	defaultSMIPath = "rocm-smi"
	bytesPerGiB    = 1 << 30

	keyVRAMTotal  = "VRAM Total Memory (B)"
	keyCardSeries = "Card series"
	defaultName   = "AMD GPU"
)

type Provider struct {
	path string
	run  hal.CommandRunner
}

type Option func(*Provider)

func WithSMIPath(path string) Option {
	return func(p *Provider) {
		p.path = path
	}
}

func WithRunner(run hal.CommandRunner) Option {
	return func(p *Provider) {
		p.run = run
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{path: defaultSMIPath}
	for _, opt := range opts {
		opt(p)
	}
	if p.run == nil {
		p.run = hal.ExecRunner(hal.DefaultProbeTimeout)
	}
	return p
}

func (p *Provider) Name() string {
	return "rocm"
}

func (p *Provider) Vendor() string {
	return hal.VendorAMD
}

func (p *Provider) Available(ctx context.Context) bool {
	_, err := p.run(ctx, p.path, "--version")
	return err == nil
}

// Detect sums VRAM over every card rocm-smi reports. A working rocm-smi
// whose output cannot be read still means an AMD GPU is present, so that
// case returns a GPU with unknown VRAM rather than an error.
func (p *Provider) Detect(ctx context.Context) (*device.GPUInfo, error) {
	output, err := p.run(ctx, p.path, "--showmeminfo", "vram", "--showproductname", "--json")
	if err != nil {
		return nil, err
	}

	info := &device.GPUInfo{
		Name:    defaultName,
		Count:   1,
		Backend: device.BackendROCm,
	}

	cards, err := parseCards(output)
	if err != nil {
		return info, nil
	}
	if len(cards) == 0 {
		return nil, hal.ErrDeviceNotFound
	}

	ids := make([]string, 0, len(cards))
	for id := range cards {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	info.Count = len(ids)
	if series := strings.TrimSpace(cards[ids[0]][keyCardSeries]); series != "" {
		info.Name = series
	}

	var total float64
	for _, id := range ids {
		b, err := strconv.ParseUint(strings.TrimSpace(cards[id][keyVRAMTotal]), 10, 64)
		if err != nil {
			return info, nil
		}
		total += float64(b)
	}
	gb := total / bytesPerGiB
	info.VRAMGB = &gb
	return info, nil
}

// parseCards keeps the "cardN" objects of rocm-smi's JSON and drops the
// "system" block newer releases add.
func parseCards(output []byte) (map[string]map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parse rocm-smi output: %w", err)
	}
	cards := make(map[string]map[string]string)
	for id, body := range raw {
		if !strings.HasPrefix(id, "card") {
			continue
		}
		var fields map[string]string
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("parse rocm-smi %s: %w", id, err)
		}
		cards[id] = fields
	}
	return cards, nil
}
