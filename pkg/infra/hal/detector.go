package hal

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/jguan/llmfit/pkg/infra/cache"
	"github.com/jguan/llmfit/pkg/infra/logger"
	"github.com/jguan/llmfit/pkg/infra/metrics"
	"github.com/jguan/llmfit/pkg/unit/device"
)

const (
	specsCacheKey   = "system-specs"
	defaultCacheTTL = 30 * time.Second
)

// MemoryCollector reads system memory totals.
type MemoryCollector interface {
	CollectMemory(ctx context.Context) (metrics.MemoryMetrics, error)
}

// Overrides replace probed values. Nil and zero fields leave the probe
// result alone.
type Overrides struct {
	DisableGPU bool
	VRAMGB     *float64
	RAMGB      *float64
	CPUCores   int
}

// Detector builds a device.SystemSpecs snapshot from a memory collector, an
// optional CPU provider and an ordered list of GPU providers. The first GPU
// provider that finds a device wins.
type Detector struct {
	gpus      []GPUProvider
	cpu       CPUProvider
	memory    MemoryCollector
	overrides Overrides
	cacheTTL  time.Duration
	cache     *cache.Cache[device.SystemSpecs]
}

type DetectorOption func(*Detector)

func WithGPUProviders(providers ...GPUProvider) DetectorOption {
	return func(d *Detector) {
		d.gpus = providers
	}
}

func WithCPUProvider(p CPUProvider) DetectorOption {
	return func(d *Detector) {
		d.cpu = p
	}
}

func WithMemoryCollector(c MemoryCollector) DetectorOption {
	return func(d *Detector) {
		d.memory = c
	}
}

func WithOverrides(o Overrides) DetectorOption {
	return func(d *Detector) {
		d.overrides = o
	}
}

// WithCacheTTL sets how long a snapshot is reused. Zero or less disables
// caching.
func WithCacheTTL(ttl time.Duration) DetectorOption {
	return func(d *Detector) {
		d.cacheTTL = ttl
	}
}

func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		memory:   metrics.NewCollector(),
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cacheTTL > 0 {
		d.cache = cache.New[device.SystemSpecs](cache.WithTTL(d.cacheTTL), cache.WithMaxSize(1))
	}
	return d
}

// Detect probes the machine. Only a failed memory probe is an error; GPU
// and CPU probe failures are logged and degrade the snapshot.
func (d *Detector) Detect(ctx context.Context) (*device.SystemSpecs, error) {
	log := logger.WithContext(ctx)

	if d.cache != nil {
		if specs, ok := d.cache.Get(specsCacheKey); ok {
			log.Debug("using cached hardware snapshot")
			c := specs.Clone()
			return &c, nil
		}
	}

	mem, err := d.memory.CollectMemory(ctx)
	if err != nil {
		return nil, device.ErrProbeFailed.WithDetails("probe", "memory").WithCause(err)
	}

	specs := device.SystemSpecs{
		TotalRAMGB:     metrics.GiB(mem.Total),
		AvailableRAMGB: metrics.GiB(mem.Available),
		TotalCPUCores:  runtime.NumCPU(),
		Backend:        device.BackendNone,
	}

	if d.cpu != nil {
		if info, err := d.cpu.CPU(ctx); err != nil {
			log.Debug("cpu probe failed", "error", err)
		} else {
			specs.CPUName = info.Name
			if info.Cores > 0 {
				specs.TotalCPUCores = info.Cores
			}
		}
	}

	if !d.overrides.DisableGPU {
		d.detectGPU(ctx, log, &specs)
	}

	d.overrides.Apply(&specs)
	specs.Normalize()

	log.Info("hardware detected",
		"ram_total_gb", specs.TotalRAMGB,
		"ram_available_gb", specs.AvailableRAMGB,
		"cores", specs.TotalCPUCores,
		"has_gpu", specs.HasGPU,
		"backend", specs.Backend)

	if d.cache != nil {
		d.cache.Set(specsCacheKey, specs.Clone(), 0)
	}
	return &specs, nil
}

// Invalidate drops the cached snapshot.
func (d *Detector) Invalidate() {
	if d.cache != nil {
		d.cache.Clear()
	}
}

func (d *Detector) detectGPU(ctx context.Context, log *slog.Logger, specs *device.SystemSpecs) {
	for _, p := range d.gpus {
		if !p.Available(ctx) {
			log.Debug("gpu provider not available", "provider", p.Name())
			continue
		}

		info, err := p.Detect(ctx)
		if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrNotSupported) {
			log.Debug("no gpu from provider", "provider", p.Name())
			continue
		}
		if err != nil {
			log.Warn("gpu probe failed, continuing without it", "provider", p.Name(), "error", err)
			continue
		}
		if info == nil {
			continue
		}

		specs.HasGPU = true
		specs.GPUName = info.Name
		specs.GPUCount = max(info.Count, 1)
		specs.Backend = info.Backend
		specs.UnifiedMemory = info.UnifiedMemory
		if info.VRAMGB != nil {
			v := *info.VRAMGB
			specs.GPUVRAMGB = &v
		}
		if info.UnifiedMemory && info.VRAMGB == nil {
			// The shared pool is whatever system memory is free.
			pool := specs.AvailableRAMGB
			specs.GPUVRAMGB = &pool
		}
		if specs.GPUVRAMGB == nil {
			log.Warn("gpu found but vram could not be read", "provider", p.Name(), "gpu", info.Name)
		}
		return
	}
}

// Apply writes the overrides onto specs. It is idempotent, so callers that
// hold a snapshot from another Prober can apply the same overrides.
func (o Overrides) Apply(specs *device.SystemSpecs) {
	if o.DisableGPU {
		specs.HasGPU = false
	}
	if o.RAMGB != nil {
		specs.TotalRAMGB = *o.RAMGB
		specs.AvailableRAMGB = *o.RAMGB
		if specs.UnifiedMemory && o.VRAMGB == nil {
			pool := *o.RAMGB
			specs.GPUVRAMGB = &pool
		}
	}
	if o.VRAMGB != nil && !o.DisableGPU {
		v := *o.VRAMGB
		specs.HasGPU = true
		specs.GPUVRAMGB = &v
		if specs.GPUName == "" {
			specs.GPUName = "override"
			specs.GPUCount = 1
		}
	}
	if o.CPUCores > 0 {
		specs.TotalCPUCores = o.CPUCores
	}
}
