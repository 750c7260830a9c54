//go:build !linux && !windows && !darwin

package metrics

import "context"

type systemCollector struct{}

func NewCollector() Collector {
	return &systemCollector{}
}

func (c *systemCollector) CollectMemory(ctx context.Context) (MemoryMetrics, error) {
	return MemoryMetrics{}, ErrUnsupported
}
