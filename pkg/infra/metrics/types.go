package metrics

import (
	"context"
	"errors"
)

const bytesPerGiB = 1 << 30

// ErrUnsupported is returned by collectors on platforms without a memory
// probe.
var ErrUnsupported = errors.New("memory probe not supported on this platform")

// Collector reads system memory.
type Collector interface {
	CollectMemory(ctx context.Context) (MemoryMetrics, error)
}

// MemoryMetrics is a memory reading in bytes.
type MemoryMetrics struct {
	Used      uint64
	Total     uint64
	Available uint64
	Percent   float64
}

func newMemoryMetrics(total, available uint64) MemoryMetrics {
	if available > total {
		available = total
	}
	used := total - available
	var percent float64
	if total > 0 {
		percent = float64(used) / float64(total) * 100
	}
	return MemoryMetrics{
		Used:      used,
		Total:     total,
		Available: available,
		Percent:   percent,
	}
}

// GiB converts bytes to binary gigabytes.
func GiB(bytes uint64) float64 {
	return float64(bytes) / bytesPerGiB
}

// Bytes converts binary gigabytes to bytes.
func Bytes(gib float64) float64 {
	return gib * bytesPerGiB
}
