package metrics

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

type systemCollector struct{}

func NewCollector() Collector {
	return &systemCollector{}
}

// CollectMemory counts free, inactive and purgeable pages as available,
// which is close to what Activity Monitor reports.
func (c *systemCollector) CollectMemory(ctx context.Context) (MemoryMetrics, error) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return MemoryMetrics{}, fmt.Errorf("sysctl hw.memsize: %w", err)
	}

	pageSize := uint64(unix.Getpagesize())
	var pages uint64
	for _, name := range []string{"vm.page_free_count", "vm.page_inactive_count", "vm.page_purgeable_count"} {
		n, err := unix.SysctlUint32(name)
		if err != nil {
			continue
		}
		pages += uint64(n)
	}

	return newMemoryMetrics(total, pages*pageSize), nil
}
