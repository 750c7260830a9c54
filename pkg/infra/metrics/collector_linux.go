package metrics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const meminfoPath = "/proc/meminfo"

type systemCollector struct {
	meminfoPath string
}

func NewCollector() Collector {
	return &systemCollector{meminfoPath: meminfoPath}
}

// CollectMemory prefers /proc/meminfo, whose MemAvailable accounts for
// reclaimable page cache, and falls back to sysinfo(2).
func (c *systemCollector) CollectMemory(ctx context.Context) (MemoryMetrics, error) {
	file, err := os.Open(c.meminfoPath)
	if err == nil {
		defer file.Close()
		if mem, perr := parseMeminfo(file); perr == nil {
			return mem, nil
		}
	}
	return collectSysinfo()
}

func parseMeminfo(r io.Reader) (MemoryMetrics, error) {
	var memTotal, memAvailable, memFree uint64
	var haveAvailable bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		value, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}

		switch parts[0] {
		case "MemTotal:":
			memTotal = value * 1024
		case "MemAvailable:":
			memAvailable = value * 1024
			haveAvailable = true
		case "MemFree:":
			memFree = value * 1024
		}
	}
	if err := scanner.Err(); err != nil {
		return MemoryMetrics{}, err
	}
	if memTotal == 0 {
		return MemoryMetrics{}, fmt.Errorf("MemTotal missing from %s", meminfoPath)
	}
	if !haveAvailable {
		memAvailable = memFree
	}

	return newMemoryMetrics(memTotal, memAvailable), nil
}

func collectSysinfo() (MemoryMetrics, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return MemoryMetrics{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return newMemoryMetrics(total, available), nil
}
