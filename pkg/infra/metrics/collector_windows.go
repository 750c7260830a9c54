package metrics

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// memoryStatusEx matches the MEMORYSTATUSEX Windows structure.
type memoryStatusEx struct {
	dwLength                uint32
	dwMemoryLoad            uint32
	ullTotalPhys            uint64
	ullAvailPhys            uint64
	ullTotalPageFile        uint64
	ullAvailPageFile        uint64
	ullTotalVirtual         uint64
	ullAvailVirtual         uint64
	ullAvailExtendedVirtual uint64
}

var (
	modkernel32              = windows.NewLazySystemDLL("kernel32.dll")
	procGlobalMemoryStatusEx = modkernel32.NewProc("GlobalMemoryStatusEx")
)

type systemCollector struct{}

func NewCollector() Collector {
	return &systemCollector{}
}

func (c *systemCollector) CollectMemory(ctx context.Context) (MemoryMetrics, error) {
	var memStatus memoryStatusEx
	memStatus.dwLength = uint32(unsafe.Sizeof(memStatus))
	r1, _, err := procGlobalMemoryStatusEx.Call(uintptr(unsafe.Pointer(&memStatus)))
	if r1 == 0 {
		return MemoryMetrics{}, fmt.Errorf("GlobalMemoryStatusEx: %w", err)
	}

	return newMemoryMetrics(memStatus.ullTotalPhys, memStatus.ullAvailPhys), nil
}
