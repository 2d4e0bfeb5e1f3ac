package drivertest

import (
	"fmt"

	"github.com/gogpu/vitagl/driver"
)

var memoryBases = [...]uint64{
	driver.MemoryVRAM:    0x6000_0000,
	driver.MemoryRAM:     0x8100_0000,
	driver.MemoryPhycont: 0x9200_0000,
}

// Reserve implements driver.MemoryProvider. Each kind may be reserved once.
func (d *Driver) Reserve(kind driver.MemoryKind, size int) ([]byte, uint64, error) {
	d.op("Reserve")
	if int(kind) >= len(memoryBases) {
		return nil, 0, fmt.Errorf("drivertest: unknown memory kind %d", kind)
	}
	if d.reserved == nil {
		d.reserved = make(map[driver.MemoryKind]bool)
	}
	if d.reserved[kind] {
		return nil, 0, fmt.Errorf("drivertest: memory kind %d reserved twice: %w", kind, driver.ErrNoDeviceMemory)
	}
	d.reserved[kind] = true
	return make([]byte, size), memoryBases[kind], nil
}
