package heap

import "fmt"

// Default synthetic base addresses of host-backed arenas. The ranges do
// not overlap for arenas below 256 MB.
var hostBases = [...]uint64{
	VRAM:    0x6000_0000,
	RAM:     0x8100_0000,
	Phycont: 0x9200_0000,
}

// HostProvider backs arenas with Go-allocated memory at fixed synthetic
// base addresses. It is the provider used when no driver memory is
// available.
type HostProvider struct{}

// Reserve implements Provider.
func (HostProvider) Reserve(t Type, size int) ([]byte, uint64, error) {
	if t >= External {
		return nil, 0, fmt.Errorf("heap: host provider cannot reserve %v", t)
	}
	return make([]byte, size), hostBases[t], nil
}
