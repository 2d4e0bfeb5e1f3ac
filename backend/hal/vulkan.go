//go:build !nogpu

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// New opens a standalone Vulkan device.
func New(opts ...Option) (*Driver, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("hal: vulkan backend not available")
	}
	return open(backend, opts)
}
