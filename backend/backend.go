package backend

import (
	"errors"

	"github.com/gogpu/vitagl/driver"
)

// Backend names.
const (
	// BackendHAL renders on a Vulkan device through the wgpu HAL.
	BackendHAL = "hal"
	// BackendNoop submits to the noop HAL device; nothing is rasterized.
	BackendNoop = "noop"
	// BackendRecord records every driver call in memory.
	BackendRecord = "record"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Options configures a backend before Init.
type Options struct {
	// Present receives every display surface queued for presentation.
	// The surface memory is only valid during the call.
	Present func(*driver.ColorSurface)
}

// Backend owns one driver implementation.
//
// Backends must be registered via Register() and are selected via
// Open() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "hal", "record").
	Name() string

	// Init opens the underlying device.
	// This should be called before Driver.
	Init() error

	// Close releases the device.
	// The driver should not be used after Close is called.
	Close() error

	// Driver returns the driver a vitagl context submits to, or nil
	// before Init.
	Driver() driver.Driver
}
