// Package backend provides a registry of vitagl driver implementations.
//
// A vitagl context talks to the GPU through driver.Driver. The backend
// package lets commands pick that implementation by name at runtime
// instead of wiring a constructor by hand.
//
// # Backend Registration
//
// Backends are registered via init() functions. The recording backend is
// registered on import; the HAL backends register when their package is
// imported:
//
//	import _ "github.com/gogpu/vitagl/backend/hal"
//
// # Backend Selection
//
// Use Default() to open the best available backend, or Open() to request
// a specific backend by name:
//
//	b, err := backend.Open("record", backend.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	ctx, err := vitagl.NewContext(vitagl.WithDriver(b.Driver()))
//
// # Available Backends
//
// - "hal": Vulkan device through gogpu/wgpu HAL
// - "noop": the HAL noop device, for headless submission checks
// - "record": in-memory recording driver (always available)
package backend
