// Package hal implements driver.Driver on top of a gogpu/wgpu HAL device.
//
// Each scene is one render pass. The color surface handed to BeginScene
// lives in host memory owned by the engine; the backend uploads it into the
// render target before the pass and reads the result back when the scene
// ends, so EndScene waits for the GPU. Shader blobs are WGSL: they are
// reflected with internal/wgslparam and compiled to SPIR-V with naga, with
// the WGSL source used directly when naga rejects a module.
//
// Fixed bind group layout shared by every program:
//
//	@group(0) @binding(0) vertex uniforms
//	@group(0) @binding(1) fragment uniforms
//	@group(0) @binding(2) texture_2d<f32>
//	@group(0) @binding(3) sampler
//
// A Driver is created from an existing device (NewFromDevice), from a host
// gpucontext.DeviceProvider (NewFromProvider), from the Vulkan backend
// (New) or from the noop backend (NewNoop, used by tests and dry runs).
package hal
