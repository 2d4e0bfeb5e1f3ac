// Package vitagl provides an OpenGL 1.x/ES 2.0 style resource and draw
// submission engine for a tile-based GPU.
//
// # Overview
//
// vitagl turns legacy immediate-mode and client-array drawing into the
// scene-based command model of a tile renderer. A [Context] owns every GPU
// resource (textures, buffers, framebuffers, shader programs) and speaks to
// the hardware through a small [driver.Driver] interface, so the same engine
// runs against the recording test driver, the HAL backend, or a console
// graphics library.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/vitagl"
//	    "github.com/gogpu/vitagl/driver/drivertest"
//	)
//
//	ctx, err := vitagl.NewContext(vitagl.WithDriver(drivertest.New()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	ctx.StartDrawing()
//	ctx.ClearColor(0, 0, 0, 1)
//	ctx.Clear(vitagl.ColorBufferBit | vitagl.DepthBufferBit)
//	ctx.Begin(vitagl.Triangles)
//	ctx.Color3f(1, 0, 0)
//	ctx.Vertex2f(-1, -1)
//	ctx.Vertex2f(1, -1)
//	ctx.Vertex2f(0, 1)
//	ctx.End()
//	ctx.SwapBuffers()
//
// # Memory
//
// Device memory is split into typed arenas (VRAM, RAM, physically
// contiguous) reserved once at creation. Long-lived objects draw from the
// arenas through a first-fit heap; per-draw vertex and index data comes
// from a bump-allocated transient pool that is reset at every
// [Context.SwapBuffers]. [PoolPolicy] selects what happens when a frame
// outgrows the pool.
//
// # Errors
//
// Every fallible call returns an error wrapping one of the Err sentinels and
// also records the matching [ErrorCode], which [Context.GetError] reports
// and clears in the OpenGL manner.
//
// # Coordinate System
//
// Viewports and scissor boxes use the OpenGL convention:
//   - Origin (0,0) at bottom-left of the surface
//   - Depth range [0,1] by default
//   - Matrices are column-major
//
// # Concurrency
//
// A Context is not safe for concurrent use. Each goroutine that renders
// needs its own context, or calls must be serialized by the caller.
package vitagl

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = ""
)
