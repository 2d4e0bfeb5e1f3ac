// Package driver defines the low-level GPU collaborator consumed by vitagl.
//
// The engine never talks to a graphics API directly. It drives three
// narrow interfaces instead:
//
//   - [Context] records scenes, binds programs, vertex streams and
//     textures, writes default uniform buffers and issues indexed draws.
//   - [ShaderPatcher] registers shader blobs and creates vertex and
//     fragment program objects from them. Fragment programs are immutable
//     snapshots of a blend configuration.
//   - [Display] queues finished color surfaces for presentation.
//
// A [MemoryProvider] may additionally be implemented to supply the fixed
// memory arenas used by the heap allocator.
//
// Implementations live in backend/ (a wgpu HAL backend) and in
// driver/drivertest (a recording in-memory driver for tests).
package driver

import "errors"

// Driver errors.
var (
	// ErrNoScene is returned by recording calls made outside a scene.
	ErrNoScene = errors.New("driver: no scene in progress")

	// ErrSceneInProgress is returned by BeginScene while a scene is open.
	ErrSceneInProgress = errors.New("driver: scene already in progress")

	// ErrNoProgram is returned by Draw when no vertex or fragment program is bound.
	ErrNoProgram = errors.New("driver: no program bound")

	// ErrUnknownProgram is returned for unregistered program ids.
	ErrUnknownProgram = errors.New("driver: unknown program")

	// ErrInvalidBlob is returned when a shader blob cannot be parsed.
	ErrInvalidBlob = errors.New("driver: invalid shader blob")

	// ErrNoDeviceMemory is returned when an arena cannot be reserved.
	ErrNoDeviceMemory = errors.New("driver: out of device memory")
)

// Context records GPU work for one rendering thread.
type Context interface {
	// BeginScene starts recording against target. Color is the surface the
	// scene renders into; depth may be nil.
	BeginScene(target RenderTarget, color *ColorSurface, depth *DepthStencilSurface, flags SceneFlags) error

	// EndScene closes the scene and submits it without waiting for the GPU.
	EndScene() error

	// SetViewport sets the viewport transform. Scenes reset it.
	SetViewport(v Viewport)

	// SetRegionClip sets the hardware scissor region. Scenes reset it.
	SetRegionClip(c RegionClip)

	SetCullMode(m CullMode)
	SetDepthState(s DepthState)

	SetVertexProgram(p VertexProgram)
	SetFragmentProgram(p FragmentProgram)

	// SetVertexStream binds data as vertex stream index for the next draw.
	SetVertexStream(index int, data []byte) error

	// SetFragmentTexture binds tex to texture unit for the next draw.
	// A nil tex unbinds the unit.
	SetFragmentTexture(unit int, tex *TextureDesc) error

	// ReserveUniformBuffer reserves the default uniform buffer of the bound
	// program for stage. It is called at most once per stage per draw.
	ReserveUniformBuffer(stage Stage) (UniformBuffer, error)

	// SetUniformData writes data at componentOffset float components past
	// the start of parameter p inside buf.
	SetUniformData(buf UniformBuffer, p *Parameter, componentOffset int, data []float32) error

	// Draw issues an indexed draw of count indices.
	Draw(prim Primitive, format IndexFormat, indices []byte, count int) error

	// TransferDownscale writes a 2x box-filtered copy of src into dst.
	TransferDownscale(src, dst Surface) error

	CreateRenderTarget(params RenderTargetParams) (RenderTarget, error)
	DestroyRenderTarget(rt RenderTarget) error

	// Finish blocks until every submitted scene has completed on the GPU.
	Finish() error
}

// ShaderPatcher turns shader blobs into bindable program objects.
type ShaderPatcher interface {
	RegisterProgram(blob []byte) (ProgramID, error)
	UnregisterProgram(id ProgramID) error

	// FindParameter looks up a uniform parameter by name in a raw blob.
	// It returns nil when the blob declares no such parameter.
	FindParameter(blob []byte, name string) *Parameter

	// AttributeIndex resolves a named vertex input of a raw blob to its
	// resource index. The second result is false when no input matches.
	AttributeIndex(blob []byte, name string) (int, bool)

	CreateVertexProgram(id ProgramID, attrs []VertexAttribute, streams []VertexStream) (VertexProgram, error)

	// CreateFragmentProgram snapshots blend; a nil blend disables blending.
	// vp may be nil; backends may use it to link outputs.
	CreateFragmentProgram(id ProgramID, format ColorFormat, ms Multisample, blend *BlendInfo, vp VertexProgram) (FragmentProgram, error)

	ReleaseVertexProgram(p VertexProgram) error
	ReleaseFragmentProgram(p FragmentProgram) error

	// FragmentProgramRefCount reports how many references the patcher
	// holds on p. Presentation may share fragment programs and raise it.
	FragmentProgramRefCount(p FragmentProgram) (int, error)
}

// Display presents color surfaces.
type Display interface {
	// QueueFlip enqueues surface for presentation. With vsync enabled the
	// call may block until the next vertical blank.
	QueueFlip(surface *ColorSurface, vsync bool) error
}

// MemoryProvider reserves fixed physical memory arenas. Each kind is
// reserved at most once for the lifetime of the process.
type MemoryProvider interface {
	Reserve(kind MemoryKind, size int) (mem []byte, base uint64, err error)
}

// Driver is the full collaborator set.
type Driver interface {
	Context
	ShaderPatcher
	Display
}
