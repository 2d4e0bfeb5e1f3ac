package vitagl

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/heap"
	"github.com/gogpu/vitagl/internal/pixel"
	"github.com/gogpu/vitagl/internal/pool"
	"github.com/gogpu/vitagl/internal/slot"
)

// ErrNoDriver is returned by NewContext when no driver was configured.
var ErrNoDriver = errors.New("vitagl: no driver configured")

// Context is one rendering engine instance: the GPU memory it manages, the
// machine state of the legacy API and the draw submission built on top.
//
// A Context is not safe for concurrent use. All calls must come from the
// thread that owns the driver context.
type Context struct {
	drv    driver.Driver
	cfg    Config
	logger *slog.Logger
	closed bool

	heap       *heap.Heap
	pool       *pool.Pool
	poolBlock  heap.Block
	poolPolicy PoolPolicy
	growPool   bool

	lastError ErrorCode

	frame  frameState
	state  renderState
	matrix matrixState
	imm    immediateState
	fixed  fixedPrograms

	textures   *slot.Table[texture]
	units      [MaxTextureUnits]textureUnit
	activeUnit int
	clientUnit int

	buffers       *slot.Table[buffer]
	arrayBuffer   Buffer
	elementBuffer Buffer

	framebuffers *slot.Table[framebuffer]
	boundFB      Framebuffer

	shaders  *slot.Table[shader]
	programs *slot.Table[program]
	current  Program

	attribs [MaxVertexAttribs]clientArray
	mapped  mappedArrays

	stats Stats
}

// memoryAdapter exposes a driver.MemoryProvider as a heap.Provider.
type memoryAdapter struct{ p driver.MemoryProvider }

var memoryKinds = [...]driver.MemoryKind{
	heap.VRAM:    driver.MemoryVRAM,
	heap.RAM:     driver.MemoryRAM,
	heap.Phycont: driver.MemoryPhycont,
}

func (m memoryAdapter) Reserve(t heap.Type, size int) ([]byte, uint64, error) {
	if int(t) >= len(memoryKinds) {
		return nil, 0, fmt.Errorf("vitagl: memory type %v cannot be reserved", t)
	}
	return m.p.Reserve(memoryKinds[t], size)
}

// NewContext creates a rendering context. WithDriver is required.
//
// The heap arenas are reserved once, the transient pool is carved from the
// RAM arena, the display surfaces and depth buffer are placed in VRAM and
// the built-in fixed-function programs are registered with the driver.
func NewContext(opts ...ContextOption) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver == nil {
		return nil, ErrNoDriver
	}
	cfg := o.config
	if o.width > 0 && o.height > 0 {
		cfg.DisplayWidth, cfg.DisplayHeight = o.width, o.height
	}
	if o.policy != nil {
		cfg.PoolPolicy = *o.policy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	c := &Context{
		drv:          o.driver,
		cfg:          cfg,
		logger:       logger,
		poolPolicy:   cfg.PoolPolicy,
		textures:     slot.New[texture](MaxTextures),
		buffers:      slot.New[buffer](MaxBuffers),
		framebuffers: slot.New[framebuffer](MaxFramebuffers),
		shaders:      slot.New[shader](MaxShaders),
		programs:     slot.New[program](MaxPrograms),
	}
	propagateLogger(o.driver, logger)
	c.state = defaultRenderState()
	c.matrix = newMatrixState()
	for i := range c.units {
		c.units[i] = defaultTextureUnit()
	}

	if err := c.initMemory(o.memory); err != nil {
		return nil, err
	}
	if err := c.initDisplay(); err != nil {
		return nil, err
	}
	if err := c.initFixedPrograms(); err != nil {
		c.releaseDisplay()
		return nil, err
	}

	c.logger.Info("vitagl: context created",
		"width", cfg.DisplayWidth, "height", cfg.DisplayHeight,
		"buffers", cfg.DisplayBuffers, "pool", cfg.PoolSize, "policy", cfg.PoolPolicy)
	return c, nil
}

func (c *Context) initMemory(mp driver.MemoryProvider) error {
	var provider heap.Provider = heap.HostProvider{}
	if mp == nil {
		mp, _ = c.drv.(driver.MemoryProvider)
	}
	if mp != nil {
		provider = memoryAdapter{mp}
	}

	var specs []heap.ArenaSpec
	for _, s := range []heap.ArenaSpec{
		{Type: heap.VRAM, Size: c.cfg.VRAMSize},
		{Type: heap.RAM, Size: c.cfg.RAMSize},
		{Type: heap.Phycont, Size: c.cfg.PhycontSize},
	} {
		if s.Size > 0 {
			specs = append(specs, s)
		}
	}
	hopts := []heap.Option{heap.WithLogger(c.logger)}
	if c.cfg.ExternalFallback {
		hopts = append(hopts, heap.WithExternalFallback(c.cfg.ExternalLimit))
	}
	h, err := heap.New(provider, specs, hopts...)
	if err != nil {
		return fmt.Errorf("vitagl: %w", err)
	}
	c.heap = h
	return c.allocPool(c.cfg.PoolSize)
}

// allocPool carves a transient pool of size bytes out of the heap.
func (c *Context) allocPool(size int) error {
	b, err := c.heap.Alloc(size, poolAlign, heap.RAM)
	if err != nil {
		return fmt.Errorf("vitagl: transient pool: %w", outOfMemory("pool", err))
	}
	c.poolBlock = b
	c.pool = pool.New(b.Bytes(), b.Addr)
	c.logger.Debug("vitagl: transient pool allocated", "size", size, "type", b.Type, "addr", fmt.Sprintf("%#x", b.Addr))
	return nil
}

const (
	poolAlign    = 16
	surfaceAlign = 4096
)

func (c *Context) initDisplay() error {
	w, h := c.cfg.DisplayWidth, c.cfg.DisplayHeight
	stride := pixel.Pitch(w)
	c.frame.buffers = make([]displayBuffer, c.cfg.DisplayBuffers)
	for i := range c.frame.buffers {
		b, err := c.heap.Alloc(stride*h*4, surfaceAlign, heap.VRAM)
		if err != nil {
			c.releaseDisplay()
			return fmt.Errorf("vitagl: display buffer %d: %w", i, outOfMemory("display", err))
		}
		c.frame.buffers[i] = displayBuffer{
			block: b,
			surface: driver.ColorSurface{
				Format: driver.FormatRGBA8,
				Width:  w,
				Height: h,
				Stride: stride,
				Data:   b.Bytes(),
				Addr:   b.Addr,
			},
		}
	}
	db, err := c.heap.Alloc(stride*h*4, surfaceAlign, heap.VRAM)
	if err != nil {
		c.releaseDisplay()
		return fmt.Errorf("vitagl: depth buffer: %w", outOfMemory("depth", err))
	}
	c.frame.depthBlock = db
	c.frame.depth = driver.DepthStencilSurface{Width: w, Height: h, Data: db.Bytes()}

	rt, err := c.drv.CreateRenderTarget(driver.RenderTargetParams{Width: w, Height: h})
	if err != nil {
		c.releaseDisplay()
		return fmt.Errorf("vitagl: display render target: %w", err)
	}
	c.frame.target = rt
	c.frame.back = 0
	c.frame.front = len(c.frame.buffers) - 1
	c.frame.vsync = c.cfg.VSync
	c.frame.viewport = rect{0, 0, w, h}
	c.frame.scissor = rect{0, 0, w, h}
	c.frame.far = 1
	return nil
}

func (c *Context) releaseDisplay() {
	for _, b := range c.frame.buffers {
		if !b.block.IsZero() {
			c.freeBlock("display", b.block)
		}
	}
	c.frame.buffers = nil
	if !c.frame.depthBlock.IsZero() {
		c.freeBlock("depth", c.frame.depthBlock)
		c.frame.depthBlock = heap.Block{}
	}
	if c.frame.target != nil {
		if err := c.drv.DestroyRenderTarget(c.frame.target); err != nil {
			c.logger.Warn("vitagl: destroy display target", "err", err)
		}
		c.frame.target = nil
	}
}

// freeBlock returns b to the heap, logging failures.
func (c *Context) freeBlock(what string, b heap.Block) {
	if err := c.heap.Free(b); err != nil {
		c.logger.Warn("vitagl: free failed", "what", what, "addr", fmt.Sprintf("%#x", b.Addr), "err", err)
	}
}

// Close waits for the GPU and releases every driver object owned by the
// context. The context must not be used afterwards.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var errs []error
	if c.frame.inScene {
		errs = append(errs, c.drv.EndScene())
		c.frame.inScene = false
	}
	errs = append(errs, c.drv.Finish())

	c.programs.Each(func(h slot.Handle, p *program) {
		c.releaseProgramObjects(p)
	})
	c.shaders.Each(func(h slot.Handle, s *shader) {
		if s.valid {
			c.unregister(s.id)
		}
	})
	c.framebuffers.Each(func(h slot.Handle, fb *framebuffer) {
		c.releaseFramebuffer(fb)
	})
	c.releaseFixedPrograms()
	c.releaseDisplay()
	c.closed = true
	c.logger.Info("vitagl: context closed", "frames", c.frame.frames)
	return errors.Join(errs...)
}

// Driver returns the driver the context submits to.
func (c *Context) Driver() driver.Driver { return c.drv }

// Config returns the effective configuration.
func (c *Context) Config() Config { return c.cfg }

var heapTypes = [...]heap.Type{
	MemVRAM:     heap.VRAM,
	MemRAM:      heap.RAM,
	MemPhycont:  heap.Phycont,
	MemExternal: heap.External,
}

// MemoryFree returns the free bytes of a heap arena.
func (c *Context) MemoryFree(t MemoryType) int {
	if int(t) >= len(heapTypes) {
		return 0
	}
	return c.heap.FreeSpace(heapTypes[t])
}

// Stats reports engine counters.
type Stats struct {
	// Draws counts issued draw calls; SkippedDraws counts draws dropped
	// by culling or pool exhaustion.
	Draws        uint64
	SkippedDraws uint64
	// MatrixMuls counts view-projection recomputations.
	MatrixMuls uint64
	Frames     uint64

	PoolUsed int
	PoolPeak int
	PoolCap  int

	Memory []MemoryStats
}

// MemoryStats describes one heap arena.
type MemoryStats struct {
	Type       string
	Capacity   int
	Free       int
	UsedBlocks int
}

func (s Stats) String() string {
	out := fmt.Sprintf("Draws: %d (skipped %d), MatrixMuls: %d, Frames: %d, Pool: %d/%d (peak %d)",
		s.Draws, s.SkippedDraws, s.MatrixMuls, s.Frames, s.PoolUsed, s.PoolCap, s.PoolPeak)
	for _, m := range s.Memory {
		out += fmt.Sprintf(", %s: %d/%d free", m.Type, m.Free, m.Capacity)
	}
	return out
}

// Stats returns a snapshot of the engine counters.
func (c *Context) Stats() Stats {
	s := c.stats
	s.Frames = c.frame.frames
	s.PoolUsed = c.pool.Used()
	s.PoolPeak = c.pool.Peak()
	s.PoolCap = c.pool.Cap()
	for _, a := range c.heap.Stats().Arenas {
		s.Memory = append(s.Memory, MemoryStats{Type: a.Type.String(), Capacity: a.Capacity, Free: a.FreeBytes, UsedBlocks: a.UsedBlocks})
	}
	return s
}
