package hal

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/internal/cache"
	"github.com/gogpu/vitagl/internal/pixel"
	"github.com/gogpu/vitagl/internal/wgslparam"
)

// ErrNoAdapter is returned when the backend exposes no GPU adapter.
var ErrNoAdapter = errors.New("hal: no GPU adapters found")

// ErrUnsupportedProvider is returned by NewFromProvider when the provider
// does not expose a HAL device and queue.
var ErrUnsupportedProvider = errors.New("hal: device provider does not expose HAL device")

const (
	fenceTimeout = 5 * time.Second

	defaultReflectionCache = 256
	defaultPipelineCache   = 128
	defaultTextureCache    = 64
)

var _ driver.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*options)

type options struct {
	presenter     func(*driver.ColorSurface)
	pipelineCache int
	textureCache  int
	format        gputypes.TextureFormat
}

// WithPresenter installs the callback QueueFlip hands finished display
// surfaces to. The surface memory is only valid during the call.
func WithPresenter(fn func(*driver.ColorSurface)) Option {
	return func(o *options) { o.presenter = fn }
}

// WithPipelineCache bounds the number of render pipelines kept alive.
func WithPipelineCache(n int) Option {
	return func(o *options) { o.pipelineCache = n }
}

// WithTextureCache bounds the number of uploaded textures kept alive.
func WithTextureCache(n int) Option {
	return func(o *options) { o.textureCache = n }
}

// Driver implements driver.Driver with a HAL device.
type Driver struct {
	device hal.Device
	queue  hal.Queue
	// release tears down a device opened by the Driver itself.
	release func()
	opts    options

	reflections *cache.Cache[uint64, *wgslparam.Shader]
	programs    map[driver.ProgramID]*program
	nextID      driver.ProgramID
	// serial numbers program objects for pipeline keys.
	serial uint64

	layout    *bindLayout
	pipelines *cache.Cache[pipelineKey, hal.RenderPipeline]
	textures  *cache.Cache[textureKey, *gpuTexture]
	samplers  map[samplerKey]hal.Sampler
	white     *gpuTexture

	scene  *scene
	closed bool
}

// NewFromDevice wraps an existing device and queue. Close does not
// destroy them.
func NewFromDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Driver, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("hal: nil device or queue")
	}
	o := options{
		pipelineCache: defaultPipelineCache,
		textureCache:  defaultTextureCache,
		format:        gputypes.TextureFormatRGBA8Unorm,
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Driver{
		device:   device,
		queue:    queue,
		opts:     o,
		programs: make(map[driver.ProgramID]*program),
		samplers: make(map[samplerKey]hal.Sampler),
	}
	d.reflections = cache.New[uint64, *wgslparam.Shader](defaultReflectionCache, nil)
	d.pipelines = cache.New(o.pipelineCache, func(_ pipelineKey, p hal.RenderPipeline) {
		d.device.DestroyRenderPipeline(p)
	})
	d.textures = cache.New(o.textureCache, func(_ textureKey, t *gpuTexture) {
		t.destroy(d.device)
	})

	layout, err := newBindLayout(device)
	if err != nil {
		return nil, err
	}
	d.layout = layout

	white, err := d.uploadTexture("white", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 1, 1)
	if err != nil {
		layout.destroy(device)
		return nil, err
	}
	d.white = white

	slogger().Debug("hal: driver ready", "pipeline_cache", o.pipelineCache, "texture_cache", o.textureCache)
	return d, nil
}

// NewFromProvider shares the device of a host application, for example a
// gogpu window.
func NewFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*Driver, error) {
	hp, ok := p.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return NewFromDevice(device, queue, opts...)
}

// NewNoop opens the noop HAL backend. Scenes record and submit but render
// nothing; the color surfaces are read back unchanged.
func NewNoop(opts ...Option) (*Driver, error) {
	return open(noop.API{}, opts)
}

func open(backend hal.Backend, opts []Option) (*Driver, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("hal: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("hal: open device: %w", err)
	}
	slogger().Info("hal: device opened", "type", selected.Info.DeviceType, "adapters", len(adapters))

	d, err := NewFromDevice(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return d, nil
}

// Close releases every object created by the driver. Programs still
// registered are unregistered.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	if d.scene != nil {
		d.scene.abort(d.device)
		d.scene = nil
	}
	d.pipelines.Purge()
	d.textures.Purge()
	d.white.destroy(d.device)
	for k, s := range d.samplers {
		d.device.DestroySampler(s)
		delete(d.samplers, k)
	}
	for id, p := range d.programs {
		d.device.DestroyShaderModule(p.module)
		delete(d.programs, id)
	}
	d.layout.destroy(d.device)
	if d.release != nil {
		d.release()
	}
	d.closed = true
	return nil
}

// Finish returns once the GPU is idle. EndScene waits for its read back,
// so no work is outstanding between scenes.
func (d *Driver) Finish() error {
	if d.scene != nil {
		return driver.ErrSceneInProgress
	}
	return nil
}

// QueueFlip hands surface to the presenter.
func (d *Driver) QueueFlip(surface *driver.ColorSurface, _ bool) error {
	if d.opts.presenter != nil {
		d.opts.presenter(surface)
	}
	return nil
}

// TransferDownscale box-filters src into dst on the host. Both surfaces
// live in host memory.
func (d *Driver) TransferDownscale(src, dst driver.Surface) error {
	return pixel.Downscale(dst, src)
}
