package backend

import (
	"github.com/gogpu/vitagl/driver"
	"github.com/gogpu/vitagl/driver/drivertest"
)

// RecordBackend is an in-memory backend that records every driver call.
// It rasterizes nothing; presented surfaces hold whatever the heap
// placed in them.
type RecordBackend struct {
	opts Options
	drv  *recordingDriver
}

// recordingDriver forwards presented surfaces to Options.Present.
type recordingDriver struct {
	*drivertest.Driver
	present func(*driver.ColorSurface)
}

func (d *recordingDriver) QueueFlip(surface *driver.ColorSurface, vsync bool) error {
	if err := d.Driver.QueueFlip(surface, vsync); err != nil {
		return err
	}
	if d.present != nil {
		d.present(surface)
	}
	return nil
}

// init registers the recording backend on package import.
func init() {
	Register(BackendRecord, func(opts Options) Backend {
		return NewRecordBackend(opts)
	})
}

// NewRecordBackend creates a new recording backend.
func NewRecordBackend(opts Options) *RecordBackend {
	return &RecordBackend{opts: opts}
}

// Name returns the backend identifier.
func (b *RecordBackend) Name() string {
	return BackendRecord
}

// Init creates a fresh recording driver.
func (b *RecordBackend) Init() error {
	b.drv = &recordingDriver{Driver: drivertest.New(), present: b.opts.Present}
	return nil
}

// Close drops the recording driver.
func (b *RecordBackend) Close() error {
	b.drv = nil
	return nil
}

// Driver returns the recording driver, which also implements
// driver.MemoryProvider.
func (b *RecordBackend) Driver() driver.Driver {
	if b.drv == nil {
		return nil
	}
	return b.drv
}

// Recorder returns the underlying recording driver for inspection.
// Returns nil before Init.
func (b *RecordBackend) Recorder() *drivertest.Driver {
	if b.drv == nil {
		return nil
	}
	return b.drv.Driver
}
