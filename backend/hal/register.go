package hal

import (
	"github.com/gogpu/vitagl/backend"
	"github.com/gogpu/vitagl/driver"
)

// halBackend adapts a Driver constructor to backend.Backend.
type halBackend struct {
	name string
	open func(...Option) (*Driver, error)
	opts backend.Options
	drv  *Driver
}

func init() {
	backend.Register(backend.BackendHAL, func(o backend.Options) backend.Backend {
		return &halBackend{name: backend.BackendHAL, open: New, opts: o}
	})
	backend.Register(backend.BackendNoop, func(o backend.Options) backend.Backend {
		return &halBackend{name: backend.BackendNoop, open: NewNoop, opts: o}
	})
}

func (b *halBackend) Name() string { return b.name }

func (b *halBackend) Init() error {
	if b.drv != nil {
		return nil
	}
	var opts []Option
	if b.opts.Present != nil {
		opts = append(opts, WithPresenter(b.opts.Present))
	}
	d, err := b.open(opts...)
	if err != nil {
		return err
	}
	b.drv = d
	return nil
}

func (b *halBackend) Close() error {
	if b.drv == nil {
		return nil
	}
	err := b.drv.Close()
	b.drv = nil
	return err
}

func (b *halBackend) Driver() driver.Driver {
	if b.drv == nil {
		return nil
	}
	return b.drv
}
