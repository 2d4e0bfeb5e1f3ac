package vitagl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PoolPolicy selects what happens when the transient pool cannot hold a
// draw's vertex and index data.
type PoolPolicy uint8

// Pool policies.
const (
	// PoolSkipDraw skips the draw and records OutOfMemory.
	PoolSkipDraw PoolPolicy = iota
	// PoolGrow skips the draw and doubles the pool at the next frame boundary.
	PoolGrow
	// PoolPanic panics with the allocation error.
	PoolPanic
)

var poolPolicyNames = [...]string{"skip", "grow", "panic"}

func (p PoolPolicy) String() string {
	if int(p) < len(poolPolicyNames) {
		return poolPolicyNames[p]
	}
	return fmt.Sprintf("PoolPolicy(%d)", p)
}

// MarshalText implements encoding.TextMarshaler.
func (p PoolPolicy) MarshalText() ([]byte, error) {
	if int(p) >= len(poolPolicyNames) {
		return nil, fmt.Errorf("vitagl: unknown pool policy %d", p)
	}
	return []byte(poolPolicyNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PoolPolicy) UnmarshalText(text []byte) error {
	for i, name := range poolPolicyNames {
		if strings.EqualFold(string(text), name) {
			*p = PoolPolicy(i)
			return nil
		}
	}
	return fmt.Errorf("vitagl: unknown pool policy %q", text)
}

// Config holds the sizing parameters of a Context. Sizes are in bytes.
type Config struct {
	VRAMSize    int `toml:"vram_size" yaml:"vram_size"`
	RAMSize     int `toml:"ram_size" yaml:"ram_size"`
	PhycontSize int `toml:"phycont_size" yaml:"phycont_size"`

	// PoolSize is the transient pool capacity, carved from the RAM arena.
	PoolSize   int        `toml:"pool_size" yaml:"pool_size"`
	PoolPolicy PoolPolicy `toml:"pool_policy" yaml:"pool_policy"`

	// ExternalFallback lets the heap fall back to the Go heap once every
	// arena is exhausted. ExternalLimit caps that tier; zero is unlimited.
	ExternalFallback bool `toml:"external_fallback" yaml:"external_fallback"`
	ExternalLimit    int  `toml:"external_limit" yaml:"external_limit"`

	DisplayWidth   int  `toml:"display_width" yaml:"display_width"`
	DisplayHeight  int  `toml:"display_height" yaml:"display_height"`
	DisplayBuffers int  `toml:"display_buffers" yaml:"display_buffers"`
	VSync          bool `toml:"vsync" yaml:"vsync"`

	MaxTextureSize int `toml:"max_texture_size" yaml:"max_texture_size"`
}

// DefaultConfig returns the default sizing.
func DefaultConfig() Config {
	return Config{
		VRAMSize:       16 << 20,
		RAMSize:        16 << 20,
		PhycontSize:    4 << 20,
		PoolSize:       1 << 20,
		PoolPolicy:     PoolSkipDraw,
		DisplayWidth:   960,
		DisplayHeight:  544,
		DisplayBuffers: 2,
		VSync:          true,
		MaxTextureSize: 4096,
	}
}

// ErrConfig is wrapped by every configuration validation error.
var ErrConfig = errors.New("vitagl: invalid config")

// Validate checks that c describes a usable context.
func (c Config) Validate() error {
	switch {
	case c.VRAMSize <= 0 && c.RAMSize <= 0 && c.PhycontSize <= 0:
		return fmt.Errorf("%w: no arena configured", ErrConfig)
	case c.VRAMSize < 0 || c.RAMSize < 0 || c.PhycontSize < 0:
		return fmt.Errorf("%w: negative arena size", ErrConfig)
	case c.PoolSize <= 0:
		return fmt.Errorf("%w: pool_size must be positive", ErrConfig)
	case c.PoolPolicy > PoolPanic:
		return fmt.Errorf("%w: pool_policy %d", ErrConfig, c.PoolPolicy)
	case c.ExternalLimit < 0:
		return fmt.Errorf("%w: negative external_limit", ErrConfig)
	case c.DisplayWidth <= 0 || c.DisplayHeight <= 0:
		return fmt.Errorf("%w: display size %dx%d", ErrConfig, c.DisplayWidth, c.DisplayHeight)
	case c.DisplayBuffers < 1 || c.DisplayBuffers > 4:
		return fmt.Errorf("%w: display_buffers must be in [1,4], got %d", ErrConfig, c.DisplayBuffers)
	case c.MaxTextureSize <= 0:
		return fmt.Errorf("%w: max_texture_size must be positive", ErrConfig)
	}
	return nil
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("vitagl: load config: %w", err)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrConfig, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("vitagl: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
