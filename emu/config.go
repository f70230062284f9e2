package emu

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config describes the simulated hardware profile.
type Config struct {
	// MemorySize is the flat memory size in bytes.
	MemorySize uint32 `json:"memory_size"`

	// MemoryAccessWidth is the bytes the memory system moves per cycle.
	// It bounds blitter stream throughput.
	MemoryAccessWidth uint32 `json:"memory_access_width"`

	// ProgramSizeLimit is the soft assembler cap on program size in
	// bytes. Zero disables the check.
	ProgramSizeLimit uint32 `json:"program_size_limit"`

	// FramebufferWidth is the framebuffer width in pixels.
	FramebufferWidth uint32 `json:"framebuffer_width"`

	// FramebufferHeight is the framebuffer height in pixels.
	FramebufferHeight uint32 `json:"framebuffer_height"`

	// FramebufferBytesPerPixel is the pixel size in bytes.
	FramebufferBytesPerPixel uint32 `json:"framebuffer_bytes_per_pixel"`

	// BHTSize is the branch history table entry count, a power of two.
	BHTSize uint32 `json:"bht_size"`

	// BTBSize is the branch target buffer entry count, a power of two.
	BTBSize uint32 `json:"btb_size"`

	// MispredictPenalty is the stall in cycles charged for a flush.
	MispredictPenalty uint64 `json:"mispredict_penalty"`

	// SchedulerQueueDepth is the scheduler front-end queue depth in
	// words.
	SchedulerQueueDepth int `json:"scheduler_queue_depth"`
}

// DefaultConfig returns the reference hardware profile.
func DefaultConfig() Config {
	return Config{
		MemorySize:               512 * 1024 * 1024,
		MemoryAccessWidth:        16,
		ProgramSizeLimit:         64 * 1024,
		FramebufferWidth:         640,
		FramebufferHeight:        480,
		FramebufferBytesPerPixel: 4,
		BHTSize:                  16,
		BTBSize:                  4,
		MispredictPenalty:        2,
		SchedulerQueueDepth:      4,
	}
}

// FramebufferBytes returns the framebuffer size in bytes.
func (c Config) FramebufferBytes() uint32 {
	return c.FramebufferWidth * c.FramebufferHeight * c.FramebufferBytesPerPixel
}

// FramebufferBase returns the framebuffer base address: the framebuffer
// sits at the top of memory, aligned down to a 64KB boundary.
func (c Config) FramebufferBase() uint32 {
	return (c.MemorySize - c.FramebufferBytes()) &^ (64*1024 - 1)
}

// PixelsPerCycle returns how many pixels the memory system can retire per
// cycle, never less than one.
func (c Config) PixelsPerCycle() uint32 {
	per := c.MemoryAccessWidth / c.FramebufferBytesPerPixel
	if per == 0 {
		per = 1
	}
	return per
}

// Validate checks the hardware profile for internal consistency.
func (c Config) Validate() error {
	if c.MemorySize == 0 {
		return fmt.Errorf("memory size must be non-zero")
	}
	if c.MemoryAccessWidth == 0 {
		return fmt.Errorf("memory access width must be non-zero")
	}
	if c.FramebufferWidth == 0 || c.FramebufferHeight == 0 || c.FramebufferBytesPerPixel == 0 {
		return fmt.Errorf("framebuffer dimensions must be non-zero")
	}
	if fb := c.FramebufferBytes(); fb > c.MemorySize/4 {
		return fmt.Errorf("framebuffer of %d bytes exceeds a quarter of the %d byte memory",
			fb, c.MemorySize)
	}
	if !isPowerOfTwo(c.BHTSize) {
		return fmt.Errorf("BHT size %d is not a power of two", c.BHTSize)
	}
	if !isPowerOfTwo(c.BTBSize) {
		return fmt.Errorf("BTB size %d is not a power of two", c.BTBSize)
	}
	if c.SchedulerQueueDepth <= 0 {
		return fmt.Errorf("scheduler queue depth must be positive")
	}
	return nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// LoadConfig reads a JSON hardware profile, applying it over the defaults
// so partial profiles stay valid.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
