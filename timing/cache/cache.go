// Package cache models instruction fetch latency with an Akita cache
// directory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds fetch cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitPenalty in cycles beyond the baseline single-cycle fetch
	HitPenalty uint64
	// MissPenalty in cycles beyond the baseline single-cycle fetch
	MissPenalty uint64
}

// DefaultConfig returns the VPU instruction cache profile: a small
// direct-fetch cache in front of the flat memory.
func DefaultConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitPenalty:    0,
		MissPenalty:   8,
	}
}

// Statistics holds fetch cache performance statistics.
type Statistics struct {
	Fetches   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of fetches served from the cache.
func (s Statistics) HitRate() float64 {
	if s.Fetches == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Fetches)
}

// FetchCache tracks which instruction blocks are resident and charges a
// penalty per fetch accordingly. Only tags are modeled; the word itself
// always comes from the flat memory image, so a simulation with and
// without the cache differs in cycle counts, never in results.
type FetchCache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a fetch cache with the given configuration.
func New(config Config) *FetchCache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	return &FetchCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *FetchCache) Config() Config {
	return c.config
}

// Stats returns the fetch statistics.
func (c *FetchCache) Stats() Statistics {
	return c.stats
}

// FetchPenalty reports the extra cycles a fetch at addr costs. A resident
// block costs the hit penalty; a miss installs the block over an LRU
// victim and costs the miss penalty.
func (c *FetchCache) FetchPenalty(addr uint32) uint64 {
	c.stats.Fetches++

	blockAddr := uint64(addr) / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.config.HitPenalty
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return c.config.MissPenalty
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return c.config.MissPenalty
}

// Invalidate drops the block holding addr, as after self-modifying code
// or a DMA write over the instruction stream.
func (c *FetchCache) Invalidate(addr uint32) {
	blockAddr := uint64(addr) / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)
	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		block.IsValid = false
	}
}

// InvalidateAll drops every resident block.
func (c *FetchCache) InvalidateAll() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all lines and clears the statistics.
func (c *FetchCache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
