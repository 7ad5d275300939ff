package crawlers

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceConfig sizes the worker count against free memory.
type ResourceConfig struct {
	Enabled         bool  `mapstructure:"enabled"`
	ContextMemoryMB int64 `mapstructure:"context_memory_mb"` // average cost of one browser context
	SafetyReserveMB int64 `mapstructure:"safety_reserve_mb"` // memory left to the rest of the system
}

// ResourceMonitor recommends a worker count that fits in available memory.
type ResourceMonitor struct {
	config     ResourceConfig
	virtualMem func() (*mem.VirtualMemoryStat, error)
	numCPU     func() int
	logger     zerolog.Logger
}

// NewResourceMonitor creates a monitor reading system memory through gopsutil.
func NewResourceMonitor(config ResourceConfig, logger zerolog.Logger) *ResourceMonitor {
	if config.ContextMemoryMB <= 0 {
		config.ContextMemoryMB = 150
	}
	return &ResourceMonitor{
		config:     config,
		virtualMem: mem.VirtualMemory,
		numCPU:     runtime.NumCPU,
		logger:     logger,
	}
}

// RecommendWorkers clamps requested to what memory and CPU allow. It never
// returns less than 1 and never more than requested. reason is empty when
// requested was kept.
func (rm *ResourceMonitor) RecommendWorkers(requested int) (workers int, reason string) {
	if requested < 1 {
		requested = 1
	}
	if !rm.config.Enabled {
		return requested, ""
	}

	vm, err := rm.virtualMem()
	if err != nil {
		rm.logger.Warn().Err(err).Msg("cannot read system memory, keeping configured workers")
		return requested, ""
	}

	available := int64(vm.Available) - rm.config.SafetyReserveMB*mb
	byMemory := int(available / (rm.config.ContextMemoryMB * mb))
	if byMemory < 1 {
		byMemory = 1
	}
	// contexts are mostly idle waiting on the server; allow two per core
	byCPU := rm.numCPU() * 2

	workers = requested
	switch {
	case byMemory < workers && byMemory <= byCPU:
		workers = byMemory
		reason = fmt.Sprintf("available memory %dMB fits %d contexts", available/mb, byMemory)
	case byCPU < workers:
		workers = byCPU
		reason = fmt.Sprintf("%d CPUs allow %d contexts", rm.numCPU(), byCPU)
	}

	rm.logger.Debug().
		Uint64("available_mb", vm.Available/mb).
		Int("by_memory", byMemory).
		Int("by_cpu", byCPU).
		Int("workers", workers).
		Msg("worker sizing")
	return workers, reason
}
