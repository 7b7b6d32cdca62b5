// Package system checks whether a frame cache fits in the host's memory.
// The cache never evicts, so the whole decoded sequence stays resident.
package system

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// WarnRatio is the share of available memory above which a cache is reported
// as not fitting.
const WarnRatio = 0.5

// Budget compares the memory a frame cache needs with what the host has.
type Budget struct {
	Needed    uint64
	Available uint64
}

// Fits reports whether Needed stays under WarnRatio of Available. An unknown
// Available (zero) always fits.
func (b Budget) Fits() bool {
	if b.Available == 0 {
		return true
	}
	return float64(b.Needed) <= float64(b.Available)*WarnRatio
}

func (b Budget) String() string {
	return fmt.Sprintf("cache %s of %s available", HumanBytes(b.Needed), HumanBytes(b.Available))
}

// EstimateCache returns the bytes needed to keep frames decoded RGBA frames
// of width×height pixels.
func EstimateCache(frames, width, height int) uint64 {
	if frames <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	return uint64(frames) * uint64(width) * uint64(height) * 4
}

// AvailableMemory returns the memory the host can hand out without swapping.
func AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("system: read memory stats: %w", err)
	}
	return vm.Available, nil
}

// CheckCache builds a Budget for needed bytes against the live memory stats.
func CheckCache(needed uint64) (Budget, error) {
	avail, err := AvailableMemory()
	if err != nil {
		return Budget{Needed: needed}, err
	}
	return Budget{Needed: needed, Available: avail}, nil
}

// HumanBytes formats n with a binary unit.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
