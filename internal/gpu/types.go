// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package gpu defines the vendor-neutral telemetry data model. Vendor
// bindings (see the nvidia subpackage) map driver library output into these
// types field by field so that driver struct layout never leaks to callers.
package gpu

import "fmt"

// Clock identifies a clock domain on a GPU.
type Clock int

const (
	ClockGraphics Clock = iota
	ClockSM
	ClockMemory
	ClockVideo

	// ClockCount is the number of clock domains; Clocks and MaxClocks
	// arrays are indexed by Clock values below this bound.
	ClockCount
)

// String returns a human-readable name for the clock domain
func (c Clock) String() string {
	switch c {
	case ClockGraphics:
		return "graphics"
	case ClockSM:
		return "sm"
	case ClockMemory:
		return "memory"
	case ClockVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ComputeMode represents a GPU's compute mode configuration.
// Maps directly to nvmlComputeMode_t from NVML.
type ComputeMode int

const (
	// ComputeModeDefault allows multiple processes to share the GPU (time-slicing)
	ComputeModeDefault ComputeMode = 0

	// ComputeModeExclusiveThread allows only one compute thread (legacy mode)
	ComputeModeExclusiveThread ComputeMode = 1

	// ComputeModeExclusiveProcess allows only one compute process
	ComputeModeExclusiveProcess ComputeMode = 2

	// ComputeModeProhibited disallows compute processes
	ComputeModeProhibited ComputeMode = 3
)

// String returns a human-readable name for the compute mode
func (m ComputeMode) String() string {
	switch m {
	case ComputeModeDefault:
		return "default"
	case ComputeModeExclusiveThread:
		return "exclusive-thread"
	case ComputeModeExclusiveProcess:
		return "exclusive-process"
	case ComputeModeProhibited:
		return "prohibited"
	default:
		return "unknown"
	}
}

// ProcessSample is one per-process utilization sample reported by the
// driver. Utilization fields are percentages; Timestamp is in microseconds
// since an arbitrary driver epoch.
type ProcessSample struct {
	PID       uint32
	Timestamp uint64
	SMUtil    uint32
	MemUtil   uint32
	EncUtil   uint32
	DecUtil   uint32
}

// Utilization holds device-level utilization rates in percent.
type Utilization struct {
	// GPU is the percent of time one or more kernels was executing
	GPU uint32

	// Memory is the percent of time device memory was being read or written
	Memory uint32
}

// Device holds everything known about one physical GPU.
//
// Identity and capability fields are populated once at discovery and are
// read-only afterwards. Telemetry fields are overwritten wholesale on each
// snapshot; no history is retained. ProcessSamples is replaced wholesale on
// each process snapshot.
//
// A Device is a plain value with no internal locking; collectors that
// refresh records concurrently hand out copies instead of sharing them.
type Device struct {
	// Identity
	Index   int
	Name    string
	BusID   string
	Product string // PCI database product name, empty if unresolved

	// Capability
	CUDACapable     bool
	CapabilityMajor int
	CapabilityMinor int
	ComputeMode     ComputeMode

	PowerLimitMilliwatts uint32
	MemoryTotalBytes     uint64
	MaxClocksMHz         [ClockCount]uint32

	// Telemetry
	TemperatureCelsius   uint32
	PowerUsageMilliwatts uint32
	Utilization          Utilization
	MemoryUsedBytes      uint64
	MemoryFreeBytes      uint64
	ClocksMHz            [ClockCount]uint32

	// Process samples
	ProcessSamples []ProcessSample

	// LastSampleTimestamp is the watermark: the largest sample timestamp
	// observed so far. The driver filters subsequent queries by it, so it
	// must never decrease.
	LastSampleTimestamp uint64
}

// Environment holds the discovered driver identity and the fixed device
// collection. Devices[i].Index == i for every i; the collection is never
// resized after discovery.
type Environment struct {
	DriverVersion     string
	NVMLVersion       string
	CUDADriverVersion int // encoded as major*1000 + minor*10

	Devices []Device
}

// CUDAVersionString renders the encoded CUDA driver version as "major.minor".
func (e *Environment) CUDAVersionString() string {
	return fmt.Sprintf("%d.%d", e.CUDADriverVersion/1000, e.CUDADriverVersion%1000/10)
}

// Device returns the device with the given index, or nil if it is out of
// range.
func (e *Environment) Device(index int) *Device {
	if index < 0 || index >= len(e.Devices) {
		return nil
	}
	return &e.Devices[index]
}
