// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package nvidia

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/gpumon-io/gpumon/internal/gpu"
)

// nvmlClockForDomain maps the model's clock domains to NVML clock types.
// Indexed by gpu.Clock; both enumerations cover graphics, SM, memory, video.
var nvmlClockForDomain = [gpu.ClockCount]nvml.ClockType{
	gpu.ClockGraphics: nvml.CLOCK_GRAPHICS,
	gpu.ClockSM:       nvml.CLOCK_SM,
	gpu.ClockMemory:   nvml.CLOCK_MEM,
	gpu.ClockVideo:    nvml.CLOCK_VIDEO,
}

// Collector owns the NVML session and the discovered environment.
//
// Lifecycle: Init establishes the NVML session and runs discovery; Snapshot*
// and SampleProcesses* refresh telemetry in place; Shutdown releases the
// sample buffers and closes the session. All operations are synchronous,
// blocking calls into the driver library. A Collector is safe for concurrent
// use: every operation serializes on an internal mutex and Environment hands
// out a copy of the device records.
type Collector struct {
	logger *slog.Logger
	lib    nvmlLib
	lookup productLookup

	mu          sync.Mutex // serializes session state and environment access
	env         *gpu.Environment
	handles     []nvmlDeviceHandle
	initialized bool
}

// productLookup resolves a PCI device/vendor id pair to a product name.
// Implemented by the pcidb-backed resolver; swapped out in tests.
type productLookup func(pciDeviceID uint32) string

// NewCollector creates a Collector backed by the real NVML library.
func NewCollector(logger *slog.Logger) *Collector {
	return newCollectorWithLib(logger, newRealNvmlLib(), lookupProductName)
}

// newCollectorWithLib creates a Collector with a specific library
// implementation. This is used for testing with mock implementations.
func newCollectorWithLib(logger *slog.Logger, lib nvmlLib, lookup productLookup) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if lookup == nil {
		lookup = func(uint32) string { return "" }
	}
	return &Collector{
		logger: logger.With("component", "nvml"),
		lib:    lib,
		lookup: lookup,
	}
}

// Name implements service.Service.
func (c *Collector) Name() string {
	return "nvml-collector"
}

// Init starts the NVML session and runs device discovery. It is a no-op
// when the session is already up.
func (c *Collector) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	if ret := c.lib.Init(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML init failed: %s", c.lib.ErrorString(ret))
	}
	c.initialized = true

	if err := c.discover(); err != nil {
		_ = c.lib.Shutdown()
		c.initialized = false
		return err
	}

	return nil
}

// Shutdown releases every device's sample buffer, drops the environment and
// closes the NVML session.
func (c *Collector) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil
	}

	if c.env != nil {
		for i := range c.env.Devices {
			c.env.Devices[i].ProcessSamples = nil
		}
	}
	c.env = nil
	c.handles = nil
	c.initialized = false

	if ret := c.lib.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML shutdown failed: %s", c.lib.ErrorString(ret))
	}
	c.logger.Info("NVML shutdown complete")
	return nil
}

// Environment returns a copy of the discovered environment, or nil before
// discovery. The copy is owned by the caller; a later Snapshot or
// SampleProcesses call does not alter it.
func (c *Collector) Environment() *gpu.Environment {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.env == nil {
		return nil
	}
	env := *c.env
	env.Devices = make([]gpu.Device, len(c.env.Devices))
	copy(env.Devices, c.env.Devices)
	return &env
}

// DeviceCount returns the number of discovered devices.
func (c *Collector) DeviceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.env == nil {
		return 0
	}
	return len(c.env.Devices)
}

// fail logs the failed call with its operation name and device index, then
// builds the error that carries the vendor code to the caller.
func (c *Collector) fail(op string, device int, ret nvml.Return) *Error {
	text := c.lib.ErrorString(ret)
	if device >= 0 {
		c.logger.Error("NVML query failed", "op", op, "device", device, "error", text)
	} else {
		c.logger.Error("NVML query failed", "op", op, "error", text)
	}
	return &Error{Op: op, Device: device, Ret: ret, Text: text}
}

// discover builds a fresh environment: driver identity plus one fully
// populated device record per index. Any failure other than "not supported"
// on the compute-mode query aborts the whole run; a partially populated
// environment is never installed.
func (c *Collector) discover() error {
	env := &gpu.Environment{}

	version, ret := c.lib.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return c.fail("driver version", systemDevice, ret)
	}
	env.DriverVersion = version

	nvmlVersion, ret := c.lib.SystemGetNVMLVersion()
	if ret != nvml.SUCCESS {
		return c.fail("NVML version", systemDevice, ret)
	}
	env.NVMLVersion = nvmlVersion

	cudaVersion, ret := c.lib.SystemGetCudaDriverVersion()
	if ret != nvml.SUCCESS {
		return c.fail("CUDA driver version", systemDevice, ret)
	}
	env.CUDADriverVersion = cudaVersion

	count, ret := c.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return c.fail("device count", systemDevice, ret)
	}

	env.Devices = make([]gpu.Device, count)
	handles := make([]nvmlDeviceHandle, count)

	for i := 0; i < count; i++ {
		handle, ret := c.lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return c.fail("handle", i, ret)
		}
		handles[i] = handle

		if err := c.discoverDevice(&env.Devices[i], handle, i); err != nil {
			return err
		}

		c.logger.Info("discovered GPU",
			"index", i,
			"name", env.Devices[i].Name,
			"bus", env.Devices[i].BusID,
			"cuda_capable", env.Devices[i].CUDACapable,
		)
	}

	c.env = env
	c.handles = handles
	c.logger.Info("discovery complete", "device_count", count, "driver", env.DriverVersion)
	return nil
}

// discoverDevice populates the identity and capability fields of one device
// record plus an initial temperature reading.
func (c *Collector) discoverDevice(dev *gpu.Device, handle nvmlDeviceHandle, index int) error {
	dev.Index = index

	name, ret := handle.GetName()
	if ret != nvml.SUCCESS {
		return c.fail("name", index, ret)
	}
	dev.Name = name

	pci, ret := handle.GetPciInfo()
	if ret != nvml.SUCCESS {
		return c.fail("pci info", index, ret)
	}
	dev.BusID = busIDString(pci.BusId)
	dev.Product = c.lookup(pci.PciDeviceId)

	mode, ret := handle.GetComputeMode()
	switch ret {
	case nvml.SUCCESS:
		dev.CUDACapable = true
		dev.ComputeMode = mapComputeMode(mode)
	case nvml.ERROR_NOT_SUPPORTED:
		// Not a failure: the device simply is not capability-bearing.
		dev.CUDACapable = false
	default:
		return c.fail("compute mode", index, ret)
	}

	if dev.CUDACapable {
		major, minor, ret := handle.GetCudaComputeCapability()
		if ret != nvml.SUCCESS {
			return c.fail("compute capability", index, ret)
		}
		dev.CapabilityMajor = major
		dev.CapabilityMinor = minor
	}

	mem, ret := handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return c.fail("memory info", index, ret)
	}
	dev.MemoryTotalBytes = mem.Total
	dev.MemoryUsedBytes = mem.Used
	dev.MemoryFreeBytes = mem.Free

	limit, ret := handle.GetEnforcedPowerLimit()
	if ret != nvml.SUCCESS {
		return c.fail("power limit", index, ret)
	}
	dev.PowerLimitMilliwatts = limit

	temp, ret := handle.GetTemperature()
	if ret != nvml.SUCCESS {
		return c.fail("temperature", index, ret)
	}
	dev.TemperatureCelsius = temp

	for domain := gpu.Clock(0); domain < gpu.ClockCount; domain++ {
		clock, ret := handle.GetMaxClockInfo(nvmlClockForDomain[domain])
		if ret != nvml.SUCCESS {
			return c.fail("max "+domain.String()+" clock", index, ret)
		}
		dev.MaxClocksMHz[domain] = clock
	}

	return nil
}

// Snapshot refreshes the time-varying telemetry of the device with the
// given index, overwriting the stored fields in place.
func (c *Collector) Snapshot(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, handle, err := c.device(index)
	if err != nil {
		return err
	}
	return c.snapshotDevice(dev, handle)
}

// SnapshotAll refreshes telemetry for every device in ascending index
// order, stopping at the first failure. Devices past the failing one keep
// their previous values; callers are expected to handle this partial state.
func (c *Collector) SnapshotAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.env == nil {
		return ErrNotDiscovered{}
	}
	for i := range c.env.Devices {
		if err := c.snapshotDevice(&c.env.Devices[i], c.handles[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) snapshotDevice(dev *gpu.Device, handle nvmlDeviceHandle) error {
	temp, ret := handle.GetTemperature()
	if ret != nvml.SUCCESS {
		return c.fail("temperature", dev.Index, ret)
	}
	dev.TemperatureCelsius = temp

	mem, ret := handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return c.fail("memory info", dev.Index, ret)
	}
	dev.MemoryUsedBytes = mem.Used
	dev.MemoryFreeBytes = mem.Free

	power, ret := handle.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return c.fail("power usage", dev.Index, ret)
	}
	dev.PowerUsageMilliwatts = power

	util, ret := handle.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return c.fail("utilization rates", dev.Index, ret)
	}
	dev.Utilization = gpu.Utilization{GPU: util.Gpu, Memory: util.Memory}

	for domain := gpu.Clock(0); domain < gpu.ClockCount; domain++ {
		clock, ret := handle.GetClockInfo(nvmlClockForDomain[domain])
		if ret != nvml.SUCCESS {
			return c.fail(domain.String()+" clock", dev.Index, ret)
		}
		dev.ClocksMHz[domain] = clock
	}

	return nil
}

// SampleProcesses refreshes the per-process utilization samples of the
// device with the given index.
func (c *Collector) SampleProcesses(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, handle, err := c.device(index)
	if err != nil {
		return err
	}
	return c.sampleDevice(dev, handle)
}

// SampleProcessesAll refreshes process samples for every device in
// ascending index order, stopping at the first failure.
func (c *Collector) SampleProcessesAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.env == nil {
		return ErrNotDiscovered{}
	}
	for i := range c.env.Devices {
		if err := c.sampleDevice(&c.env.Devices[i], c.handles[i]); err != nil {
			return err
		}
	}
	return nil
}

// sampleDevice queries the samples newer than the device's watermark and
// installs them, replacing the previous buffer wholesale. The watermark
// advances to the maximum timestamp observed and is left unchanged when the
// sample set is empty. On failure the stored sample state is untouched.
func (c *Collector) sampleDevice(dev *gpu.Device, handle nvmlDeviceHandle) error {
	samples, ret := handle.GetProcessUtilization(dev.LastSampleTimestamp)
	if ret == nvml.ERROR_INSUFFICIENT_SIZE {
		// The library sizes the sample buffer in a first pass; a race with
		// newly arriving samples surfaces as INSUFFICIENT_SIZE on the fetch
		// pass. One more round picks up the correctly sized buffer.
		samples, ret = handle.GetProcessUtilization(dev.LastSampleTimestamp)
	}
	if ret != nvml.SUCCESS {
		return c.fail("process samples", dev.Index, ret)
	}

	watermark := dev.LastSampleTimestamp
	mapped := make([]gpu.ProcessSample, len(samples))
	for i, s := range samples {
		mapped[i] = gpu.ProcessSample{
			PID:       s.Pid,
			Timestamp: s.TimeStamp,
			SMUtil:    s.SmUtil,
			MemUtil:   s.MemUtil,
			EncUtil:   s.EncUtil,
			DecUtil:   s.DecUtil,
		}
		if s.TimeStamp > watermark {
			watermark = s.TimeStamp
		}
	}

	dev.ProcessSamples = mapped
	dev.LastSampleTimestamp = watermark
	return nil
}

// device resolves an index to the live record and its handle. Callers must
// hold c.mu.
func (c *Collector) device(index int) (*gpu.Device, nvmlDeviceHandle, error) {
	if c.env == nil {
		return nil, nil, ErrNotDiscovered{}
	}
	if index < 0 || index >= len(c.env.Devices) {
		return nil, nil, ErrDeviceNotFound{Index: index}
	}
	return &c.env.Devices[index], c.handles[index], nil
}

// mapComputeMode converts the NVML compute mode enum to the model's.
func mapComputeMode(mode nvml.ComputeMode) gpu.ComputeMode {
	switch mode {
	case nvml.COMPUTEMODE_DEFAULT:
		return gpu.ComputeModeDefault
	case nvml.COMPUTEMODE_EXCLUSIVE_THREAD:
		return gpu.ComputeModeExclusiveThread
	case nvml.COMPUTEMODE_EXCLUSIVE_PROCESS:
		return gpu.ComputeModeExclusiveProcess
	case nvml.COMPUTEMODE_PROHIBITED:
		return gpu.ComputeModeProhibited
	default:
		return gpu.ComputeModeDefault
	}
}

// busIDString converts NVML's fixed-size PCI bus id buffer to a string.
func busIDString(raw [32]int8) string {
	buf := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}
