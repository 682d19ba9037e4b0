// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package nvidia

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlLib abstracts the NVML library functions for testability.
// This allows mocking NVML calls in unit tests.
type nvmlLib interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	SystemGetDriverVersion() (string, nvml.Return)
	SystemGetNVMLVersion() (string, nvml.Return)
	SystemGetCudaDriverVersion() (int, nvml.Return)
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (nvmlDeviceHandle, nvml.Return)
	ErrorString(ret nvml.Return) string
}

// nvmlDeviceHandle abstracts operations on an NVML device handle.
type nvmlDeviceHandle interface {
	GetName() (string, nvml.Return)
	GetPciInfo() (nvml.PciInfo, nvml.Return)
	GetComputeMode() (nvml.ComputeMode, nvml.Return)
	GetCudaComputeCapability() (int, int, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetEnforcedPowerLimit() (uint32, nvml.Return)
	GetTemperature() (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetClockInfo(clock nvml.ClockType) (uint32, nvml.Return)
	GetMaxClockInfo(clock nvml.ClockType) (uint32, nvml.Return)
	GetProcessUtilization(lastSeen uint64) ([]nvml.ProcessUtilizationSample, nvml.Return)
}

// realNvmlLib is the production implementation that calls the actual NVML library.
type realNvmlLib struct{}

// realDeviceHandle wraps an actual nvml.Device
type realDeviceHandle struct {
	device nvml.Device
}

// newRealNvmlLib creates a new real NVML library wrapper.
func newRealNvmlLib() nvmlLib {
	return &realNvmlLib{}
}

func (r *realNvmlLib) Init() nvml.Return {
	return nvml.Init()
}

func (r *realNvmlLib) Shutdown() nvml.Return {
	return nvml.Shutdown()
}

func (r *realNvmlLib) SystemGetDriverVersion() (string, nvml.Return) {
	return nvml.SystemGetDriverVersion()
}

func (r *realNvmlLib) SystemGetNVMLVersion() (string, nvml.Return) {
	return nvml.SystemGetNVMLVersion()
}

func (r *realNvmlLib) SystemGetCudaDriverVersion() (int, nvml.Return) {
	return nvml.SystemGetCudaDriverVersion_v2()
}

func (r *realNvmlLib) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (r *realNvmlLib) DeviceGetHandleByIndex(index int) (nvmlDeviceHandle, nvml.Return) {
	handle, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return &realDeviceHandle{device: handle}, ret
}

func (r *realNvmlLib) ErrorString(ret nvml.Return) string {
	return nvml.ErrorString(ret)
}

func (h *realDeviceHandle) GetName() (string, nvml.Return) {
	return h.device.GetName()
}

func (h *realDeviceHandle) GetPciInfo() (nvml.PciInfo, nvml.Return) {
	return h.device.GetPciInfo()
}

func (h *realDeviceHandle) GetComputeMode() (nvml.ComputeMode, nvml.Return) {
	return h.device.GetComputeMode()
}

func (h *realDeviceHandle) GetCudaComputeCapability() (int, int, nvml.Return) {
	return h.device.GetCudaComputeCapability()
}

func (h *realDeviceHandle) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return h.device.GetMemoryInfo()
}

func (h *realDeviceHandle) GetEnforcedPowerLimit() (uint32, nvml.Return) {
	return h.device.GetEnforcedPowerLimit()
}

func (h *realDeviceHandle) GetTemperature() (uint32, nvml.Return) {
	return h.device.GetTemperature(nvml.TEMPERATURE_GPU)
}

func (h *realDeviceHandle) GetPowerUsage() (uint32, nvml.Return) {
	return h.device.GetPowerUsage()
}

func (h *realDeviceHandle) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	return h.device.GetUtilizationRates()
}

func (h *realDeviceHandle) GetClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	return h.device.GetClockInfo(clock)
}

func (h *realDeviceHandle) GetMaxClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	return h.device.GetMaxClockInfo(clock)
}

func (h *realDeviceHandle) GetProcessUtilization(lastSeen uint64) ([]nvml.ProcessUtilizationSample, nvml.Return) {
	return h.device.GetProcessUtilization(lastSeen)
}
