// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package nvidia

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/mock"
)

// mockNvmlLib is a mock implementation of nvmlLib for testing
type mockNvmlLib struct {
	mock.Mock
}

func (m *mockNvmlLib) Init() nvml.Return {
	args := m.Called()
	return args.Get(0).(nvml.Return)
}

func (m *mockNvmlLib) Shutdown() nvml.Return {
	args := m.Called()
	return args.Get(0).(nvml.Return)
}

func (m *mockNvmlLib) SystemGetDriverVersion() (string, nvml.Return) {
	args := m.Called()
	return args.String(0), args.Get(1).(nvml.Return)
}

func (m *mockNvmlLib) SystemGetNVMLVersion() (string, nvml.Return) {
	args := m.Called()
	return args.String(0), args.Get(1).(nvml.Return)
}

func (m *mockNvmlLib) SystemGetCudaDriverVersion() (int, nvml.Return) {
	args := m.Called()
	return args.Int(0), args.Get(1).(nvml.Return)
}

func (m *mockNvmlLib) DeviceGetCount() (int, nvml.Return) {
	args := m.Called()
	return args.Int(0), args.Get(1).(nvml.Return)
}

func (m *mockNvmlLib) DeviceGetHandleByIndex(index int) (nvmlDeviceHandle, nvml.Return) {
	args := m.Called(index)
	handle := args.Get(0)
	if handle == nil {
		return nil, args.Get(1).(nvml.Return)
	}
	return handle.(nvmlDeviceHandle), args.Get(1).(nvml.Return)
}

func (m *mockNvmlLib) ErrorString(ret nvml.Return) string {
	args := m.Called(ret)
	return args.String(0)
}

// mockDeviceHandle is a mock implementation of nvmlDeviceHandle for testing
type mockDeviceHandle struct {
	mock.Mock
}

func (m *mockDeviceHandle) GetName() (string, nvml.Return) {
	args := m.Called()
	return args.String(0), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetPciInfo() (nvml.PciInfo, nvml.Return) {
	args := m.Called()
	return args.Get(0).(nvml.PciInfo), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetComputeMode() (nvml.ComputeMode, nvml.Return) {
	args := m.Called()
	return args.Get(0).(nvml.ComputeMode), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetCudaComputeCapability() (int, int, nvml.Return) {
	args := m.Called()
	return args.Int(0), args.Int(1), args.Get(2).(nvml.Return)
}

func (m *mockDeviceHandle) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	args := m.Called()
	return args.Get(0).(nvml.Memory), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetEnforcedPowerLimit() (uint32, nvml.Return) {
	args := m.Called()
	return args.Get(0).(uint32), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetTemperature() (uint32, nvml.Return) {
	args := m.Called()
	return args.Get(0).(uint32), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetPowerUsage() (uint32, nvml.Return) {
	args := m.Called()
	return args.Get(0).(uint32), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	args := m.Called()
	return args.Get(0).(nvml.Utilization), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	args := m.Called(clock)
	return args.Get(0).(uint32), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetMaxClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	args := m.Called(clock)
	return args.Get(0).(uint32), args.Get(1).(nvml.Return)
}

func (m *mockDeviceHandle) GetProcessUtilization(lastSeen uint64) ([]nvml.ProcessUtilizationSample, nvml.Return) {
	args := m.Called(lastSeen)
	samples := args.Get(0)
	if samples == nil {
		return nil, args.Get(1).(nvml.Return)
	}
	return samples.([]nvml.ProcessUtilizationSample), args.Get(1).(nvml.Return)
}

// Verify interface implementations
var _ nvmlLib = (*mockNvmlLib)(nil)
var _ nvmlDeviceHandle = (*mockDeviceHandle)(nil)
