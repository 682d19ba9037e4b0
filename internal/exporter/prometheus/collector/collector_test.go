// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpumon-io/gpumon/internal/gpu"
)

// MockProvider mocks the TelemetryProvider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Environment() *gpu.Environment {
	args := m.Called()
	if e := args.Get(0); e != nil {
		return e.(*gpu.Environment)
	}
	return nil
}

func (m *MockProvider) SnapshotAll() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockProvider) SampleProcessesAll() error {
	args := m.Called()
	return args.Error(0)
}

var _ TelemetryProvider = (*MockProvider)(nil)

func sampleEnvironment() *gpu.Environment {
	return &gpu.Environment{
		DriverVersion:     "550.54.15",
		NVMLVersion:       "12.550.54.15",
		CUDADriverVersion: 12040,
		Devices: []gpu.Device{{
			Index:                0,
			Name:                 "NVIDIA A100-SXM4-40GB",
			BusID:                "0000:07:00.0",
			CUDACapable:          true,
			CapabilityMajor:      8,
			CapabilityMinor:      0,
			PowerLimitMilliwatts: 400000,
			MemoryTotalBytes:     42949672960,
			MaxClocksMHz:         [gpu.ClockCount]uint32{1410, 1410, 1215, 1290},
			TemperatureCelsius:   41,
			PowerUsageMilliwatts: 152300,
			Utilization:          gpu.Utilization{GPU: 87, Memory: 34},
			MemoryUsedBytes:      10737418240,
			MemoryFreeBytes:      32212254720,
			ClocksMHz:            [gpu.ClockCount]uint32{1290, 1290, 1215, 0},
			LastSampleTimestamp:  170000,
			ProcessSamples: []gpu.ProcessSample{
				{PID: 4242, Timestamp: 170000, SMUtil: 80, MemUtil: 25, EncUtil: 0, DecUtil: 5},
			},
		}},
	}
}

// collect drains a collector into dto metrics for inspection.
func collect(t *testing.T, c prometheus.Collector) []*dto.Metric {
	t.Helper()

	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)

	var metrics []*dto.Metric
	for m := range ch {
		d := &dto.Metric{}
		require.NoError(t, m.Write(d))
		metrics = append(metrics, d)
	}
	return metrics
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// findGauge returns the first gauge whose labels include all of want.
func findGauge(metrics []*dto.Metric, want map[string]string) *dto.Metric {
	for _, m := range metrics {
		match := true
		for k, v := range want {
			if labelValue(m, k) != v {
				match = false
				break
			}
		}
		if match {
			return m
		}
	}
	return nil
}

func TestTelemetryCollector(t *testing.T) {
	t.Run("refreshes and exports device gauges", func(t *testing.T) {
		provider := &MockProvider{}
		provider.On("SnapshotAll").Return(nil)
		provider.On("Environment").Return(sampleEnvironment())

		c := NewTelemetryCollector(provider, slog.Default())
		metrics := collect(t, c)

		// two utilization series + eight clock series + six scalar gauges
		assert.Len(t, metrics, 16)

		provider.AssertCalled(t, "SnapshotAll")

		temp := findGauge(metrics, map[string]string{"gpu": "0"})
		require.NotNil(t, temp)

		util := findGauge(metrics, map[string]string{"gpu": "0", "resource": "gpu"})
		require.NotNil(t, util)
		assert.InDelta(t, 0.87, util.GetGauge().GetValue(), 1e-9)

		clk := findGauge(metrics, map[string]string{"gpu": "0", "domain": "memory"})
		require.NotNil(t, clk)
		assert.InDelta(t, 1215e6, clk.GetGauge().GetValue(), 1e-3)
	})

	t.Run("snapshot failure exports nothing", func(t *testing.T) {
		provider := &MockProvider{}
		provider.On("SnapshotAll").Return(errors.New("gpu lost"))

		c := NewTelemetryCollector(provider, slog.Default())
		assert.Empty(t, collect(t, c))
		provider.AssertNotCalled(t, "Environment")
	})
}

func TestProcessCollector(t *testing.T) {
	t.Run("exports per-process utilization and watermark", func(t *testing.T) {
		provider := &MockProvider{}
		provider.On("SampleProcessesAll").Return(nil)
		provider.On("Environment").Return(sampleEnvironment())

		c := NewProcessCollector(provider, slog.Default())
		metrics := collect(t, c)

		// one watermark gauge + four resources for the single sample
		assert.Len(t, metrics, 5)

		sm := findGauge(metrics, map[string]string{"gpu": "0", "pid": "4242", "resource": "sm"})
		require.NotNil(t, sm)
		assert.InDelta(t, 0.80, sm.GetGauge().GetValue(), 1e-9)

		watermark := findGauge(metrics, map[string]string{"gpu": "0"})
		require.NotNil(t, watermark)
	})

	t.Run("sampling failure exports nothing", func(t *testing.T) {
		provider := &MockProvider{}
		provider.On("SampleProcessesAll").Return(errors.New("not supported"))

		c := NewProcessCollector(provider, slog.Default())
		assert.Empty(t, collect(t, c))
	})

	t.Run("empty sample window still exports watermark", func(t *testing.T) {
		env := sampleEnvironment()
		env.Devices[0].ProcessSamples = nil

		provider := &MockProvider{}
		provider.On("SampleProcessesAll").Return(nil)
		provider.On("Environment").Return(env)

		c := NewProcessCollector(provider, slog.Default())
		metrics := collect(t, c)
		assert.Len(t, metrics, 1)
	})
}

func TestGPUInfoCollector(t *testing.T) {
	provider := &MockProvider{}
	provider.On("Environment").Return(sampleEnvironment())

	c := NewGPUInfoCollector(provider)
	metrics := collect(t, c)
	require.Len(t, metrics, 2)

	driver := findGauge(metrics, map[string]string{"driver_version": "550.54.15"})
	require.NotNil(t, driver)
	assert.Equal(t, "12.4", labelValue(driver, "cuda_version"))

	info := findGauge(metrics, map[string]string{"gpu": "0"})
	require.NotNil(t, info)
	assert.Equal(t, "NVIDIA A100-SXM4-40GB", labelValue(info, "gpu_name"))
	assert.Equal(t, "0000:07:00.0", labelValue(info, "bus_id"))
	assert.Equal(t, "8.0", labelValue(info, "cuda_capability"))
}

func TestBuildInfoCollector(t *testing.T) {
	c := NewBuildInfoCollector()

	metrics := collect(t, c)
	require.Len(t, metrics, 1)
	assert.Equal(t, 1.0, metrics[0].GetGauge().GetValue())
}
