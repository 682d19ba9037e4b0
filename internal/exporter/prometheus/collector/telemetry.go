// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"log/slog"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/gpumon-io/gpumon/internal/gpu"
)

// telemetryCollector refreshes the dynamic state of every device on each
// scrape and exports it as gauges.
type telemetryCollector struct {
	sync.Mutex

	provider TelemetryProvider
	logger   *slog.Logger

	temperature *prom.Desc
	powerUsage  *prom.Desc
	powerLimit  *prom.Desc
	utilization *prom.Desc
	memoryUsed  *prom.Desc
	memoryFree  *prom.Desc
	memoryTotal *prom.Desc
	clock       *prom.Desc
	maxClock    *prom.Desc
}

// NewTelemetryCollector creates a collector for per-device telemetry.
func NewTelemetryCollector(provider TelemetryProvider, logger *slog.Logger) *telemetryCollector {
	gpuLabel := []string{"gpu"}
	clockLabels := []string{"gpu", "domain"}

	return &telemetryCollector{
		provider: provider,
		logger:   logger.With("collector", "telemetry"),
		temperature: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "temperature_celsius"),
			"Current GPU core temperature",
			gpuLabel, nil,
		),
		powerUsage: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "power_watts"),
			"Current power draw of the device",
			gpuLabel, nil,
		),
		powerLimit: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "power_limit_watts"),
			"Enforced power limit of the device",
			gpuLabel, nil,
		),
		utilization: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "utilization_ratio"),
			"Fraction of time the resource was busy over the last sample period",
			[]string{"gpu", "resource"}, nil,
		),
		memoryUsed: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "memory_used_bytes"),
			"Framebuffer memory allocated",
			gpuLabel, nil,
		),
		memoryFree: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "memory_free_bytes"),
			"Framebuffer memory available",
			gpuLabel, nil,
		),
		memoryTotal: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "memory_total_bytes"),
			"Framebuffer memory installed",
			gpuLabel, nil,
		),
		clock: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "clock_hertz"),
			"Current clock speed per domain",
			clockLabels, nil,
		),
		maxClock: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "max_clock_hertz"),
			"Maximum clock speed per domain",
			clockLabels, nil,
		),
	}
}

func (c *telemetryCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.temperature
	ch <- c.powerUsage
	ch <- c.powerLimit
	ch <- c.utilization
	ch <- c.memoryUsed
	ch <- c.memoryFree
	ch <- c.memoryTotal
	ch <- c.clock
	ch <- c.maxClock
}

func (c *telemetryCollector) Collect(ch chan<- prom.Metric) {
	c.Lock()
	defer c.Unlock()

	if err := c.provider.SnapshotAll(); err != nil {
		c.logger.Error("Failed to refresh GPU telemetry", "error", err)
		return
	}

	env := c.provider.Environment()
	if env == nil {
		return
	}

	for i := range env.Devices {
		c.collectDevice(ch, &env.Devices[i])
	}
}

func (c *telemetryCollector) collectDevice(ch chan<- prom.Metric, dev *gpu.Device) {
	index := fmt.Sprintf("%d", dev.Index)

	ch <- prom.MustNewConstMetric(c.temperature, prom.GaugeValue,
		float64(dev.TemperatureCelsius), index)
	ch <- prom.MustNewConstMetric(c.powerUsage, prom.GaugeValue,
		float64(dev.PowerUsageMilliwatts)/1000.0, index)
	ch <- prom.MustNewConstMetric(c.powerLimit, prom.GaugeValue,
		float64(dev.PowerLimitMilliwatts)/1000.0, index)

	ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
		float64(dev.Utilization.GPU)/100.0, index, "gpu")
	ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
		float64(dev.Utilization.Memory)/100.0, index, "memory")

	ch <- prom.MustNewConstMetric(c.memoryUsed, prom.GaugeValue,
		float64(dev.MemoryUsedBytes), index)
	ch <- prom.MustNewConstMetric(c.memoryFree, prom.GaugeValue,
		float64(dev.MemoryFreeBytes), index)
	ch <- prom.MustNewConstMetric(c.memoryTotal, prom.GaugeValue,
		float64(dev.MemoryTotalBytes), index)

	for domain := gpu.Clock(0); domain < gpu.ClockCount; domain++ {
		ch <- prom.MustNewConstMetric(c.clock, prom.GaugeValue,
			float64(dev.ClocksMHz[domain])*1e6, index, domain.String())
		ch <- prom.MustNewConstMetric(c.maxClock, prom.GaugeValue,
			float64(dev.MaxClocksMHz[domain])*1e6, index, domain.String())
	}
}
