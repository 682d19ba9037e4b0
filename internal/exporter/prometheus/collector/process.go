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

// processCollector samples per-process utilization on each scrape. Samples
// cover the window since the previous scrape; a quiet window exports nothing.
type processCollector struct {
	sync.Mutex

	provider TelemetryProvider
	logger   *slog.Logger

	utilization *prom.Desc
	lastSample  *prom.Desc
}

// NewProcessCollector creates a collector for per-process utilization.
func NewProcessCollector(provider TelemetryProvider, logger *slog.Logger) *processCollector {
	return &processCollector{
		provider: provider,
		logger:   logger.With("collector", "process"),
		utilization: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "process", "utilization_ratio"),
			"Per-process utilization over the last sample window",
			[]string{"gpu", "pid", "resource"}, nil,
		),
		lastSample: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "process", "last_sample_timestamp_microseconds"),
			"CPU timestamp of the newest process sample seen per device",
			[]string{"gpu"}, nil,
		),
	}
}

func (c *processCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.utilization
	ch <- c.lastSample
}

func (c *processCollector) Collect(ch chan<- prom.Metric) {
	c.Lock()
	defer c.Unlock()

	if err := c.provider.SampleProcessesAll(); err != nil {
		c.logger.Error("Failed to sample process utilization", "error", err)
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

func (c *processCollector) collectDevice(ch chan<- prom.Metric, dev *gpu.Device) {
	index := fmt.Sprintf("%d", dev.Index)

	ch <- prom.MustNewConstMetric(c.lastSample, prom.GaugeValue,
		float64(dev.LastSampleTimestamp), index)

	for _, sample := range dev.ProcessSamples {
		pid := fmt.Sprintf("%d", sample.PID)
		ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
			float64(sample.SMUtil)/100.0, index, pid, "sm")
		ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
			float64(sample.MemUtil)/100.0, index, pid, "memory")
		ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
			float64(sample.EncUtil)/100.0, index, pid, "encoder")
		ch <- prom.MustNewConstMetric(c.utilization, prom.GaugeValue,
			float64(sample.DecUtil)/100.0, index, pid, "decoder")
	}
}
