// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
)

// gpuInfoCollector exports one constant series per discovered device so the
// gpu index label of the other metrics can be mapped back to real hardware.
type gpuInfoCollector struct {
	provider TelemetryProvider

	desc       *prom.Desc
	driverDesc *prom.Desc
}

// NewGPUInfoCollector creates a collector for static device identity.
func NewGPUInfoCollector(provider TelemetryProvider) *gpuInfoCollector {
	return &gpuInfoCollector{
		provider: provider,
		desc: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "gpu", "info"),
			"GPU device information for mapping index to name and PCI bus ID",
			[]string{"gpu", "gpu_name", "bus_id", "cuda_capability"},
			nil,
		),
		driverDesc: prom.NewDesc(
			prom.BuildFQName(gpumonNS, "driver", "info"),
			"NVIDIA driver stack information",
			[]string{"driver_version", "nvml_version", "cuda_version"},
			nil,
		),
	}
}

func (c *gpuInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
	ch <- c.driverDesc
}

func (c *gpuInfoCollector) Collect(ch chan<- prom.Metric) {
	env := c.provider.Environment()
	if env == nil {
		return
	}

	ch <- prom.MustNewConstMetric(
		c.driverDesc,
		prom.GaugeValue,
		1,
		env.DriverVersion,
		env.NVMLVersion,
		env.CUDAVersionString(),
	)

	for i := range env.Devices {
		dev := &env.Devices[i]
		capability := ""
		if dev.CUDACapable {
			capability = fmt.Sprintf("%d.%d", dev.CapabilityMajor, dev.CapabilityMinor)
		}
		ch <- prom.MustNewConstMetric(
			c.desc,
			prom.GaugeValue,
			1,
			fmt.Sprintf("%d", dev.Index),
			dev.Name,
			dev.BusID,
			capability,
		)
	}
}
