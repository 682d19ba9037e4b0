// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders captured telemetry as human-readable text. It
// performs no driver queries and cannot fail: whatever is currently stored
// is printed, including zero-valued fields when no snapshot has been taken.
// The output is a display convention, not a wire contract.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/gpumon-io/gpumon/internal/gpu"
)

const bytesPerMB = 1024 * 1024

// Environment writes the full-environment report: driver identity followed
// by one block per device with its capability and static limits.
func Environment(w io.Writer, env *gpu.Environment) {
	fmt.Fprintf(w, "CUDA driver version: %s\n", env.CUDAVersionString())
	fmt.Fprintf(w, "NVML version: %s\n", env.NVMLVersion)
	fmt.Fprintf(w, "Driver version: %s\n", env.DriverVersion)
	fmt.Fprintf(w, "Found %d device%s\n", len(env.Devices), plural(len(env.Devices)))

	writeDeviceTable(w, env)

	for i := range env.Devices {
		dev := &env.Devices[i]
		writeDeviceHeading(w, dev)
		if dev.CUDACapable {
			fmt.Fprintf(w, "\tCUDA capability %d.%d, compute mode %s\n",
				dev.CapabilityMajor, dev.CapabilityMinor, dev.ComputeMode)
		} else {
			fmt.Fprintf(w, "\tNot a CUDA capable device\n")
		}
		fmt.Fprintf(w, "\tTemperature %d C\n", dev.TemperatureCelsius)
		fmt.Fprintf(w, "\tPower limit %d W\n", dev.PowerLimitMilliwatts/1000)
		fmt.Fprintf(w, "\tTotal memory %d MB\n", dev.MemoryTotalBytes/bytesPerMB)
		fmt.Fprintf(w, "\tMax clocks: %s\n", clockLine(dev.MaxClocksMHz))
	}
}

// DeviceTelemetry writes the single-device telemetry report.
func DeviceTelemetry(w io.Writer, dev *gpu.Device) {
	writeDeviceHeading(w, dev)
	fmt.Fprintf(w, "\tTemperature %d C\n", dev.TemperatureCelsius)
	fmt.Fprintf(w, "\tPower usage %d W\n", dev.PowerUsageMilliwatts/1000)
	fmt.Fprintf(w, "\tGPU utilization %d%%, memory utilization %d%%\n",
		dev.Utilization.GPU, dev.Utilization.Memory)
	fmt.Fprintf(w, "\tMemory used %d MB, total %d MB\n",
		dev.MemoryUsedBytes/bytesPerMB, dev.MemoryTotalBytes/bytesPerMB)
	fmt.Fprintf(w, "\tClocks: %s\n", clockLine(dev.ClocksMHz))
}

// DeviceProcesses writes the single-device process report: one row per
// recorded sample.
func DeviceProcesses(w io.Writer, dev *gpu.Device) {
	writeDeviceHeading(w, dev)
	if len(dev.ProcessSamples) == 0 {
		fmt.Fprintf(w, "\tNo process samples recorded\n")
		return
	}

	rows := make([][]string, 0, len(dev.ProcessSamples))
	for _, s := range dev.ProcessSamples {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(s.PID), 10),
			strconv.FormatUint(s.Timestamp, 10),
			strconv.FormatUint(uint64(s.SMUtil), 10),
			strconv.FormatUint(uint64(s.MemUtil), 10),
			strconv.FormatUint(uint64(s.EncUtil), 10),
			strconv.FormatUint(uint64(s.DecUtil), 10),
		})
	}

	table := tablewriter.NewWriter(w)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header([]string{"PID", "Timestamp", "SM%", "Mem%", "Enc%", "Dec%"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

// AllTelemetry writes the telemetry report for every device in index order.
func AllTelemetry(w io.Writer, env *gpu.Environment) {
	for i := range env.Devices {
		DeviceTelemetry(w, &env.Devices[i])
	}
}

// AllProcesses writes the process report for every device in index order.
func AllProcesses(w io.Writer, env *gpu.Environment) {
	for i := range env.Devices {
		DeviceProcesses(w, &env.Devices[i])
	}
}

func writeDeviceHeading(w io.Writer, dev *gpu.Device) {
	if dev.Product != "" {
		fmt.Fprintf(w, "%d. %s [%s] (%s)\n", dev.Index, dev.Name, dev.BusID, dev.Product)
		return
	}
	fmt.Fprintf(w, "%d. %s [%s]\n", dev.Index, dev.Name, dev.BusID)
}

func writeDeviceTable(w io.Writer, env *gpu.Environment) {
	rows := make([][]string, 0, len(env.Devices))
	for i := range env.Devices {
		dev := &env.Devices[i]
		capability := "no"
		if dev.CUDACapable {
			capability = fmt.Sprintf("%d.%d", dev.CapabilityMajor, dev.CapabilityMinor)
		}
		rows = append(rows, []string{
			strconv.Itoa(dev.Index),
			dev.Name,
			dev.BusID,
			capability,
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Index", "Name", "Bus ID", "CUDA"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

func clockLine(clocks [gpu.ClockCount]uint32) string {
	line := ""
	for domain := gpu.Clock(0); domain < gpu.ClockCount; domain++ {
		if domain > 0 {
			line += ", "
		}
		line += fmt.Sprintf("%s %d MHz", domain, clocks[domain])
	}
	return line
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
