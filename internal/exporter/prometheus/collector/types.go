// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import "github.com/gpumon-io/gpumon/internal/gpu"

const gpumonNS = "gpumon"

// TelemetryProvider is the part of the GPU shim the collectors scrape.
type TelemetryProvider interface {
	Environment() *gpu.Environment
	SnapshotAll() error
	SampleProcessesAll() error
}
