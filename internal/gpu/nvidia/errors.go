// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package nvidia

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// systemDevice marks errors from system-level queries that are not tied to
// a device index.
const systemDevice = -1

// Error reports a failed NVML call. The vendor result code is carried
// through unchanged; no error kinds are added on top of it. Callers that
// need the raw code can recover it with errors.As.
type Error struct {
	// Op is the name of the failed query, e.g. "temperature".
	Op string

	// Device is the device index the query targeted, or -1 for
	// system-level queries.
	Device int

	// Ret is the NVML result code.
	Ret nvml.Return

	// Text is the library's human-readable rendering of Ret.
	Text string
}

func (e *Error) Error() string {
	if e.Device >= 0 {
		return fmt.Sprintf("failed to get %s for device %d: %s", e.Op, e.Device, e.Text)
	}
	return fmt.Sprintf("failed to get %s: %s", e.Op, e.Text)
}

// Code returns the NVML result code of the failed call.
func (e *Error) Code() nvml.Return {
	return e.Ret
}

// ErrNotDiscovered is returned when a snapshot or report is requested
// before discovery has populated the environment.
type ErrNotDiscovered struct{}

func (ErrNotDiscovered) Error() string {
	return "no environment: discovery has not run"
}

// ErrDeviceNotFound is returned for an out-of-range device index.
type ErrDeviceNotFound struct {
	Index int
}

func (e ErrDeviceNotFound) Error() string {
	return fmt.Sprintf("no device with index %d", e.Index)
}
