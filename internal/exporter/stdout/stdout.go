// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"k8s.io/utils/clock"

	"github.com/gpumon-io/gpumon/internal/gpu"
	"github.com/gpumon-io/gpumon/internal/report"
	"github.com/gpumon-io/gpumon/internal/service"
)

type (
	Initializer = service.Initializer
	Runner      = service.Runner
	Shutdowner  = service.Shutdowner
)

// Collector is the part of the telemetry shim the exporter consumes.
type Collector interface {
	Environment() *gpu.Environment
	SnapshotAll() error
	SampleProcessesAll() error
}

// Exporter periodically refreshes GPU telemetry and renders it to out.
type Exporter struct {
	logger    *slog.Logger
	collector Collector
	out       io.WriteCloser
	clock     clock.WithTicker
	interval  time.Duration
	processes bool
}

var (
	_ Runner     = (*Exporter)(nil)
	_ Shutdowner = (*Exporter)(nil)
)

type Opts struct {
	logger    *slog.Logger
	out       io.WriteCloser
	clock     clock.WithTicker
	interval  time.Duration
	processes bool
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:    slog.Default(),
		out:       os.Stdout,
		clock:     clock.RealClock{},
		interval:  5 * time.Second,
		processes: false,
	}
}

// OptionFn is a function that sets one or more options in Opts struct
type OptionFn func(*Opts)

func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.WriteCloser) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

func WithInterval(interval time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = interval
	}
}

// WithProcesses enables per-process utilization sampling on each refresh.
func WithProcesses(enabled bool) OptionFn {
	return func(o *Opts) {
		o.processes = enabled
	}
}

func NewExporter(c Collector, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:    opts.logger.With("service", "stdout"),
		collector: c,
		out:       opts.out,
		clock:     opts.clock,
		interval:  opts.interval,
		processes: opts.processes,
	}
}

func (e *Exporter) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			if err := e.refresh(); err != nil {
				e.logger.Error("Failed to refresh GPU telemetry", "error", err)
				return nil
			}
		case <-ctx.Done():
			e.logger.Info("Exiting ticker")
			return nil
		}
	}
}

func (e *Exporter) refresh() error {
	if err := e.collector.SnapshotAll(); err != nil {
		return err
	}

	report.AllTelemetry(e.out, e.collector.Environment())

	if !e.processes {
		return nil
	}

	if err := e.collector.SampleProcessesAll(); err != nil {
		return err
	}
	report.AllProcesses(e.out, e.collector.Environment())
	return nil
}

func (e *Exporter) Shutdown() error {
	return e.out.Close()
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "stdout"
}
