// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// Service is the interface that all services must implement
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is the interface implemented by services that need an
// initialization step before the run group starts.
type Initializer interface {
	Service
	Init() error
}

// Runner is the interface implemented by services that run in the
// background.
type Runner interface {
	Service
	// Run runs the service and is expected to block until ctx is done
	Run(ctx context.Context) error
}

// Shutdowner is the interface implemented by services that hold resources
// to release on shutdown.
type Shutdowner interface {
	Service
	// Shutdown shuts down the service
	Shutdown() error
}

// SignalHandler is a Runner that completes when one of the registered OS
// signals arrives, unwinding the whole run group.
type SignalHandler struct {
	signals []os.Signal
}

func NewSignalHandler(signals ...os.Signal) *SignalHandler {
	return &SignalHandler{
		signals: signals,
	}
}

func (sh *SignalHandler) Name() string {
	return "signal-handler"
}

func (sh *SignalHandler) Run(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sh.signals...)
	defer signal.Stop(c)
	fmt.Println("Press Ctrl+C to shutdown")

	select {
	case <-c:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}
