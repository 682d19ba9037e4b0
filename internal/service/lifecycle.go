// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/oklog/run"
)

// Init initializes all services that implement the Initializer interface.
// If any service fails to initialize, all previously initialized services
// that implement the Shutdowner interface are shut down again.
func Init(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	var retErr error
	initialized := make([]Service, 0, len(services))

	for _, s := range services {
		srv, ok := s.(Initializer)
		if !ok {
			logger.Debug("skipping service initialization", "service", s.Name(),
				"reason", "service does not implement Initializer")
			continue
		}

		logger.Info("Initializing service", "service", s.Name())
		if err := srv.Init(); err != nil {
			retErr = fmt.Errorf("failed to initialize service %s: %w", s.Name(), err)
			break
		}
		initialized = append(initialized, s)
	}

	if retErr == nil {
		return nil
	}

	logger.Info("Shutting down initialized services")
	for _, s := range initialized {
		srv, ok := s.(Shutdowner)
		if !ok {
			continue
		}
		if err := srv.Shutdown(); err != nil {
			logger.Error("failed to shutdown service", "service", s.Name(), "error", err)
		}
	}
	return retErr
}

// Run runs all services that implement the Runner interface as one run
// group: the first one to return takes the whole group down. Services that
// also implement Shutdowner are shut down as the group unwinds.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	var passive []Shutdowner
	for _, s := range services {
		runner, ok := s.(Runner)
		if !ok {
			if sd, ok := s.(Shutdowner); ok {
				passive = append(passive, sd)
			}
			logger.Debug("skipping service", "service", s.Name(),
				"reason", "service does not implement Runner")
			continue
		}

		svc := s
		r := runner
		g.Add(
			func() error {
				logger.Info("Running service", "service", svc.Name())
				return r.Run(ctx)
			},
			func(err error) {
				cancel()
				if err != nil {
					logger.Warn("service terminated", "service", svc.Name(), "reason", err)
				}

				shutdowner, ok := svc.(Shutdowner)
				if !ok {
					return
				}

				logger.Info("shutting down", "service", svc.Name())
				if shutdownErr := shutdowner.Shutdown(); shutdownErr != nil {
					logger.Warn("service shutdown failed with error", "service", svc.Name(), "error", shutdownErr)
				}
			},
		)
	}

	err := g.Run()

	// services that only hold resources are shut down once the group is done
	for _, s := range passive {
		logger.Info("shutting down", "service", s.Name())
		if shutdownErr := s.Shutdown(); shutdownErr != nil {
			logger.Warn("service shutdown failed with error", "service", s.Name(), "error", shutdownErr)
		}
	}
	return err
}
