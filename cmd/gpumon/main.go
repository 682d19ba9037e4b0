// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/utils/ptr"

	"github.com/gpumon-io/gpumon/internal/config"
	"github.com/gpumon-io/gpumon/internal/exporter/prometheus"
	"github.com/gpumon-io/gpumon/internal/exporter/stdout"
	"github.com/gpumon-io/gpumon/internal/gpu/nvidia"
	"github.com/gpumon-io/gpumon/internal/logger"
	"github.com/gpumon-io/gpumon/internal/report"
	"github.com/gpumon-io/gpumon/internal/server"
	"github.com/gpumon-io/gpumon/internal/service"
	"github.com/gpumon-io/gpumon/internal/version"
)

func main() {
	cfg, opts, err := parseArgsAndConfig()
	if err != nil {
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(log)

	if opts.watch {
		printConfigInfo(log, cfg)
		if err := watch(log, cfg); err != nil {
			log.Error("gpumon terminated with an error", "error", err)
			os.Exit(1)
		}
		log.Info("Graceful shutdown completed")
		return
	}

	if err := oneShot(log, cfg, opts); err != nil {
		log.Error("gpumon failed", "error", err)
		os.Exit(1)
	}
}

// cliOpts holds the flags that select the run mode and are not part of the
// config file.
type cliOpts struct {
	watch  bool
	device int
}

func parseArgsAndConfig() (*config.Config, *cliOpts, error) {
	app := kingpin.New("gpumon", "NVIDIA GPU telemetry monitor and Prometheus exporter.")

	configFile := app.Flag("config.file", "Path to YAML configuration file").String()
	watch := app.Flag("watch", "Keep running and refresh telemetry periodically").Bool()
	device := app.Flag("device", "Restrict the one-shot report to a single device index").Default("-1").Int()
	updateConfig := config.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logger.New("info", "text", os.Stderr)
	cfg := config.DefaultConfig()
	if *configFile != "" {
		log.Info("Loading configuration file", "path", *configFile)
		loadedCfg, err := config.FromFile(*configFile)
		if err != nil {
			log.Error("Error loading config file", "error", err.Error())
			return nil, nil, err
		}
		cfg = loadedCfg
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		log.Error("Error applying command line flags", "error", err.Error())
		return nil, nil, err
	}

	return cfg, &cliOpts{watch: *watch, device: *device}, nil
}

func logVersionInfo(log *slog.Logger) {
	v := version.Info()
	log.Info("gpumon version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func printConfigInfo(log *slog.Logger, cfg *config.Config) {
	if !log.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Printf(`
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

// oneShot discovers the devices, takes a single snapshot and prints the
// reports to stdout.
func oneShot(log *slog.Logger, cfg *config.Config, opts *cliOpts) error {
	collector := nvidia.NewCollector(log)
	if err := collector.Init(); err != nil {
		return err
	}
	defer func() {
		if err := collector.Shutdown(); err != nil {
			log.Warn("failed to shut down NVML", "error", err)
		}
	}()

	report.Environment(os.Stdout, collector.Environment())

	if opts.device >= 0 {
		if err := collector.Snapshot(opts.device); err != nil {
			return err
		}
		report.DeviceTelemetry(os.Stdout, collector.Environment().Device(opts.device))

		if cfg.Monitor.Processes {
			if err := collector.SampleProcesses(opts.device); err != nil {
				return err
			}
			report.DeviceProcesses(os.Stdout, collector.Environment().Device(opts.device))
		}
		return nil
	}

	if err := collector.SnapshotAll(); err != nil {
		return err
	}
	report.AllTelemetry(os.Stdout, collector.Environment())

	if cfg.Monitor.Processes {
		if err := collector.SampleProcessesAll(); err != nil {
			return err
		}
		report.AllProcesses(os.Stdout, collector.Environment())
	}
	return nil
}

// watch runs the collector and the enabled exporters as a service group
// until a signal arrives.
func watch(log *slog.Logger, cfg *config.Config) error {
	services := createServices(log, cfg)

	if err := service.Init(log, services); err != nil {
		return err
	}
	return service.Run(context.Background(), log, services)
}

func createServices(log *slog.Logger, cfg *config.Config) []service.Service {
	log.Debug("Creating all services")

	collector := nvidia.NewCollector(log)

	services := []service.Service{
		collector,
		service.NewSignalHandler(os.Interrupt, syscall.SIGTERM),
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, true) {
		services = append(services, stdout.NewExporter(
			collector,
			stdout.WithLogger(log),
			stdout.WithInterval(cfg.Monitor.Interval),
			stdout.WithProcesses(cfg.Monitor.Processes),
		))
	}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		apiServer := server.NewAPIServer(
			server.WithLogger(log),
			server.WithListenAddress(cfg.Web.ListenAddress),
		)
		promExporter := prometheus.NewExporter(
			apiServer,
			prometheus.WithLogger(log),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(prometheus.CreateCollectors(
				collector,
				prometheus.WithLogger(log),
				prometheus.WithProcesses(cfg.Monitor.Processes),
			)),
		)
		services = append(services, promExporter, apiServer)
	}

	return services
}
