// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	Monitor struct {
		// Interval between telemetry refreshes in watch mode
		Interval time.Duration `yaml:"interval"`
		// Processes enables per-process utilization sampling
		Processes bool `yaml:"processes"`
	}

	StdoutExporter struct {
		Enabled *bool `yaml:"enabled"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
	}

	Web struct {
		ListenAddress string `yaml:"listenAddress"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Monitor  Monitor  `yaml:"monitor"`
		Exporter Exporter `yaml:"exporter"`
		Web      Web      `yaml:"web"`
	}
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	MonitorIntervalFlag  = "monitor.interval"
	MonitorProcessesFlag = "monitor.processes"

	StdoutExporterFlag            = "exporter.stdout"
	PrometheusExporterFlag        = "exporter.prometheus"
	PrometheusDebugCollectorsFlag = "debug.collectors"

	WebListenAddressFlag = "web.listen-address"
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Monitor: Monitor{
			Interval:  5 * time.Second,
			Processes: false,
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{Enabled: ptr.To(true)},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(false),
				DebugCollectors: []string{"go"},
			},
		},
		Web: Web{
			ListenAddress: ":28282",
		},
	}
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")

	// Monitoring
	monitorInterval := app.Flag(MonitorIntervalFlag, "Interval between telemetry refreshes in watch mode").Default("5s").Duration()
	monitorProcesses := app.Flag(MonitorProcessesFlag, "Sample per-process GPU utilization").Default("false").Bool()

	// Exporters
	stdoutEnabled := app.Flag(StdoutExporterFlag, "Enable the stdout exporter in watch mode").Default("true").Bool()
	prometheusEnabled := app.Flag(PrometheusExporterFlag, "Enable the Prometheus exporter in watch mode").Default("false").Bool()
	debugCollectors := app.Flag(PrometheusDebugCollectorsFlag, "Debug collectors to enable (go, process)").Default("go").Enums("go", "process")

	// Web
	listenAddress := app.Flag(WebListenAddressFlag, "Address the HTTP server listens on").Default(":28282").String()

	return func(cfg *Config) error {
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}
		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[MonitorIntervalFlag] {
			cfg.Monitor.Interval = *monitorInterval
		}
		if flagsSet[MonitorProcessesFlag] {
			cfg.Monitor.Processes = *monitorProcesses
		}

		if flagsSet[StdoutExporterFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutEnabled
		}
		if flagsSet[PrometheusExporterFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusEnabled
		}
		if flagsSet[PrometheusDebugCollectorsFlag] {
			cfg.Exporter.Prometheus.DebugCollectors = *debugCollectors
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddress = *listenAddress
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Web.ListenAddress = strings.TrimSpace(c.Web.ListenAddress)

	// a null yaml value leaves the toggle nil; restore the default
	if c.Exporter.Stdout.Enabled == nil {
		c.Exporter.Stdout.Enabled = ptr.To(true)
	}
	if c.Exporter.Prometheus.Enabled == nil {
		c.Exporter.Prometheus.Enabled = ptr.To(false)
	}
}

// Validate checks for configuration errors
func (c *Config) Validate() error {
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // monitor interval
		if c.Monitor.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor interval: %s", c.Monitor.Interval))
		}
	}
	{ // debug collectors
		validCollectors := map[string]bool{
			"go":      true,
			"process": true,
		}
		for _, name := range c.Exporter.Prometheus.DebugCollectors {
			if !validCollectors[name] {
				errs = append(errs, fmt.Sprintf("invalid debug collector: %s", name))
			}
		}
	}
	{ // web listen address
		if ptr.Deref(c.Exporter.Prometheus.Enabled, false) && c.Web.ListenAddress == "" {
			errs = append(errs, "web listen address must be set when the prometheus exporter is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE: this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{MonitorIntervalFlag, c.Monitor.Interval.String()},
		{MonitorProcessesFlag, fmt.Sprintf("%t", c.Monitor.Processes)},
		{StdoutExporterFlag, fmt.Sprintf("%t", ptr.Deref(c.Exporter.Stdout.Enabled, true))},
		{PrometheusExporterFlag, fmt.Sprintf("%t", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{WebListenAddressFlag, c.Web.ListenAddress},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
