// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		logLevel string

		shouldLogInfo bool
		expectPanic   bool
	}{{
		name:          "json format debug level",
		format:        "json",
		logLevel:      "debug",
		shouldLogInfo: true,
	}, {
		name:          "json format info level",
		format:        "json",
		logLevel:      "info",
		shouldLogInfo: true,
	}, {
		name:          "json format warn level",
		format:        "json",
		logLevel:      "warn",
		shouldLogInfo: false,
	}, {
		name:          "text format info level",
		format:        "text",
		logLevel:      "info",
		shouldLogInfo: true,
	}, {
		name:          "text format warn level",
		format:        "text",
		logLevel:      "warn",
		shouldLogInfo: false,
	}, {
		name:        "invalid format panics",
		format:      "invalid",
		logLevel:    "info",
		expectPanic: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			if tt.expectPanic {
				assert.Panics(t, func() {
					_ = New(tt.logLevel, tt.format, &buf)
				})
				return
			}

			logger := New(tt.logLevel, tt.format, &buf)
			logger.Info("test message", "key", "value")

			output := buf.String()
			if !tt.shouldLogInfo {
				assert.NotContains(t, output, "test message")
				return
			}
			assert.Contains(t, output, "test message")

			if tt.format == "json" {
				logParts := map[string]any{}
				require.NoError(t, json.Unmarshal(buf.Bytes(), &logParts))
				assert.Equal(t, "test message", logParts["msg"])
				assert.Equal(t, "value", logParts["key"])
				assert.Contains(t, logParts, "time")
			}
		})
	}
}

func TestTrimSourcePath(t *testing.T) {
	src := &slog.Source{File: "/home/user/go/src/project/internal/logger/logger.go", Line: 42}
	a := trimSourcePath(nil, slog.Any(slog.SourceKey, src))

	got, ok := a.Value.Any().(*slog.Source)
	require.True(t, ok)
	assert.Equal(t, "internal/logger/logger.go", got.File)
	assert.NotContains(t, got.File, "/home/user/")

	// non-source attributes pass through untouched
	other := slog.String("key", "value")
	assert.Equal(t, other, trimSourcePath(nil, other))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLogLevel(tt.level), "parseLogLevel(%q)", tt.level)
	}
}
