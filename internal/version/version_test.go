// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.GoOS)
	assert.Equal(t, runtime.GOARCH, info.GoArch)
}

func TestVersionValues(t *testing.T) {
	version = "v0.3.1"
	buildTime = "2025-06-15T09:30:00Z"
	gitBranch = "main"
	gitCommit = "abcdef123456"

	info := Info()
	assert.Equal(t, "v0.3.1", info.Version)
	assert.Equal(t, "2025-06-15T09:30:00Z", info.BuildTime)
	assert.Equal(t, "main", info.GitBranch)
	assert.Equal(t, "abcdef123456", info.GitCommit)

	s := info.String()
	assert.Contains(t, s, "v0.3.1")
	assert.Contains(t, s, "main")
	assert.Contains(t, s, "abcdef123456")
}
