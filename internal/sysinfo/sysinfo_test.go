// SPDX-License-Identifier: Apache-2.0

package sysinfo_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/hwbench/internal/sysinfo"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	info, err := sysinfo.NewHost().Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, runtime.NumCPU(), info.LogicalCPUs)
	assert.Positive(t, info.MemoryTotal)
	assert.LessOrEqual(t, info.MemoryAvailable, info.MemoryTotal)
}

func TestResourceHeadroom(t *testing.T) {
	t.Parallel()

	h := sysinfo.NewHost()

	memAvail, err := h.AvailableMemory(context.Background())
	require.NoError(t, err)
	assert.Positive(t, memAvail)

	free, err := h.FreeDiskSpace(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}

func TestFreeDiskSpaceMissingPath(t *testing.T) {
	t.Parallel()

	_, err := sysinfo.NewHost().FreeDiskSpace(context.Background(), "/definitely/not/here")
	assert.Error(t, err)
}
