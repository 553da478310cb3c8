package perf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPURegion_WritesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.pprof")
	r := NewCPURegion(path)

	require.NoError(t, r.Enter())
	assert.ErrorIs(t, r.Enter(), ErrActive)

	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum

	require.NoError(t, r.Exit())
	require.NoError(t, r.Exit())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCPURegion_BadPath(t *testing.T) {
	r := NewCPURegion(filepath.Join(t.TempDir(), "missing", "cpu.pprof"))

	require.Error(t, r.Enter())
	require.NoError(t, r.Exit())
}

func TestMemory_Since(t *testing.T) {
	before := Memory{TotalAlloc: 100, NumGC: 2, PauseNs: 50}
	after := Memory{HeapAlloc: 70, TotalAlloc: 400, NumGC: 5, PauseNs: 80}

	assert.Equal(t, Memory{HeapAlloc: 70, TotalAlloc: 300, NumGC: 3, PauseNs: 30}, after.Since(before))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1500))
	assert.Equal(t, "2.0 MB", FormatBytes(2_000_000))
	assert.Equal(t, "3.2 GB", FormatBytes(3_200_000_000))
}
