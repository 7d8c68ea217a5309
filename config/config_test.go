package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/nmpsim/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "host-only", cfg.SimMode)
}

func TestValidateRejectsBadSimMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SimMode = "not-a-mode"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPowerOfTwoCacheline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CachelineSize = 100
	assert.Error(t, cfg.Validate())
}

func TestLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := config.DefaultConfig()
	cfg.SimMode = "co-simulation"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SimMode, loaded.SimMode)
	assert.Equal(t, cfg.CoreNum, loaded.CoreNum)
}

func TestLoadAllowsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")

	const withComments = `{
		// Host organization
		"coreOrg": "out_of_order",
		"coreNum": 8,
		"cpuFrequencyMHz": 3000,
		"mcpFrequencyMHz": 1200,
		"hostLLCSizeBytes": 4194304,
		"hostLLCAssoc": 16,
		"nmpCoreNum": 8,
		"stacks": 1, "channels": 4, "ranks": 2, "subarrays": 16,
		"simMode": "all-offload",
		"memoryClockPeriodPS": 800,
		"cachelineSize": 64,
	}`
	require.NoError(t, os.WriteFile(path, []byte(withComments), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.CoreNum)
	assert.Equal(t, "all-offload", cfg.SimMode)
}

func TestCPUTickPS(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CPUFrequencyMHz = 1000
	assert.Equal(t, uint64(1000), cfg.CPUTickPS())
}

