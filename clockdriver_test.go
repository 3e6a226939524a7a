package memsim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockDriverTicksDispatcher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EpochPeriod = 0 // disable epoch emission for this test
	cfg.JSONStatsName = ""
	cfg.JSONEpochName = ""

	d, err := NewTestJEDECDispatcher(cfg, 4, 2)
	require.NoError(t, err)
	cd := NewClockDriver(d, nil, cfg)

	for i := 0; i < 5; i++ {
		require.NoError(t, cd.Tick())
	}
	assert.EqualValues(t, 5, cd.Clk())
}

func TestClockDriverPersistsEpochAndFinalStats(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.EpochPeriod = 2
	cfg.JSONStatsName = filepath.Join(dir, "stats.json")
	cfg.JSONEpochName = filepath.Join(dir, "epoch.json")

	d, err := NewTestJEDECDispatcher(cfg, 4, 2)
	require.NoError(t, err)
	m := NewMetrics()
	cd := NewClockDriver(d, m, cfg)

	for i := 0; i < 7; i++ {
		require.NoError(t, cd.Tick())
	}
	require.NoError(t, cd.Close())

	epochBytes, err := os.ReadFile(cfg.JSONEpochName)
	require.NoError(t, err)
	var epochs []map[string]any
	require.NoError(t, json.Unmarshal(epochBytes, &epochs), "epoch file must be valid JSON: %s", epochBytes)

	// clk=7, epoch_period=2 fires at clk 2, 4, 6.
	require.Len(t, epochs, 3)
	assert.EqualValues(t, 2, epochs[0]["clk"])
	assert.EqualValues(t, 6, epochs[2]["clk"])

	statsBytes, err := os.ReadFile(cfg.JSONStatsName)
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(statsBytes, &stats), "stats file must be valid JSON: %s", statsBytes)
	assert.EqualValues(t, 7, stats["clk"])
}

func TestClockDriverEmptyEpochFileIsValidJSON(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.EpochPeriod = 1000 // never fires within the ticks below
	cfg.JSONStatsName = filepath.Join(dir, "stats.json")
	cfg.JSONEpochName = filepath.Join(dir, "epoch.json")

	d, err := NewTestIdealDispatcher(cfg)
	require.NoError(t, err)
	cd := NewClockDriver(d, nil, cfg)
	for i := 0; i < 3; i++ {
		cd.Tick()
	}
	require.NoError(t, cd.Close())

	b, err := os.ReadFile(cfg.JSONEpochName)
	require.NoError(t, err)
	var arr []any
	require.NoError(t, json.Unmarshal(b, &arr), "empty epoch file must be a valid JSON array: %s", b)
	assert.Empty(t, arr)
}

func TestTotalChannelsIncrementsPerDispatcher(t *testing.T) {
	before := TotalChannels()

	cfg := DefaultConfig()
	_, err := NewTestJEDECDispatcher(cfg, 4, 2)
	require.NoError(t, err)
	_, err = NewTestIdealDispatcher(cfg)
	require.NoError(t, err)

	assert.Equal(t, before+2, TotalChannels())
}
