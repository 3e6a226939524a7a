package memsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcolburn/memsim/internal/interfaces"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	assert.Zero(t, snap.TotalOps)
}

func TestMetricsObserveCompletion(t *testing.T) {
	m := NewMetrics()
	m.ObserveCompletion(interfaces.CompletionRead, 4)
	m.ObserveCompletion(interfaces.CompletionRead, 6)
	m.ObserveCompletion(interfaces.CompletionWrite, 10)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.ReadCompletions)
	assert.EqualValues(t, 1, snap.WriteCompletions)
	assert.EqualValues(t, 3, snap.TotalOps)
	assert.EqualValues(t, (4+6+10)/3, snap.AvgLatencyCycles)
}

func TestMetricsObserveCiMComplete(t *testing.T) {
	m := NewMetrics()
	m.ObserveCiMComplete("CiM_Add", 102)
	m.ObserveCiMComplete("CiM_Add", 98)
	m.ObserveCiMComplete("CiM_Swap", 52)

	snap := m.Snapshot()
	add, ok := snap.CiM["CiM_Add"]
	require.True(t, ok, "CiM[\"CiM_Add\"] missing from snapshot")
	assert.EqualValues(t, 2, add.Count)
	assert.EqualValues(t, 100, add.MeanCycles)
	assert.EqualValues(t, 98, add.LastCycles)

	swap, ok := snap.CiM["CiM_Swap"]
	require.True(t, ok)
	assert.EqualValues(t, 1, swap.Count)
}

func TestMetricsObserveQueueDepthAndAge(t *testing.T) {
	m := NewMetrics()
	m.ObserveQueueDepth("link", 3)
	m.ObserveQueueDepth("link", 7)
	m.ObserveAge("quad", 1)
	m.ObserveAge("quad", 5)

	snap := m.Snapshot()
	link, ok := snap.Queue["link"]
	require.True(t, ok, "Queue[\"link\"] missing")
	assert.Equal(t, 7, link.Max)
	assert.Equal(t, 5.0, link.MeanSamples)

	quad, ok := snap.Age["quad"]
	require.True(t, ok)
	assert.Equal(t, 5, quad.Max)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.ObserveCompletion(interfaces.CompletionRead, 4)
	m.ObserveCiMComplete("CiM_Add", 100)
	m.ObserveQueueDepth("link", 3)

	m.Reset()

	snap := m.Snapshot()
	assert.Zero(t, snap.TotalOps)
	assert.Empty(t, snap.CiM)
	assert.Empty(t, snap.Queue)
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	var o interfaces.Observer = NoOpObserver{}
	assert.NotPanics(t, func() {
		o.ObserveCompletion(interfaces.CompletionRead, 1)
		o.ObserveCiMComplete("CiM_Add", 1)
		o.ObserveQueueDepth("link", 1)
		o.ObserveAge("link", 1)
	})
}
