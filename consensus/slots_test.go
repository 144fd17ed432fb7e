package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeights() []WeightEntry {
	return []WeightEntry{
		{"node1", 100},
		{"node2", 200},
		{"node3", 300},
	}
}

func TestPrepareEntriesFiltersNonPositive(t *testing.T) {
	entries, total := PrepareEntries([]WeightEntry{
		{"a", 10},
		{"b", 0},
		{"c", -5},
		{"d", 20},
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Address)
	assert.Equal(t, "d", entries[1].Address)
	assert.Equal(t, int64(30), total)
}

func TestPrepareEntriesEmpty(t *testing.T) {
	entries, total := PrepareEntries(nil)
	assert.Nil(t, entries)
	assert.Equal(t, int64(0), total)

	entries, total = PrepareEntries([]WeightEntry{{"a", 0}})
	assert.Nil(t, entries)
	assert.Equal(t, int64(0), total)
}

func TestPrepareSortedEntriesOrdersByAddress(t *testing.T) {
	entries, total := PrepareSortedEntries(map[string]int64{
		"zeta": 1, "alpha": 2, "mid": 3,
	})
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Address)
	assert.Equal(t, "mid", entries[1].Address)
	assert.Equal(t, "zeta", entries[2].Address)
	assert.Equal(t, int64(6), total)
}

func TestSlotDeterministic(t *testing.T) {
	entries, total := PrepareEntries(testWeights())
	first := Slot("apphash", "host1", entries, total, 7)
	require.NotEmpty(t, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Slot("apphash", "host1", entries, total, 7))
	}
}

func TestSlotZeroWeight(t *testing.T) {
	assert.Equal(t, "", Slot("apphash", "host1", nil, 0, 0))
}

func TestSlotsMatchesSingleSlot(t *testing.T) {
	entries, total := PrepareEntries(testWeights())
	const n = 256
	batch := Slots("apphash", "host1", entries, total, 0, n)
	require.Len(t, batch, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, Slot("apphash", "host1", entries, total, i), batch[i], "slot %d", i)
	}
}

func TestSlotsMatchesSingleSlotWithOffset(t *testing.T) {
	entries, total := PrepareEntries(testWeights())
	batch := Slots("apphash", "host1", entries, total, 64, 32)
	require.Len(t, batch, 32)
	for i := 0; i < 32; i++ {
		assert.Equal(t, Slot("apphash", "host1", entries, total, 64+i), batch[i])
	}
}

func TestSlotsDifferentSeedsDiffer(t *testing.T) {
	entries, total := PrepareEntries(testWeights())
	a := Slots("apphash-a", "host1", entries, total, 0, 64)
	b := Slots("apphash-b", "host1", entries, total, 0, 64)
	assert.NotEqual(t, a, b)
}

func TestSlotsWeightProportionality(t *testing.T) {
	entries, total := PrepareEntries(testWeights())
	const n = 60000
	counts := map[string]int{}
	for _, addr := range Slots("apphash", "host1", entries, total, 0, n) {
		counts[addr]++
	}

	assert.InDelta(t, 1.0/6.0, float64(counts["node1"])/n, 0.01)
	assert.InDelta(t, 2.0/6.0, float64(counts["node2"])/n, 0.01)
	assert.InDelta(t, 3.0/6.0, float64(counts["node3"])/n, 0.01)
}

func TestSlotsSingleAddressGetsEverything(t *testing.T) {
	entries, total := PrepareEntries([]WeightEntry{{"only", 42}})
	for i, addr := range Slots("apphash", "host1", entries, total, 0, 100) {
		require.Equal(t, "only", addr, "slot %d", i)
	}
}

func TestSlotsManyAddresses(t *testing.T) {
	weights := make([]WeightEntry, 50)
	for i := range weights {
		weights[i] = WeightEntry{fmt.Sprintf("addr%02d", i), int64(i + 1)}
	}
	entries, total := PrepareEntries(weights)
	batch := Slots("apphash", "host1", entries, total, 0, 500)
	for i, addr := range batch {
		assert.Equal(t, Slot("apphash", "host1", entries, total, i), addr)
	}
}
