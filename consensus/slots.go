package consensus

import (
	"cmp"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
)

// WeightEntry is one address with its voting weight. A weight table is an
// ordered list of entries partitioning [0, totalWeight) into contiguous
// ranges by cumulative sum, in list order.
type WeightEntry struct {
	Address string `json:"address"`
	Weight  int64  `json:"weight"`
}

type slotRandom struct {
	randomVal int64
	origIdx   int
}

// PrepareEntries filters out non-positive weights and returns the surviving
// entries in their original order together with the total weight. Returns
// nil, 0 when nothing carries weight.
func PrepareEntries(weights []WeightEntry) ([]WeightEntry, int64) {
	if len(weights) == 0 {
		return nil, 0
	}

	entries := make([]WeightEntry, 0, len(weights))
	var totalWeight int64
	for _, e := range weights {
		if e.Weight <= 0 {
			continue
		}
		entries = append(entries, e)
		totalWeight += e.Weight
	}

	if totalWeight == 0 {
		return nil, 0
	}
	return entries, totalWeight
}

// PrepareSortedEntries is the map form of PrepareEntries; the table order is
// the address sort order so every caller derives the same partition.
func PrepareSortedEntries(weights map[string]int64) ([]WeightEntry, int64) {
	if len(weights) == 0 {
		return nil, 0
	}

	keys := make([]string, 0, len(weights))
	for addr := range weights {
		keys = append(keys, addr)
	}
	slices.Sort(keys)

	entries := make([]WeightEntry, 0, len(keys))
	for _, addr := range keys {
		entries = append(entries, WeightEntry{addr, weights[addr]})
	}
	return PrepareEntries(entries)
}

// Slot returns the address sampled for one slot index. Deterministic in all
// inputs; returns "" when the table carries no weight.
func Slot(appHash, hostAddress string, entries []WeightEntry, totalWeight int64, slotIdx int) string {
	if len(entries) == 0 || totalWeight <= 0 {
		return ""
	}

	randomVal := slotRandomVal(appHash, hostAddress, slotIdx, totalWeight)

	cumulative := int64(0)
	for _, entry := range entries {
		cumulative += entry.Weight
		if randomVal < cumulative {
			return entry.Address
		}
	}
	return entries[len(entries)-1].Address
}

// Slots samples nSlots consecutive indices starting at startIdx. The random
// values are sorted once so the weight table is swept a single time; the
// result is identical to calling Slot per index.
func Slots(appHash, hostAddress string, entries []WeightEntry, totalWeight int64, startIdx, nSlots int) []string {
	if nSlots == 0 || totalWeight <= 0 {
		return nil
	}

	randoms := make([]slotRandom, nSlots)
	for i := 0; i < nSlots; i++ {
		randoms[i] = slotRandom{
			randomVal: slotRandomVal(appHash, hostAddress, startIdx+i, totalWeight),
			origIdx:   i,
		}
	}
	slices.SortFunc(randoms, func(a, b slotRandom) int {
		return cmp.Compare(a.randomVal, b.randomVal)
	})

	result := make([]string, nSlots)
	cumulative := int64(0)
	randIdx := 0

	for _, entry := range entries {
		cumulative += entry.Weight
		for randIdx < len(randoms) && randoms[randIdx].randomVal < cumulative {
			result[randoms[randIdx].origIdx] = entry.Address
			randIdx++
		}
	}

	// Rounding never leaves a value at or past the final cumulative sum,
	// but keep the last-address fallback anyway.
	for ; randIdx < len(randoms); randIdx++ {
		result[randoms[randIdx].origIdx] = entries[len(entries)-1].Address
	}

	return result
}

func slotRandomVal(appHash, hostAddress string, slotIdx int, totalWeight int64) int64 {
	seedData := fmt.Sprintf("%s%s%d", appHash, hostAddress, slotIdx)
	hash := sha256.Sum256([]byte(seedData))
	// Use uint64 for modulo to avoid negative values
	return int64(binary.BigEndian.Uint64(hash[:8]) % uint64(totalWeight))
}
