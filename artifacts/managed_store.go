package artifacts

import (
	"sort"
	"sync"

	"poc-router/logging"
)

const DefaultRetainCount = 10

// ManagedStore wraps per-stage Stores keyed by the PoC stage start height.
//
// Writes go to the store of the stage being generated; old stages are
// pruned once the count exceeds retainCount so memory stays bounded across
// a long-running collector.
type ManagedStore struct {
	mu          sync.Mutex
	stores      map[int64]*Store
	retainCount int
}

func NewManagedStore(retainCount int) *ManagedStore {
	if retainCount <= 0 {
		retainCount = DefaultRetainCount
	}
	return &ManagedStore{
		stores:      make(map[int64]*Store),
		retainCount: retainCount,
	}
}

// GetOrCreateStore returns the store for the stage, creating it if needed
// and pruning the oldest stages past the retention window.
func (m *ManagedStore) GetOrCreateStore(stageStartHeight int64) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[stageStartHeight]; ok {
		return store
	}
	store := NewStore()
	m.stores[stageStartHeight] = store
	m.pruneLocked()
	return store
}

// GetStore returns the store for the stage, or nil if it was never created
// or already pruned.
func (m *ManagedStore) GetStore(stageStartHeight int64) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores[stageStartHeight]
}

func (m *ManagedStore) StageHeights() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	heights := make([]int64, 0, len(m.stores))
	for h := range m.stores {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights
}

func (m *ManagedStore) pruneLocked() {
	if len(m.stores) <= m.retainCount {
		return
	}
	heights := make([]int64, 0, len(m.stores))
	for h := range m.stores {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, h := range heights[:len(heights)-m.retainCount] {
		delete(m.stores, h)
		logging.Info("Pruned artifact store", logging.PoC, "height", h)
	}
}
