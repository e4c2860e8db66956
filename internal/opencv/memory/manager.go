package memory

import (
	"sort"
	"sync"
	"time"

	"colony-counter/internal/logger"
)

// Manager records every tracked Mat allocation so that a run can verify
// that each image's buffers are released before the next image starts.
type Manager struct {
	allocations map[uint64]*AllocationRecord
	mu          sync.RWMutex
	stats       Stats
	logger      logger.Logger
}

type AllocationRecord struct {
	Tag       string
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PeakActiveMats int64
	PeakBytes      int64
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		allocations: make(map[uint64]*AllocationRecord),
		logger:      log,
	}
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations[id] = &AllocationRecord{
		Tag:       tag,
		CreatedAt: time.Now(),
		Size:      size,
	}
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++

	if m.stats.ActiveMats > m.stats.PeakActiveMats {
		m.stats.PeakActiveMats = m.stats.ActiveMats
	}
	if live := m.stats.TotalAllocated - m.stats.TotalReleased; live > m.stats.PeakBytes {
		m.stats.PeakBytes = live
	}
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.allocations[id]
	if !exists {
		m.logger.Warning("MemoryManager", "release of untracked Mat", map[string]interface{}{
			"tag": tag,
		})
		return
	}

	delete(m.allocations, id)
	m.stats.TotalReleased += record.Size
	m.stats.ActiveMats--
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}

// ActiveTags lists the tags of Mats that are still live, sorted.
func (m *Manager) ActiveTags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]string, 0, len(m.allocations))
	for _, record := range m.allocations {
		tags = append(tags, record.Tag)
	}
	sort.Strings(tags)
	return tags
}

// ReportLeaks logs a warning for every live Mat and returns how many there were.
func (m *Manager) ReportLeaks(component string) int {
	tags := m.ActiveTags()
	for _, tag := range tags {
		m.logger.Warning(component, "Mat still live", map[string]interface{}{
			"tag": tag,
		})
	}
	return len(tags)
}
