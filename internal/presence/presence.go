// Package presence tracks ephemeral driver state: the last known location
// and heading while a live connection exists. It is distinct from the
// durable online/approval flags in the driver directory; dropping a
// connection clears presence but never flips a driver offline.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

type Registry interface {
	Update(ctx context.Context, s models.LocationSample) error
	Get(ctx context.Context, driverID string) (models.LocationSample, bool)
	Remove(ctx context.Context, driverID string) error
}

// MemoryRegistry is a last-writer-wins map of driver locations. Only the
// most recent sample matters, so there is no ordering buffer.
type MemoryRegistry struct {
	mu      sync.RWMutex
	samples map[string]models.LocationSample
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{samples: make(map[string]models.LocationSample)}
}

func (m *MemoryRegistry) Update(ctx context.Context, s models.LocationSample) error {
	if s.Updated.IsZero() {
		s.Updated = time.Now()
	}
	m.mu.Lock()
	m.samples[s.DriverID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryRegistry) Get(ctx context.Context, driverID string) (models.LocationSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.samples[driverID]
	return s, ok
}

func (m *MemoryRegistry) Remove(ctx context.Context, driverID string) error {
	m.mu.Lock()
	delete(m.samples, driverID)
	m.mu.Unlock()
	return nil
}
