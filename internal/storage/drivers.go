package storage

import (
	"context"
	"sync"

	"github.com/qz-yi/Satha-Choice-sub000/internal/city"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

// DriverFilter narrows DriverDirectory.List. Zero values mean "any".
type DriverFilter struct {
	Status     models.DriverStatus
	City       string
	OnlineOnly bool
}

// DriverPatch carries updatable driver fields. Nil fields are untouched.
type DriverPatch struct {
	Status        *models.DriverStatus
	Online        *bool
	City          *string
	WalletBalance *int64
}

// DriverDirectory is the durable driver record collaborator.
type DriverDirectory interface {
	Get(ctx context.Context, id string) (*models.Driver, error)
	List(ctx context.Context, f DriverFilter) ([]*models.Driver, error)
	Update(ctx context.Context, id string, patch DriverPatch) (*models.Driver, error)
	Put(ctx context.Context, d *models.Driver) error
}

type MemoryDriverDirectory struct {
	mu      sync.RWMutex
	drivers map[string]*models.Driver
}

func NewMemoryDriverDirectory() *MemoryDriverDirectory {
	return &MemoryDriverDirectory{drivers: make(map[string]*models.Driver)}
}

func (m *MemoryDriverDirectory) Get(ctx context.Context, id string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryDriverDirectory) List(ctx context.Context, f DriverFilter) ([]*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Driver
	for _, d := range m.drivers {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.City != "" && !city.Match(d.City, f.City) {
			continue
		}
		if f.OnlineOnly && !d.Online {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryDriverDirectory) Update(ctx context.Context, id string, patch DriverPatch) (*models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.Online != nil {
		d.Online = *patch.Online
	}
	if patch.City != nil {
		d.City = city.Canonical(*patch.City)
	}
	if patch.WalletBalance != nil {
		d.WalletBalance = *patch.WalletBalance
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryDriverDirectory) Put(ctx context.Context, d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	if cp.ID == "" {
		cp.ID = NewID()
	}
	cp.City = city.Canonical(cp.City)
	m.drivers[cp.ID] = &cp
	d.ID = cp.ID
	return nil
}
