package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/qz-yi/Satha-Choice-sub000/internal/city"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

// RequestPatch carries the fields UpdateConditional may change. Nil fields
// are left untouched.
type RequestPatch struct {
	Status   *models.Status
	DriverID *string
}

// RequestStore defines persistence for tow requests. UpdateConditional is
// the single compare-and-swap primitive every status mutation goes through;
// it succeeds only while the stored status still equals expected.
type RequestStore interface {
	Create(ctx context.Context, r *models.Request) (*models.Request, error)
	Get(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context) ([]*models.Request, error)
	ListPendingByCity(ctx context.Context, cityName string) ([]*models.Request, error)
	UpdateConditional(ctx context.Context, id string, expected models.Status, patch RequestPatch) (*models.Request, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRequestStore keeps requests in process memory. The whole store
// shares one mutex, so UpdateConditional is atomic with respect to
// concurrent accept attempts.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.Request
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*models.Request)}
}

func (m *MemoryRequestStore) Create(ctx context.Context, r *models.Request) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	cp.ID = NewID()
	cp.Status = models.StatusPending
	cp.DriverID = ""
	cp.City = city.Canonical(cp.City)
	cp.CreatedAt = time.Now()
	m.requests[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryRequestStore) Get(ctx context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRequestStore) List(ctx context.Context) ([]*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Request, 0, len(m.requests))
	for _, r := range m.requests {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRequestStore) ListPendingByCity(ctx context.Context, cityName string) ([]*models.Request, error) {
	want := city.Canonical(cityName)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Request
	for _, r := range m.requests {
		if r.Status == models.StatusPending && city.Match(r.City, want) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRequestStore) UpdateConditional(ctx context.Context, id string, expected models.Status, patch RequestPatch) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != expected {
		return nil, ErrConflict
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.DriverID != nil {
		r.DriverID = *patch.DriverID
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRequestStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

// NewID returns a random 16-hex-char identifier.
func NewID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
