// Package wallet holds the transaction ledger. The ledger is the source of
// truth for balances; any stored per-owner balance is a projection
// recomputed from the transaction sum in the same step as the append.
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

type Ledger interface {
	Append(ctx context.Context, ownerType models.OwnerType, ownerID string, amount int64, kind models.TransactionKind) (*models.Transaction, error)
	Balance(ctx context.Context, ownerType models.OwnerType, ownerID string) (int64, error)
	Transactions(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Transaction, error)
}

// ProjectionFunc receives the freshly recomputed balance after each append
// so the owner record's cached balance never drifts from the ledger.
type ProjectionFunc func(ctx context.Context, ownerType models.OwnerType, ownerID string, balance int64)

type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string][]models.Transaction
	project ProjectionFunc
}

func NewMemoryLedger(project ProjectionFunc) *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]models.Transaction), project: project}
}

func ownerKey(t models.OwnerType, id string) string { return string(t) + ":" + id }

func (m *MemoryLedger) Append(ctx context.Context, ownerType models.OwnerType, ownerID string, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	tx := models.Transaction{
		ID:        storage.NewID(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Amount:    amount,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	key := ownerKey(ownerType, ownerID)
	m.entries[key] = append(m.entries[key], tx)
	var sum int64
	for _, e := range m.entries[key] {
		sum += e.Amount
	}
	m.mu.Unlock()
	if m.project != nil {
		m.project(ctx, ownerType, ownerID, sum)
	}
	return &tx, nil
}

func (m *MemoryLedger) Balance(ctx context.Context, ownerType models.OwnerType, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries[ownerKey(ownerType, ownerID)] {
		sum += e.Amount
	}
	return sum, nil
}

func (m *MemoryLedger) Transactions(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.entries[ownerKey(ownerType, ownerID)]
	out := make([]models.Transaction, len(src))
	copy(out, src)
	return out, nil
}
