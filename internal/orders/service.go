// Package orders owns the request lifecycle: the accept race, driver stage
// transitions and commission settlement. All shared-state mutation goes
// through the store's conditional update, never read-modify-write across a
// blocking call.
package orders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/settings"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
	"github.com/qz-yi/Satha-Choice-sub000/internal/wallet"
)

var (
	// ErrAlreadyTaken is the accept-race loss: another driver got there
	// first. The intent is moot, so callers should not retry.
	ErrAlreadyTaken = errors.New("order already taken")
	// ErrInsufficientFunds means the driver wallet is below the current
	// commission amount; recoverable by topping up.
	ErrInsufficientFunds = errors.New("wallet balance below commission")
	// ErrNotEligible covers unknown, unapproved or offline drivers.
	ErrNotEligible = errors.New("driver not eligible")
	// ErrNotAssigned means the caller is not the driver bound to the order.
	ErrNotAssigned = errors.New("order assigned to another driver")
	// ErrInvalidStage rejects a stage name outside the driver-driven flow.
	ErrInvalidStage = errors.New("invalid stage transition")
)

// EventPublisher is the live-channel side effect surface. Implementations
// must be fire-and-forget; the lifecycle never blocks on delivery.
type EventPublisher interface {
	// OrderAccepted publishes the order-accepted payload and the generic
	// status echo as one step, regardless of assignment origin.
	OrderAccepted(orderID string, req *models.Request, info models.DriverInfo)
	StatusChanged(orderID string, status models.Status, info *models.DriverInfo)
	// OrderClosed tears down the order room; must be idempotent.
	OrderClosed(orderID string)
}

type Service struct {
	Store    storage.RequestStore
	Drivers  storage.DriverDirectory
	Ledger   wallet.Ledger
	Settings *settings.Settings
	Events   EventPublisher
	Logger   *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Get returns the authoritative stored request; clients resolve any live
// event ordering anomaly against this.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Request, error) {
	return s.Store.Get(ctx, orderID)
}
