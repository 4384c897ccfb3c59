package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// statusDeleted is a terminal live-channel signal for admin deletion; it is
// never stored, only echoed so clients drop the order without polling.
const statusDeleted = models.Status("deleted")

// Complete settles a job: verifies the caller is the assigned driver,
// transitions to completed exactly once, debits the commission as a fee
// transaction and tears the room down. Duplicate calls return the completed
// request without a second debit.
func (s *Service) Complete(ctx context.Context, orderID, driverID string) (*models.Request, error) {
	cur, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if cur.DriverID != driverID {
		return nil, ErrNotAssigned
	}
	if cur.Status == models.StatusCompleted {
		return cur, nil
	}

	// Read the rate fresh; the admin may have changed it since acceptance.
	commission := s.Settings.CommissionAmount()

	completed := models.StatusCompleted
	req, err := s.Store.UpdateConditional(ctx, orderID, cur.Status, storage.RequestPatch{Status: &completed})
	if errors.Is(err, storage.ErrConflict) {
		// Lost to a concurrent writer. If that writer completed the order
		// for the same driver, this call is a duplicate and must not
		// double-charge.
		latest, getErr := s.Store.Get(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if latest.Status == models.StatusCompleted && latest.DriverID == driverID {
			return latest, nil
		}
		return nil, ErrAlreadyTaken
	}
	if err != nil {
		return nil, err
	}

	// The conditional update above is the exactly-once gate, so the debit
	// below cannot fire twice for this order. If the debit fails, the gate
	// is reopened by restoring the prior status; otherwise a retry would
	// hit the idempotency guard and the commission would never be charged.
	if _, err := s.Ledger.Append(ctx, models.OwnerDriver, driverID, -commission, models.TxFee); err != nil {
		prior := cur.Status
		if _, rbErr := s.Store.UpdateConditional(ctx, orderID, models.StatusCompleted, storage.RequestPatch{Status: &prior}); rbErr != nil {
			s.log().Error("completion rollback failed", "order_id", orderID, "driver_id", driverID, "error", rbErr)
		}
		s.log().Error("commission debit failed, completion rolled back", "order_id", orderID, "driver_id", driverID, "error", err)
		return nil, fmt.Errorf("commission debit: %w", err)
	}

	observability.Completions.Inc()
	if s.Events != nil {
		s.Events.StatusChanged(orderID, models.StatusCompleted, nil)
		s.Events.OrderClosed(orderID)
	}
	s.log().Info("order completed", "order_id", orderID, "driver_id", driverID, "fee", commission)
	return req, nil
}

// Delete removes a request on the trusted admin path. It tolerates racing
// with driver completion: a vanished request is treated as already gone.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	err := s.Store.Delete(ctx, orderID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if s.Events != nil {
		s.Events.StatusChanged(orderID, statusDeleted, nil)
		s.Events.OrderClosed(orderID)
	}
	return nil
}

// AdjustWallet appends an administrative deposit/withdrawal to the ledger.
// The cached balance projection is refreshed by the ledger itself, never by
// an ad-hoc balance write here.
func (s *Service) AdjustWallet(ctx context.Context, ownerType models.OwnerType, ownerID string, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	switch kind {
	case models.TxDeposit, models.TxAdjustment, models.TxCommission, models.TxFee:
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	tx, err := s.Ledger.Append(ctx, ownerType, ownerID, amount, kind)
	if err != nil {
		return nil, err
	}
	s.log().Info("wallet adjusted", "owner_type", ownerType, "owner_id", ownerID, "amount", amount, "kind", kind)
	return tx, nil
}
