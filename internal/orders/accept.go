package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// Accept resolves the accept race for orderID in favor of driverID if it
// gets there first. Preconditions (approved, online, wallet covers the
// current commission) are checked fresh; the pending→accepted transition is
// a single conditional update, so concurrent attempts see exactly one
// winner. Nothing is mutated on any failure path.
func (s *Service) Accept(ctx context.Context, orderID, driverID string, info models.DriverInfo) (*models.Request, error) {
	d, err := s.Drivers.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.AcceptAttempts.WithLabelValues("not_eligible").Inc()
			return nil, fmt.Errorf("%w: unknown driver %s", ErrNotEligible, driverID)
		}
		return nil, err
	}
	if d.Status != models.DriverApproved || !d.Online {
		observability.AcceptAttempts.WithLabelValues("not_eligible").Inc()
		return nil, ErrNotEligible
	}

	commission := s.Settings.CommissionAmount()
	balance, err := s.Ledger.Balance(ctx, models.OwnerDriver, driverID)
	if err != nil {
		return nil, fmt.Errorf("wallet balance check: %w", err)
	}
	if balance < commission {
		observability.AcceptAttempts.WithLabelValues("insufficient_funds").Inc()
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance, commission)
	}

	accepted := models.StatusAccepted
	req, err := s.Store.UpdateConditional(ctx, orderID, models.StatusPending, storage.RequestPatch{
		Status:   &accepted,
		DriverID: &driverID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			observability.AcceptAttempts.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyTaken
		}
		return nil, err
	}

	observability.AcceptAttempts.WithLabelValues("won").Inc()
	s.publishAccepted(req, s.fillInfo(d, info))
	s.log().Info("order accepted", "order_id", orderID, "driver_id", driverID, "commission", commission)
	return req, nil
}

// Reassign is the trusted administrative path: it binds an online driver to
// a pending or already-accepted request, skipping the wallet precondition
// but going through the same conditional transition and emitting the same
// events so client state stays consistent regardless of assignment origin.
func (s *Service) Reassign(ctx context.Context, orderID, driverID string) (*models.Request, error) {
	d, err := s.Drivers.Get(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, driverID)
	}
	if !d.Online {
		return nil, ErrNotEligible
	}

	accepted := models.StatusAccepted
	for attempt := 0; attempt < 3; attempt++ {
		cur, err := s.Store.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if cur.Status == models.StatusCompleted {
			return nil, ErrAlreadyTaken
		}
		req, err := s.Store.UpdateConditional(ctx, orderID, cur.Status, storage.RequestPatch{
			Status:   &accepted,
			DriverID: &driverID,
		})
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publishAccepted(req, s.fillInfo(d, models.DriverInfo{}))
		s.log().Info("order reassigned", "order_id", orderID, "driver_id", driverID)
		return req, nil
	}
	return nil, ErrAlreadyTaken
}

func (s *Service) publishAccepted(req *models.Request, info models.DriverInfo) {
	if s.Events != nil {
		s.Events.OrderAccepted(req.ID, req, info)
	}
}

// fillInfo completes a client-supplied driver-info payload from the
// directory record so the customer always gets id, name, phone and vehicle.
func (s *Service) fillInfo(d *models.Driver, info models.DriverInfo) models.DriverInfo {
	info.ID = d.ID
	if info.Name == "" {
		info.Name = d.Name
	}
	if info.Phone == "" {
		info.Phone = d.Phone
	}
	if info.Avatar == "" {
		info.Avatar = d.AvatarURL
	}
	if info.VehicleType == "" {
		info.VehicleType = d.VehicleType
	}
	return info
}
