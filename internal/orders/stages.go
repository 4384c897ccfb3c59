package orders

import (
	"context"
	"errors"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// stagePredecessor maps each driver-driven stage to the status it normally
// follows. Completion is not here; it goes through Complete so the wallet
// debit stays coupled to the transition.
var stagePredecessor = map[models.Status]models.Status{
	models.StatusArrived:    models.StatusAccepted,
	models.StatusInProgress: models.StatusArrived,
}

// UpdateStage applies a driver stage transition (accepted→arrived→
// in_progress). The store write is authoritative and conditional; the room
// echo is best-effort and is emitted even when the conditional write loses
// to a duplicate signal; the router passes duplicates through and clients
// resolve against the stored status.
func (s *Service) UpdateStage(ctx context.Context, orderID string, to models.Status, driverID string, info *models.DriverInfo) (*models.Request, error) {
	prev, ok := stagePredecessor[to]
	if !ok {
		return nil, ErrInvalidStage
	}

	cur, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if driverID != "" && cur.DriverID != driverID {
		return nil, ErrNotAssigned
	}

	req, err := s.Store.UpdateConditional(ctx, orderID, prev, storage.RequestPatch{Status: &to})
	if errors.Is(err, storage.ErrConflict) {
		s.log().Debug("duplicate stage signal", "order_id", orderID, "to", to, "stored", cur.Status)
		if s.Events != nil {
			s.Events.StatusChanged(orderID, to, info)
		}
		return cur, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Events != nil {
		s.Events.StatusChanged(orderID, to, info)
	}
	return req, nil
}
