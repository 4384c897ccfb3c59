package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

func TestStageProgression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	if _, err := f.svc.Accept(ctx, req.ID, "d1", models.DriverInfo{}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, err := f.svc.UpdateStage(ctx, req.ID, models.StatusArrived, "d1", nil)
	if err != nil || got.Status != models.StatusArrived {
		t.Fatalf("arrived: %v %+v", err, got)
	}
	got, err = f.svc.UpdateStage(ctx, req.ID, models.StatusInProgress, "d1", nil)
	if err != nil || got.Status != models.StatusInProgress {
		t.Fatalf("in_progress: %v %+v", err, got)
	}
}

func TestDuplicateStageSignalEchoesWithoutRewrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	_, _ = f.svc.Accept(ctx, req.ID, "d1", models.DriverInfo{})
	_, _ = f.svc.UpdateStage(ctx, req.ID, models.StatusArrived, "d1", nil)

	events := len(f.events.statuses)
	got, err := f.svc.UpdateStage(ctx, req.ID, models.StatusArrived, "d1", nil)
	if err != nil {
		t.Fatalf("duplicate signal: %v", err)
	}
	if got.Status != models.StatusArrived {
		t.Fatalf("stored status = %s", got.Status)
	}
	// Duplicates still echo to the room; the store is what clients trust.
	if len(f.events.statuses) != events+1 {
		t.Fatalf("echo count = %d, want %d", len(f.events.statuses), events+1)
	}
}

func TestStageRejectsUnknownAndUnassigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 2000)
	f.addDriver(t, "d2", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	_, _ = f.svc.Accept(ctx, req.ID, "d1", models.DriverInfo{})

	if _, err := f.svc.UpdateStage(ctx, req.ID, models.Status("loading"), "d1", nil); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("unknown stage: %v", err)
	}
	if _, err := f.svc.UpdateStage(ctx, req.ID, models.StatusArrived, "d2", nil); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("unassigned driver: %v", err)
	}
}
