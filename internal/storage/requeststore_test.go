package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

func TestUpdateConditionalSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRequestStore()
	r, err := m.Create(ctx, &models.Request{City: "بابل", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	accepted := models.StatusAccepted
	for i := 0; i < attempts; i++ {
		driverID := fmt.Sprintf("d%d", i)
		wg.Add(1)
		go func(did string) {
			defer wg.Done()
			_, err := m.UpdateConditional(ctx, r.ID, models.StatusPending, RequestPatch{Status: &accepted, DriverID: &did})
			errs <- err
		}(driverID)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	got, _ := m.Get(ctx, r.ID)
	if got.Status != models.StatusAccepted || got.DriverID == "" {
		t.Fatalf("final state %s driver=%q", got.Status, got.DriverID)
	}
}

func TestDriverIDMatchesStatusInvariant(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRequestStore()
	r, _ := m.Create(ctx, &models.Request{City: "بغداد", CustomerID: "c1"})
	if r.DriverID != "" {
		t.Fatal("pending request must have empty driver id")
	}
	accepted := models.StatusAccepted
	d := "d1"
	got, err := m.UpdateConditional(ctx, r.ID, models.StatusPending, RequestPatch{Status: &accepted, DriverID: &d})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status == models.StatusPending || got.DriverID == "" {
		t.Fatalf("accepted request must carry a driver id, got %+v", got)
	}
}

func TestListPendingByCityNormalizesNames(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRequestStore()
	_, _ = m.Create(ctx, &models.Request{City: "Hilla", CustomerID: "c1"})
	_, _ = m.Create(ctx, &models.Request{City: "بغداد", CustomerID: "c2"})

	got, err := m.ListPendingByCity(ctx, "بابل")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].CustomerID != "c1" {
		t.Fatalf("expected the Hilla request only, got %d", len(got))
	}
}

func TestUpdateConditionalNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRequestStore()
	accepted := models.StatusAccepted
	if _, err := m.UpdateConditional(ctx, "missing", models.StatusPending, RequestPatch{Status: &accepted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
