package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

func seedDriver(t *testing.T, dir *storage.MemoryDriverDirectory, d models.Driver) {
	t.Helper()
	if err := dir.Put(context.Background(), &d); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func TestBroadcastOnlyToMatchingCity(t *testing.T) {
	ctx := context.Background()
	reg := NewSessionRegistry()
	dir := storage.NewMemoryDriverDirectory()
	store := storage.NewMemoryRequestStore()
	b := NewBroadcaster(reg, dir, store, testLogger())

	seedDriver(t, dir, models.Driver{ID: "d1", City: "بابل", Status: models.DriverApproved, Online: true})
	seedDriver(t, dir, models.Driver{ID: "d2", City: "بغداد", Status: models.DriverApproved, Online: true})
	seedDriver(t, dir, models.Driver{ID: "d3", City: "بابل", Status: models.DriverPendingApproval, Online: true})
	seedDriver(t, dir, models.Driver{ID: "d4", City: "بابل", Status: models.DriverApproved, Online: false})

	s1 := NewSession("s1", "d1", "driver", nil)
	s2 := NewSession("s2", "d2", "driver", nil)
	s3 := NewSession("s3", "d3", "driver", nil)
	s4 := NewSession("s4", "d4", "driver", nil)
	for _, s := range []*Session{s1, s2, s3, s4} {
		reg.Add(s)
	}

	req, err := store.Create(ctx, &models.Request{City: "Babil", CustomerID: "c1", Price: 25000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b.OnRequestCreated(ctx, req)

	env := recvEvent(t, s1)
	if env.Event != EventNewRequestAvailable {
		t.Fatalf("event = %s", env.Event)
	}
	var got models.Request
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.ID != req.ID || got.City != "بابل" {
		t.Fatalf("payload = %+v", got)
	}

	// Wrong city, unapproved and offline drivers hear nothing.
	assertEmpty(t, s2)
	assertEmpty(t, s3)
	assertEmpty(t, s4)
}

func TestBroadcastSkipsNonPending(t *testing.T) {
	ctx := context.Background()
	reg := NewSessionRegistry()
	dir := storage.NewMemoryDriverDirectory()
	store := storage.NewMemoryRequestStore()
	b := NewBroadcaster(reg, dir, store, testLogger())

	seedDriver(t, dir, models.Driver{ID: "d1", City: "بابل", Status: models.DriverApproved, Online: true})
	s1 := NewSession("s1", "d1", "driver", nil)
	reg.Add(s1)

	b.OnRequestCreated(ctx, &models.Request{ID: "r1", City: "بابل", Status: models.StatusAccepted})
	assertEmpty(t, s1)
}

func TestPendingForCityReconciliation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRequestStore()
	b := NewBroadcaster(NewSessionRegistry(), storage.NewMemoryDriverDirectory(), store, testLogger())

	_, _ = store.Create(ctx, &models.Request{City: "بابل", CustomerID: "c1"})
	_, _ = store.Create(ctx, &models.Request{City: "بغداد", CustomerID: "c2"})

	got, err := b.PendingForCity(ctx, "Hilla")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0].CustomerID != "c1" {
		t.Fatalf("pending list = %+v", got)
	}
}
