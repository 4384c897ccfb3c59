package presence

import (
	"context"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

func TestLastWriterWins(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_ = r.Update(ctx, models.LocationSample{DriverID: "d1", Lat: 32.1, Lng: 44.1, Heading: 90})
	_ = r.Update(ctx, models.LocationSample{DriverID: "d1", Lat: 32.2, Lng: 44.2, Heading: 180})

	s, ok := r.Get(ctx, "d1")
	if !ok {
		t.Fatal("expected sample")
	}
	if s.Lat != 32.2 || s.Heading != 180 {
		t.Fatalf("stale sample kept: %+v", s)
	}
}

func TestRemoveClearsPresenceOnly(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_ = r.Update(ctx, models.LocationSample{DriverID: "d1", Lat: 1, Lng: 2})
	if err := r.Remove(ctx, "d1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := r.Get(ctx, "d1"); ok {
		t.Fatal("sample should be gone after remove")
	}
	// removing again is a no-op
	if err := r.Remove(ctx, "d1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
