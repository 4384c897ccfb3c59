package geo

import "testing"

func TestHaversineZero(t *testing.T) {
	d := Haversine(33.3, 44.4, 33.3, 44.4)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Baghdad to Hilla is roughly 90km.
	d := Haversine(33.3152, 44.3661, 32.4637, 44.4199)
	if d < 85000 || d > 100000 {
		t.Fatalf("unexpected distance %f", d)
	}
}
