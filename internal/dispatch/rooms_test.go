package dispatch

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvEvent(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case msg := <-s.send:
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return env
	default:
		t.Fatal("expected a queued message")
		return Envelope{}
	}
}

func assertEmpty(t *testing.T, s *Session) {
	t.Helper()
	select {
	case msg := <-s.send:
		t.Fatalf("unexpected message: %s", msg)
	default:
	}
}

func TestRoomIsolation(t *testing.T) {
	r := NewRoomRouter(testLogger())
	a := NewSession("a", "", "customer", nil)
	b := NewSession("b", "", "customer", nil)
	r.Join("order-x", a)
	r.Join("order-y", b)

	r.Broadcast("order-x", EventDriverLocationUpdate, LocationPayload{OrderID: "order-x", DriverID: "d1", Lat: 1, Lng: 2})

	env := recvEvent(t, a)
	if env.Event != EventDriverLocationUpdate {
		t.Fatalf("event = %s", env.Event)
	}
	assertEmpty(t, b)
}

func TestCloseIsIdempotentAndSilencesRoom(t *testing.T) {
	r := NewRoomRouter(testLogger())
	a := NewSession("a", "", "customer", nil)
	r.Join("order-x", a)

	r.Close("order-x")
	r.Close("order-x") // duplicate completion signal

	r.Broadcast("order-x", EventStatusChanged, StatusPayload{Status: models.StatusCompleted})
	assertEmpty(t, a)
	if r.Count() != 0 {
		t.Fatalf("rooms left: %d", r.Count())
	}
}

func TestBroadcastNeverBlocksOnFullBuffer(t *testing.T) {
	r := NewRoomRouter(testLogger())
	a := NewSession("a", "", "customer", nil)
	r.Join("order-x", a)

	for i := 0; i < sendBuffer; i++ {
		if !a.Enqueue([]byte("{}")) {
			t.Fatalf("buffer filled early at %d", i)
		}
	}
	// Buffer is full; this must drop, not block.
	r.Broadcast("order-x", EventReceiveMessage, ChatPayload{OrderID: "order-x", Sender: "customer", Text: "hi"})
}

func TestOrderAcceptedEmitsBothStatusEvents(t *testing.T) {
	r := NewRoomRouter(testLogger())
	cust := NewSession("c", "", "customer", nil)
	r.Join("o1", cust)

	req := &models.Request{ID: "o1", Status: models.StatusAccepted, DriverID: "d1"}
	info := models.DriverInfo{ID: "d1", Name: "Ali", Phone: "0770", VehicleType: "flatbed"}
	r.OrderAccepted("o1", req, info)

	first := recvEvent(t, cust)
	second := recvEvent(t, cust)
	if first.Event != OrderStatusEvent("o1") || second.Event != EventStatusChanged {
		t.Fatalf("events = %s, %s", first.Event, second.Event)
	}
	var p StatusPayload
	if err := json.Unmarshal(second.Data, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Status != models.StatusAccepted || p.DriverInfo == nil || p.DriverInfo.ID != "d1" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestDropSessionLeavesAllRooms(t *testing.T) {
	r := NewRoomRouter(testLogger())
	s := NewSession("s", "d1", "driver", nil)
	r.Join("o1", s)
	r.Join("o2", s)

	r.DropSession(s)
	if r.Members("o1") != 0 || r.Members("o2") != 0 {
		t.Fatal("session still member after drop")
	}
}
