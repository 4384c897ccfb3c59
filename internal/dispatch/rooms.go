package dispatch

import (
	"log/slog"
	"sync"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
)

// RoomRouter maps an order id to the set of live sessions subscribed to it:
// the customer connection(s) and the one assigned driver. Fan-out is
// non-blocking per recipient and events for an absent room are dropped
// no-ops, so duplicate teardown signals are harmless.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
	logger *slog.Logger
}

func NewRoomRouter(logger *slog.Logger) *RoomRouter {
	return &RoomRouter{rooms: make(map[string]map[*Session]struct{}), logger: logger}
}

func (r *RoomRouter) Join(orderID string, s *Session) {
	r.mu.Lock()
	room, ok := r.rooms[orderID]
	if !ok {
		room = make(map[*Session]struct{})
		r.rooms[orderID] = room
	}
	room[s] = struct{}{}
	r.mu.Unlock()
	observability.RoomsActive.Set(float64(r.Count()))
}

func (r *RoomRouter) Leave(orderID string, s *Session) {
	r.mu.Lock()
	if room, ok := r.rooms[orderID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(r.rooms, orderID)
		}
	}
	r.mu.Unlock()
	observability.RoomsActive.Set(float64(r.Count()))
}

// DropSession removes s from every room it joined; used on disconnect.
func (r *RoomRouter) DropSession(s *Session) {
	r.mu.Lock()
	for orderID, room := range r.rooms {
		if _, ok := room[s]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(r.rooms, orderID)
			}
		}
	}
	r.mu.Unlock()
	observability.RoomsActive.Set(float64(r.Count()))
}

// Close tears down a room's membership bookkeeping. Idempotent.
func (r *RoomRouter) Close(orderID string) {
	r.mu.Lock()
	delete(r.rooms, orderID)
	r.mu.Unlock()
	observability.RoomsActive.Set(float64(r.Count()))
}

func (r *RoomRouter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRouter) Members(orderID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[orderID])
}

func (r *RoomRouter) members(orderID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[orderID]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(room))
	for s := range room {
		out = append(out, s)
	}
	return out
}

// Broadcast fans one event to every member of the order's room. Delivery is
// fire-and-forget: a slow or gone member loses the frame, never blocks the
// sender.
func (r *RoomRouter) Broadcast(orderID, event string, payload any) {
	r.BroadcastExcept(orderID, nil, event, payload)
}

// BroadcastExcept skips one session, used to avoid echoing chat back at its
// author.
func (r *RoomRouter) BroadcastExcept(orderID string, except *Session, event string, payload any) {
	members := r.members(orderID)
	if len(members) == 0 {
		return
	}
	msg, err := encodeEvent(event, payload)
	if err != nil {
		r.logger.Error("encode room event", "event", event, "error", err)
		return
	}
	for _, s := range members {
		if s == except {
			continue
		}
		s.Enqueue(msg)
	}
}

// --- orders.EventPublisher ---

// OrderAccepted publishes the driver-info payload on the per-order event
// and the generic status echo together, as one step, so both client paths
// observe the assignment no matter which event they listen on.
func (r *RoomRouter) OrderAccepted(orderID string, req *models.Request, info models.DriverInfo) {
	r.StatusChanged(orderID, req.Status, &info)
}

func (r *RoomRouter) StatusChanged(orderID string, status models.Status, info *models.DriverInfo) {
	p := StatusPayload{Status: status, DriverInfo: info}
	r.Broadcast(orderID, OrderStatusEvent(orderID), p)
	r.Broadcast(orderID, EventStatusChanged, p)
}

func (r *RoomRouter) OrderClosed(orderID string) {
	r.Close(orderID)
}
